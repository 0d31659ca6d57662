package httpapi

import (
	"net/http"
	"strings"

	"crowdlab.org/internal/audit"
	"crowdlab.org/internal/auth"
	"crowdlab.org/internal/challenge"
)

type challengeListResponse struct {
	Items []*challenge.Challenge `json:"items"`
	Page  int                    `json:"page"`
	Total int                    `json:"total"`
}

type rosterResponse struct {
	Items []challenge.Member `json:"items"`
	Page  int                `json:"page"`
	Total int                `json:"total"`
}

func (a *API) handleChallengesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := a.challenges.List(r.Context(), page)
	if err != nil {
		handleChallengeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeListResponse{Items: items, Page: page, Total: total})
}

func (a *API) handleChallengeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/challenges/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getChallenge(w, r, parts[0])
	case 2:
		switch parts[1] {
		case "participants":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r, http.MethodGet)
				return
			}
			a.getRoster(w, r, parts[0])
		case "register":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.registerParticipation(w, r, parts[0])
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	case 4:
		if parts[1] != "participants" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		switch parts[3] {
		case "approve":
			a.reviewParticipation(w, r, parts[0], parts[2], true)
		case "deny":
			a.reviewParticipation(w, r, parts[0], parts[2], false)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getChallenge(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.challenges.Find(r.Context(), id)
	if err != nil {
		handleChallengeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getRoster(w http.ResponseWriter, r *http.Request, id string) {
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := a.challenges.Roster(r.Context(), id, page)
	if err != nil {
		handleChallengeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rosterResponse{Items: items, Page: page, Total: total})
}

// registerParticipation joins the caller to the challenge, accepting its
// current rules version.
func (a *API) registerParticipation(w http.ResponseWriter, r *http.Request, challengeID string) {
	participantID, ok := auth.ParticipantIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	entry, err := a.challenges.Join(r.Context(), challengeID, participantID)
	if err != nil {
		handleChallengeError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "challenge.participation.register", map[string]any{
		"challenge_id":           challengeID,
		"participant_id":         participantID,
		"rules_accepted_version": entry.RulesAcceptedVersion,
	})
	writeJSON(w, http.StatusCreated, entry)
}

// reviewParticipation approves or denies a pending entry. Allowed for admins
// and for members of the challenge's organizer.
func (a *API) reviewParticipation(w http.ResponseWriter, r *http.Request, challengeID, participantID string, approve bool) {
	callerID, ok := auth.ParticipantIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if !a.canReview(r, challengeID, callerID) {
		writeError(w, r, http.StatusForbidden, "organizer access required")
		return
	}

	var (
		entry *challenge.Entry
		err   error
		event string
	)
	if approve {
		entry, err = a.challenges.Approve(r.Context(), challengeID, participantID)
		event = "challenge.participation.approve"
	} else {
		entry, err = a.challenges.Deny(r.Context(), challengeID, participantID)
		event = "challenge.participation.deny"
	}
	if err != nil {
		handleChallengeError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"challenge_id":   challengeID,
		"participant_id": participantID,
		"reviewed_by":    callerID,
	})
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) canReview(r *http.Request, challengeID, callerID string) bool {
	if auth.IsAdminFromContext(r.Context()) {
		return true
	}
	c, err := a.challenges.Find(r.Context(), challengeID)
	if err != nil || c.OrganizerID == "" {
		return false
	}
	caller, err := a.people.Find(r.Context(), callerID)
	if err != nil {
		return false
	}
	return caller.OrganizerID == c.OrganizerID
}
