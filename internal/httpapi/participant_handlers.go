package httpapi

import (
	"net/http"
	"strings"
	"time"

	"crowdlab.org/internal/audit"
	"crowdlab.org/internal/auth"
	"crowdlab.org/internal/participant"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Token       string                   `json:"token"`
	ExpiresAt   time.Time                `json:"expires_at"`
	Participant *participant.Participant `json:"participant"`
}

// profileResponse is the public projection of a safe lookup. It renders for
// missing participants too, with denying capabilities and the default avatar.
type profileResponse struct {
	Found       bool       `json:"found"`
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Slug        string     `json:"slug,omitempty"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	Affiliation string     `json:"affiliation,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
	Online      bool       `json:"online"`
	CanPost     bool       `json:"can_post"`
	CanComment  bool       `json:"can_comment"`
	CanSubmit   bool       `json:"can_submit"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
}

func profileFromRef(ref participant.Ref) profileResponse {
	resp := profileResponse{
		Found:       ref.Found,
		DisplayName: ref.DisplayName(),
		AvatarURL:   ref.DisplayAvatarURL(),
		CanPost:     ref.CanPost(),
		CanComment:  ref.CanComment(),
		CanSubmit:   ref.CanSubmit(),
	}
	if ref.Found {
		p := ref.Participant
		resp.ID = p.ID
		resp.Name = p.Name
		resp.Slug = p.Slug
		resp.Affiliation = p.Affiliation
		resp.CountryCode = p.CountryCode
		resp.Online = p.Online(time.Now())
		joined := p.CreatedAt
		resp.JoinedAt = &joined
	}
	return resp
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, events, err := a.participants.Register(r.Context(), participant.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"participant_id": p.ID,
		"provider":       p.Provider,
	})

	w.Header().Set("Location", "/v1/participants/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, events, err := a.participants.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	a.issueSession(w, r, p, "auth.login")
}

func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, events, err := a.participants.Confirm(r.Context(), req.Token)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	_ = audit.LogEvent(r.Context(), "auth.confirm", map[string]any{
		"participant_id": p.ID,
	})
	writeJSON(w, http.StatusOK, p)
}

// handleOAuthCallback resolves a federated assertion to exactly one account
// and signs it in. Federated sessions skip email confirmation; locked and
// disabled accounts still cannot enter.
func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var assertion participant.Assertion
	if err := decodeJSON(w, r, &assertion); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, events, err := a.participants.ResolveIdentity(r.Context(), assertion)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	if p.IsLocked() {
		handleParticipantError(w, r, participant.ErrLocked)
		return
	}
	if !p.IsActive() {
		handleParticipantError(w, r, participant.ErrDisabled)
		return
	}

	a.issueSession(w, r, p, "auth.oauth.resolve")
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, p *participant.Participant, event string) {
	token, err := auth.GenerateToken(p.ID, p.Name, p.Admin, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	expiresAt := time.Now().UTC().Add(a.tokenTTL)

	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"participant_id": p.ID,
		"provider":       p.Provider,
		"expires_at":     expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		Participant: p,
	})
}

// --- authenticated self ---

type updateProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Affiliation *string `json:"affiliation"`
	Address     *string `json:"address"`
	CountryCode *string `json:"country_code"`
	Website     *string `json:"website"`
	GitHub      *string `json:"github"`
	LinkedIn    *string `json:"linkedin"`
	Twitter     *string `json:"twitter"`
	OrganizerID *string `json:"organizer_id"`
}

type meResponse struct {
	Participant     *participant.Participant `json:"participant"`
	TermsAccepted   bool                     `json:"has_accepted_current_terms"`
	InactiveMessage string                   `json:"inactive_message,omitempty"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.ParticipantIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getMe(w, r, id)
	case http.MethodPatch:
		a.updateMe(w, r, id)
	case http.MethodDelete:
		a.deleteMe(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.people.Find(r.Context(), id)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Participant:     p,
		TermsAccepted:   a.participants.HasAcceptedCurrentTerms(r.Context(), p),
		InactiveMessage: p.InactiveMessage(),
	})
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request, id string) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.people.Find(r.Context(), id)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&p.Name, req.Name)
	applyString(&p.Email, req.Email)
	applyString(&p.FirstName, req.FirstName)
	applyString(&p.LastName, req.LastName)
	applyString(&p.Affiliation, req.Affiliation)
	applyString(&p.Address, req.Address)
	applyString(&p.CountryCode, req.CountryCode)
	applyString(&p.Website, req.Website)
	applyString(&p.GitHub, req.GitHub)
	applyString(&p.LinkedIn, req.LinkedIn)
	applyString(&p.Twitter, req.Twitter)
	applyString(&p.OrganizerID, req.OrganizerID)

	updated, events, err := a.participants.SaveProfile(r.Context(), p)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteMe(w http.ResponseWriter, r *http.Request, id string) {
	events, err := a.participants.Delete(r.Context(), id)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)
	_ = audit.LogEvent(r.Context(), "participant.delete", map[string]any{
		"participant_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := auth.ParticipantIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	p, events, err := a.participants.AcceptCurrentTerms(r.Context(), id)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	_ = audit.LogEvent(r.Context(), "participant.terms.accept", map[string]any{
		"participant_id": p.ID,
		"terms_version":  p.TermsAcceptedVersion,
	})
	writeJSON(w, http.StatusOK, p)
}

// --- participant resources ---

type disableRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleParticipantResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/participants/")
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
		a.getProfile(w, r, parts[0])
	case 2:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		switch parts[1] {
		case "disable":
			a.disableParticipant(w, r, parts[0])
		case "enable":
			a.enableParticipant(w, r, parts[0])
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// getProfile is the safe lookup: it always answers 200 with a found flag,
// never an error, so rendering call sites need no existence branch.
func (a *API) getProfile(w http.ResponseWriter, r *http.Request, id string) {
	ref := a.lookup.Find(r.Context(), id)
	if !ref.Found {
		// A handle works as a fallback identifier on profile URLs.
		ref = a.lookup.FindByName(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, profileFromRef(ref))
}

func (a *API) disableParticipant(w http.ResponseWriter, r *http.Request, id string) {
	if !auth.IsAdminFromContext(r.Context()) {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return
	}
	var req disableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, r, http.StatusBadRequest, "reason is required")
		return
	}

	p, events, err := a.participants.Disable(r.Context(), id, req.Reason)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	_ = audit.LogEvent(r.Context(), "participant.disable", map[string]any{
		"participant_id": p.ID,
		"reason":         req.Reason,
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) enableParticipant(w http.ResponseWriter, r *http.Request, id string) {
	if !auth.IsAdminFromContext(r.Context()) {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return
	}

	p, events, err := a.participants.Enable(r.Context(), id)
	if err != nil {
		handleParticipantError(w, r, err)
		return
	}
	a.dispatch(events)

	_ = audit.LogEvent(r.Context(), "participant.enable", map[string]any{
		"participant_id": p.ID,
	})
	writeJSON(w, http.StatusOK, p)
}
