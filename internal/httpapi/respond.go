package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"crowdlab.org/internal/challenge"
	"crowdlab.org/internal/participant"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePage(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}

// handleParticipantError maps domain errors onto HTTP statuses. Validation
// failures carry a per-field message map.
func handleParticipantError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *participant.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		payload := map[string]any{
			"error":  "validation failed",
			"fields": fields,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
		return
	}

	switch {
	case errors.Is(err, participant.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, participant.ErrBadCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, participant.ErrUnconfirmed):
		writeError(w, r, http.StatusForbidden, "account is not confirmed")
	case errors.Is(err, participant.ErrLocked):
		writeError(w, r, http.StatusForbidden, "account is locked")
	case errors.Is(err, participant.ErrDisabled):
		writeError(w, r, http.StatusForbidden, participant.DisabledSupportMessage)
	case errors.Is(err, participant.ErrConflict):
		writeError(w, r, http.StatusConflict, "email or handle already taken")
	case errors.Is(err, participant.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "participant not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleChallengeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, challenge.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, challenge.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, challenge.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "challenge not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
