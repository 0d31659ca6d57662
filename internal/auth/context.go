package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	participantIDKey ctxKey = "auth_participant_id"
	adminKey         ctxKey = "auth_admin"
)

// ContextWithParticipant stores the authenticated participant identity in the
// context.
func ContextWithParticipant(ctx context.Context, participantID string, admin bool) context.Context {
	ctx = context.WithValue(ctx, participantIDKey, strings.TrimSpace(participantID))
	return context.WithValue(ctx, adminKey, admin)
}

// ParticipantIDFromContext extracts the authenticated participant ID.
func ParticipantIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(participantIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// IsAdminFromContext reports whether the context carries an admin session.
func IsAdminFromContext(ctx context.Context) bool {
	v, ok := ctx.Value(adminKey).(bool)
	return ok && v
}
