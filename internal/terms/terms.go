// Package terms exposes the current participation-terms version. The version
// is a process-wide singleton in spirit but is always handed to callers as an
// injected Provider so nothing reaches for hidden global state.
package terms

import (
	"context"
	"errors"
	"time"
)

// ErrNoTerms indicates no participation terms have been published yet.
// Lifecycle checks treat this as "not accepted", never as a failure.
var ErrNoTerms = errors.New("terms: no current participation terms")

// Terms is a published participation-terms document.
type Terms struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Instructions string    `json:"instructions,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Provider resolves the single current participation-terms document.
type Provider interface {
	Current(ctx context.Context) (Terms, error)
}

// Static is a fixed Provider used in tests and before a database exists.
type Static struct {
	Terms *Terms
}

func (s Static) Current(ctx context.Context) (Terms, error) {
	if s.Terms == nil {
		return Terms{}, ErrNoTerms
	}
	return *s.Terms, nil
}
