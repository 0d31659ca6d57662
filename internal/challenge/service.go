package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service owns challenge reads and the participation workflow.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("challenge store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// List returns one page of challenges, featured first. Page numbers start
// at 1; out-of-range pages return an empty slice with the true total.
func (s *Service) List(ctx context.Context, page int) ([]*Challenge, int, error) {
	if page < 1 {
		page = 1
	}
	return s.store.ListChallenges(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
}

// Featured returns the top featured challenges for the landing page.
func (s *Service) Featured(ctx context.Context, limit int) ([]*Challenge, error) {
	if limit <= 0 {
		limit = 3
	}
	return s.store.Featured(ctx, limit)
}

// Find loads one challenge.
func (s *Service) Find(ctx context.Context, id string) (*Challenge, error) {
	return s.store.FindChallenge(ctx, id)
}

// Roster returns one page of approved participants whose accepted rules
// version matches the challenge's current one. Entries that accepted an
// older rules version are hidden until the participant re-accepts.
func (s *Service) Roster(ctx context.Context, challengeID string, page int) ([]Member, int, error) {
	c, err := s.store.FindChallenge(ctx, challengeID)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	return s.store.Members(ctx, c.ID, c.RulesVersion, DefaultPageSize, (page-1)*DefaultPageSize)
}

// Join records a participation entry for the challenge's current rules
// version. Joining is idempotent: an existing entry is returned unchanged
// when its accepted version is current, and refreshed to the current version
// when stale. New entries start pending until an organizer approves them.
func (s *Service) Join(ctx context.Context, challengeID, participantID string) (*Entry, error) {
	if participantID == "" {
		return nil, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	c, err := s.store.FindChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.Open() {
		return nil, fmt.Errorf("%w: challenge is not open for participation", ErrInvalidInput)
	}
	now := s.now().UTC()

	existing, err := s.store.FindEntry(ctx, c.ID, participantID)
	switch {
	case err == nil:
		if existing.Status == EntryDenied {
			return nil, fmt.Errorf("%w: participation was denied", ErrConflict)
		}
		if existing.Current(c.RulesVersion) {
			return existing, nil
		}
		existing.RulesAcceptedVersion = c.RulesVersion
		existing.RulesAcceptedAt = &now
		if err := s.store.UpdateEntry(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, ErrNotFound):
		// fall through to create
	default:
		return nil, err
	}

	entry := &Entry{
		ChallengeID:          c.ID,
		ParticipantID:        participantID,
		Status:               EntryPending,
		RulesAcceptedVersion: c.RulesVersion,
		RulesAcceptedAt:      &now,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		// A concurrent join won the insert; surface that entry instead.
		if errors.Is(err, ErrConflict) {
			return s.store.FindEntry(ctx, c.ID, participantID)
		}
		return nil, err
	}
	return entry, nil
}

// Approve marks a pending entry approved.
func (s *Service) Approve(ctx context.Context, challengeID, participantID string) (*Entry, error) {
	return s.setEntryStatus(ctx, challengeID, participantID, EntryApproved)
}

// Deny marks an entry denied. Denied participants cannot rejoin.
func (s *Service) Deny(ctx context.Context, challengeID, participantID string) (*Entry, error) {
	return s.setEntryStatus(ctx, challengeID, participantID, EntryDenied)
}

func (s *Service) setEntryStatus(ctx context.Context, challengeID, participantID, status string) (*Entry, error) {
	entry, err := s.store.FindEntry(ctx, challengeID, participantID)
	if err != nil {
		return nil, err
	}
	if entry.Status == status {
		return entry, nil
	}
	entry.Status = status
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
