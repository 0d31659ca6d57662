// Package challenge covers challenge browsing and the participation
// workflow. A participation entry records the rules version the participant
// accepted when joining; rosters only show entries that accepted the
// challenge's current rules, so bumping the rules re-gates everyone.
package challenge

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Challenge statuses.
const (
	StatusDraft     = "draft"
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Entry statuses.
const (
	EntryPending  = "pending"
	EntryApproved = "approved"
	EntryDenied   = "denied"
)

// DefaultPageSize is the listing page size.
const DefaultPageSize = 20

// Challenge is a hosted competition.
type Challenge struct {
	ID          string `json:"id"`
	OrganizerID string `json:"organizer_id"`
	Title       string `json:"title"`
	Tagline     string `json:"tagline,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`

	// Featured challenges surface on the landing page, lowest sequence first.
	Featured         bool `json:"featured"`
	FeaturedSequence int  `json:"featured_sequence,omitempty"`

	// RulesVersion increments whenever the rules text changes.
	RulesVersion int    `json:"rules_version"`
	Rules        string `json:"rules,omitempty"`

	ImageURL string     `json:"image_url,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the challenge accepts new participation entries.
func (c *Challenge) Open() bool {
	return c.Status == StatusRunning
}

// Entry is one participant's membership in a challenge.
type Entry struct {
	ID            string `json:"id"`
	ChallengeID   string `json:"challenge_id"`
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`

	RulesAcceptedVersion int        `json:"rules_accepted_version"`
	RulesAcceptedAt      *time.Time `json:"rules_accepted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Current reports whether the entry's accepted rules match the given version.
func (e *Entry) Current(rulesVersion int) bool {
	return e.RulesAcceptedVersion == rulesVersion
}

// Member is a roster row: the participant summary shown on a challenge's
// participant listing.
type Member struct {
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Affiliation   string    `json:"affiliation,omitempty"`
	CountryCode   string    `json:"country_code,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}
