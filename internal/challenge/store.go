package challenge

import "context"

// Store is the persistence boundary for challenges and participation entries.
type Store interface {
	CreateChallenge(ctx context.Context, c *Challenge) error
	UpdateChallenge(ctx context.Context, c *Challenge) error
	FindChallenge(ctx context.Context, id string) (*Challenge, error)

	// ListChallenges orders featured challenges first by sequence, then the
	// rest newest-first. Returns the page and the total row count.
	ListChallenges(ctx context.Context, limit, offset int) ([]*Challenge, int, error)

	// Featured returns up to limit featured challenges by sequence.
	Featured(ctx context.Context, limit int) ([]*Challenge, error)

	CreateEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	FindEntry(ctx context.Context, challengeID, participantID string) (*Entry, error)

	// Members lists approved entries that accepted rulesVersion, joined to
	// their participant rows, ordered by participant name ascending.
	Members(ctx context.Context, challengeID string, rulesVersion, limit, offset int) ([]Member, int, error)
}
