package participant

import "context"

// Store describes persistence operations required by the participant
// subsystem. Case-insensitive uniqueness on email and name is the store's
// responsibility; two racing creates for the same email must resolve with at
// most one winner and ErrConflict for the loser.
type Store interface {
	// Create inserts the participant and provisions the default email
	// preferences in the same transaction.
	Create(ctx context.Context, p *Participant) error
	Update(ctx context.Context, p *Participant) error
	Delete(ctx context.Context, id string) error

	Find(ctx context.Context, id string) (*Participant, error)
	FindByEmail(ctx context.Context, email string) (*Participant, error)
	FindByName(ctx context.Context, name string) (*Participant, error)
	FindByAPIKey(ctx context.Context, key string) (*Participant, error)
	FindByConfirmationToken(ctx context.Context, token string) (*Participant, error)

	// List pages participants ordered by name ascending.
	List(ctx context.Context, limit, offset int) ([]*Participant, int, error)
	// Newest returns the most recently created participants.
	Newest(ctx context.Context, limit int) ([]*Participant, error)
	Count(ctx context.Context) (int, error)

	Preferences(ctx context.Context, participantID string) ([]EmailPreference, error)
	IsReservedHandle(ctx context.Context, name string) (bool, error)
}
