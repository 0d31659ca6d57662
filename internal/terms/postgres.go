package terms

import (
	"context"
	"database/sql"
	"errors"
)

var _ Provider = (*PGProvider)(nil)

// PGProvider reads the newest published terms row.
type PGProvider struct {
	db *sql.DB
}

func NewPGProvider(db *sql.DB) *PGProvider {
	return &PGProvider{db: db}
}

func (p *PGProvider) Current(ctx context.Context) (Terms, error) {
	row := p.db.QueryRowContext(ctx,
		`select id, version, instructions, created_at from participation_terms
		 order by created_at desc limit 1`)
	var t Terms
	if err := row.Scan(&t.ID, &t.Version, &t.Instructions, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Terms{}, ErrNoTerms
		}
		return Terms{}, err
	}
	return t, nil
}
