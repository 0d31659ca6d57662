package challenge

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"crowdlab.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. One entry per participant per
// challenge is enforced by a unique index on (challenge_id, participant_id).
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const challengeColumns = `id, organizer_id, title, tagline, description, status,
	featured, featured_sequence, rules_version, rules, image_url,
	starts_at, ends_at, created_at, updated_at`

const entryColumns = `id, challenge_id, participant_id, status,
	rules_accepted_version, rules_accepted_at, created_at, updated_at`

func (s *PGStore) CreateChallenge(ctx context.Context, c *Challenge) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into challenges(
			id, organizer_id, title, tagline, description, status,
			featured, featured_sequence, rules_version, rules, image_url,
			starts_at, ends_at)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.OrganizerID, c.Title, c.Tagline, c.Description, c.Status,
		c.Featured, c.FeaturedSequence, c.RulesVersion, c.Rules, c.ImageURL,
		c.StartsAt, c.EndsAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) UpdateChallenge(ctx context.Context, c *Challenge) error {
	res, err := s.db.ExecContext(ctx, `
		update challenges set
			organizer_id=$2, title=$3, tagline=$4, description=$5, status=$6,
			featured=$7, featured_sequence=$8, rules_version=$9, rules=$10,
			image_url=$11, starts_at=$12, ends_at=$13, updated_at=now()
		where id=$1`,
		c.ID, c.OrganizerID, c.Title, c.Tagline, c.Description, c.Status,
		c.Featured, c.FeaturedSequence, c.RulesVersion, c.Rules,
		c.ImageURL, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindChallenge(ctx context.Context, id string) (*Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+challengeColumns+` from challenges where id=$1`, id)
	return scanChallenge(row)
}

func (s *PGStore) ListChallenges(ctx context.Context, limit, offset int) ([]*Challenge, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from challenges`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+challengeColumns+` from challenges
		order by featured desc, featured_sequence asc, created_at desc
		limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectChallenges(rows)
	return list, total, err
}

func (s *PGStore) Featured(ctx context.Context, limit int) ([]*Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+challengeColumns+` from challenges
		where featured
		order by featured_sequence asc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChallenges(rows)
}

func (s *PGStore) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into challenge_participants(
			id, challenge_id, participant_id, status,
			rules_accepted_version, rules_accepted_at)
		values($1,$2,$3,$4,$5,$6)`,
		e.ID, e.ChallengeID, e.ParticipantID, e.Status,
		e.RulesAcceptedVersion, e.RulesAcceptedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) UpdateEntry(ctx context.Context, e *Entry) error {
	res, err := s.db.ExecContext(ctx, `
		update challenge_participants set
			status=$2, rules_accepted_version=$3, rules_accepted_at=$4,
			updated_at=now()
		where id=$1`,
		e.ID, e.Status, e.RulesAcceptedVersion, e.RulesAcceptedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindEntry(ctx context.Context, challengeID, participantID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+entryColumns+` from challenge_participants
		where challenge_id=$1 and participant_id=$2`,
		challengeID, participantID)

	var e Entry
	err := row.Scan(
		&e.ID, &e.ChallengeID, &e.ParticipantID, &e.Status,
		&e.RulesAcceptedVersion, &e.RulesAcceptedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PGStore) Members(ctx context.Context, challengeID string, rulesVersion, limit, offset int) ([]Member, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		select count(*) from challenge_participants
		where challenge_id=$1 and status=$2 and rules_accepted_version=$3`,
		challengeID, EntryApproved, rulesVersion,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.slug, p.avatar_url, p.affiliation, p.country_code, e.created_at
		from challenge_participants e
		join participants p on p.id = e.participant_id
		where e.challenge_id=$1 and e.status=$2 and e.rules_accepted_version=$3
		order by lower(p.name) asc
		limit $4 offset $5`,
		challengeID, EntryApproved, rulesVersion, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var country sql.NullString
		if err := rows.Scan(&m.ParticipantID, &m.Name, &m.Slug, &m.AvatarURL, &m.Affiliation, &country, &m.JoinedAt); err != nil {
			return nil, 0, err
		}
		m.CountryCode = country.String
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func scanChallenge(row *sql.Row) (*Challenge, error) {
	var c Challenge
	err := row.Scan(
		&c.ID, &c.OrganizerID, &c.Title, &c.Tagline, &c.Description, &c.Status,
		&c.Featured, &c.FeaturedSequence, &c.RulesVersion, &c.Rules, &c.ImageURL,
		&c.StartsAt, &c.EndsAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectChallenges(rows *sql.Rows) ([]*Challenge, error) {
	var list []*Challenge
	for rows.Next() {
		var c Challenge
		if err := rows.Scan(
			&c.ID, &c.OrganizerID, &c.Title, &c.Tagline, &c.Description, &c.Status,
			&c.Featured, &c.FeaturedSequence, &c.RulesVersion, &c.Rules, &c.ImageURL,
			&c.StartsAt, &c.EndsAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
