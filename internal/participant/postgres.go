package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"crowdlab.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Case-insensitive uniqueness on
// email and name is enforced by unique indexes on lower(email) and
// lower(name), so racing creates resolve at the database, not here.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const participantColumns = `id, email, name, slug, provider, password_hash, api_key,
	confirmed_at, confirmation_token, failed_attempts, locked_at,
	account_disabled, account_disabled_reason, account_disabled_at,
	terms_accepted_version, terms_accepted_at, organizer_id,
	website, github, linkedin, twitter,
	first_name, last_name, affiliation, address, country_code,
	avatar_url, admin, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *Participant) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into participants(
			id, email, name, slug, provider, password_hash, api_key,
			confirmed_at, confirmation_token, failed_attempts, locked_at,
			account_disabled, account_disabled_reason, account_disabled_at,
			terms_accepted_version, terms_accepted_at, organizer_id,
			website, github, linkedin, twitter,
			first_name, last_name, affiliation, address, country_code,
			avatar_url, admin)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		p.ID, p.Email, p.Name, p.Slug, p.Provider, p.PasswordHash, p.APIKey,
		p.ConfirmedAt, nullString(p.ConfirmationToken), p.FailedAttempts, p.LockedAt,
		p.AccountDisabled, nullString(p.AccountDisabledReason), p.AccountDisabledAt,
		nullString(p.TermsAcceptedVersion), p.TermsAcceptedAt, nullString(p.OrganizerID),
		p.Website, p.GitHub, p.LinkedIn, p.Twitter,
		p.FirstName, p.LastName, p.Affiliation, p.Address, nullString(p.CountryCode),
		p.AvatarURL, p.Admin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	// Default notification preferences are provisioned exactly once, in the
	// same transaction as the account row.
	for _, cat := range DefaultEmailPreferenceCategories {
		if _, err := tx.ExecContext(ctx, `
			insert into email_preferences(id, participant_id, category, enabled)
			values($1,$2,$3,true)`,
			ids.New(), p.ID, cat,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) Update(ctx context.Context, p *Participant) error {
	res, err := s.db.ExecContext(ctx, `
		update participants set
			email=$2, name=$3, slug=$4, provider=$5, password_hash=$6, api_key=$7,
			confirmed_at=$8, confirmation_token=$9, failed_attempts=$10, locked_at=$11,
			account_disabled=$12, account_disabled_reason=$13, account_disabled_at=$14,
			terms_accepted_version=$15, terms_accepted_at=$16, organizer_id=$17,
			website=$18, github=$19, linkedin=$20, twitter=$21,
			first_name=$22, last_name=$23, affiliation=$24, address=$25, country_code=$26,
			avatar_url=$27, admin=$28, updated_at=now()
		where id=$1`,
		p.ID, p.Email, p.Name, p.Slug, p.Provider, p.PasswordHash, p.APIKey,
		p.ConfirmedAt, nullString(p.ConfirmationToken), p.FailedAttempts, p.LockedAt,
		p.AccountDisabled, nullString(p.AccountDisabledReason), p.AccountDisabledAt,
		nullString(p.TermsAcceptedVersion), p.TermsAcceptedAt, nullString(p.OrganizerID),
		p.Website, p.GitHub, p.LinkedIn, p.Twitter,
		p.FirstName, p.LastName, p.Affiliation, p.Address, nullString(p.CountryCode),
		p.AvatarURL, p.Admin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the participant while preserving public content authorship
// traces: submissions, topics, comments, articles and blogs keep their rows
// with the author reference nulled; votes, challenge participations, tokens,
// follows and preferences are removed outright.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	nullified := []string{"submissions", "topics", "comments", "articles", "blogs"}
	for _, table := range nullified {
		stmt := fmt.Sprintf(`update %s set participant_id=null where participant_id=$1`, table)
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	cascaded := []string{"votes", "challenge_participants", "email_preferences", "follows", "access_tokens"}
	for _, table := range cascaded {
		stmt := fmt.Sprintf(`delete from %s where participant_id=$1`, table)
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `delete from participants where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *PGStore) Find(ctx context.Context, id string) (*Participant, error) {
	return s.findWhere(ctx, `id=$1`, id)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Participant, error) {
	return s.findWhere(ctx, `lower(email)=lower($1)`, email)
}

func (s *PGStore) FindByName(ctx context.Context, name string) (*Participant, error) {
	return s.findWhere(ctx, `lower(name)=lower($1)`, name)
}

func (s *PGStore) FindByAPIKey(ctx context.Context, key string) (*Participant, error) {
	return s.findWhere(ctx, `api_key=$1`, key)
}

func (s *PGStore) FindByConfirmationToken(ctx context.Context, token string) (*Participant, error) {
	return s.findWhere(ctx, `confirmation_token=$1`, token)
}

func (s *PGStore) findWhere(ctx context.Context, where string, arg any) (*Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+participantColumns+` from participants where `+where, arg)
	return scanParticipant(row)
}

func (s *PGStore) List(ctx context.Context, limit, offset int) ([]*Participant, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from participants`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+participantColumns+` from participants order by lower(name) asc limit $1 offset $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectParticipants(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PGStore) Newest(ctx context.Context, limit int) ([]*Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+participantColumns+` from participants order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from participants`).Scan(&n)
	return n, err
}

func (s *PGStore) Preferences(ctx context.Context, participantID string) ([]EmailPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, participant_id, category, enabled from email_preferences
		 where participant_id=$1 order by category`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []EmailPreference
	for rows.Next() {
		var pref EmailPreference
		if err := rows.Scan(&pref.ID, &pref.ParticipantID, &pref.Category, &pref.Enabled); err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}

func (s *PGStore) IsReservedHandle(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from reserved_handles where lower(name)=lower($1))`, name).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*Participant, error) {
	var (
		p                 Participant
		confirmationToken sql.NullString
		disabledReason    sql.NullString
		termsVersion      sql.NullString
		organizerID       sql.NullString
		countryCode       sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.Slug, &p.Provider, &p.PasswordHash, &p.APIKey,
		&p.ConfirmedAt, &confirmationToken, &p.FailedAttempts, &p.LockedAt,
		&p.AccountDisabled, &disabledReason, &p.AccountDisabledAt,
		&termsVersion, &p.TermsAcceptedAt, &organizerID,
		&p.Website, &p.GitHub, &p.LinkedIn, &p.Twitter,
		&p.FirstName, &p.LastName, &p.Affiliation, &p.Address, &countryCode,
		&p.AvatarURL, &p.Admin, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.ConfirmationToken = confirmationToken.String
	p.AccountDisabledReason = disabledReason.String
	p.TermsAcceptedVersion = termsVersion.String
	p.OrganizerID = organizerID.String
	p.CountryCode = countryCode.String
	return &p, nil
}

func collectParticipants(rows *sql.Rows) ([]*Participant, error) {
	var items []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
