package challenge

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGStoreMembersFiltersAndOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	joined := time.Now().UTC()
	mock.ExpectQuery("select count\\(\\*\\) from challenge_participants").
		WithArgs("c-1", EntryApproved, 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("join participants p on p.id = e.participant_id").
		WithArgs("c-1", EntryApproved, 2, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "slug", "avatar_url", "affiliation", "country_code", "created_at",
		}).
			AddRow("p-1", "anna", "anna", "", "EPFL", "CH", joined).
			AddRow("p-2", "zoe", "zoe", "", "", sql.NullString{}, joined))

	store := NewPGStore(db)
	members, total, err := store.Members(context.Background(), "c-1", 2, 20, 0)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if total != 2 || len(members) != 2 {
		t.Fatalf("got %d members (total %d), want 2", len(members), total)
	}
	if members[0].Name != "anna" {
		t.Fatalf("first member = %s, want anna", members[0].Name)
	}
	if members[1].CountryCode != "" {
		t.Fatalf("null country should scan empty, got %q", members[1].CountryCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreCreateEntryMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into challenge_participants").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	store := NewPGStore(db)
	entryErr := store.CreateEntry(context.Background(), &Entry{
		ChallengeID:   "c-1",
		ParticipantID: "p-1",
		Status:        EntryPending,
	})
	if !errors.Is(entryErr, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", entryErr)
	}
}

func TestPGStoreFindChallengeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from challenges where id=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	_, findErr := store.FindChallenge(context.Background(), "missing")
	if !errors.Is(findErr, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", findErr)
	}
}

func TestPGStoreUpdateEntryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update challenge_participants set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	updateErr := store.UpdateEntry(context.Background(), &Entry{ID: "missing", Status: EntryApproved})
	if !errors.Is(updateErr, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", updateErr)
	}
}
