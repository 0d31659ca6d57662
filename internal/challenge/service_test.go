package challenge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"crowdlab.org/internal/participant"
)

func newTestService(t *testing.T) (*Service, *InMemory, participant.Store) {
	t.Helper()
	people := participant.NewInMemory()
	store := NewInMemory(people)
	svc, err := NewService(store, WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, people
}

func seedChallenge(t *testing.T, store *InMemory, c *Challenge) *Challenge {
	t.Helper()
	if c.Status == "" {
		c.Status = StatusRunning
	}
	if c.RulesVersion == 0 {
		c.RulesVersion = 1
	}
	if err := store.CreateChallenge(context.Background(), c); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	return c
}

func seedPerson(t *testing.T, people participant.Store, name string) *participant.Participant {
	t.Helper()
	p := &participant.Participant{
		Email:    name + "@example.org",
		Name:     name,
		Provider: participant.ProviderLocal,
	}
	if err := people.Create(context.Background(), p); err != nil {
		t.Fatalf("Create participant: %v", err)
	}
	return p
}

func TestJoinCreatesPendingEntry(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Bird Song Recognition", OrganizerID: "org-1", RulesVersion: 3})
	p := seedPerson(t, people, "alice")

	entry, err := svc.Join(ctx, c.ID, p.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if entry.Status != EntryPending {
		t.Fatalf("status = %s, want pending", entry.Status)
	}
	if entry.RulesAcceptedVersion != 3 {
		t.Fatalf("rules version = %d, want 3", entry.RulesAcceptedVersion)
	}
	if entry.RulesAcceptedAt == nil {
		t.Fatal("rules_accepted_at not set")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Mapping", OrganizerID: "org-1"})
	p := seedPerson(t, people, "bob")

	first, err := svc.Join(ctx, c.ID, p.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	second, err := svc.Join(ctx, c.ID, p.ID)
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second join made a new entry: %s vs %s", first.ID, second.ID)
	}
}

func TestJoinRefreshesStaleRulesVersion(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Mapping", OrganizerID: "org-1", RulesVersion: 1})
	p := seedPerson(t, people, "carol")

	entry, err := svc.Join(ctx, c.ID, p.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := svc.Approve(ctx, c.ID, p.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	c.RulesVersion = 2
	if err := store.UpdateChallenge(ctx, c); err != nil {
		t.Fatalf("UpdateChallenge: %v", err)
	}

	refreshed, err := svc.Join(ctx, c.ID, p.ID)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if refreshed.ID != entry.ID {
		t.Fatal("rejoin must reuse the existing entry")
	}
	if refreshed.RulesAcceptedVersion != 2 {
		t.Fatalf("rules version = %d, want 2", refreshed.RulesAcceptedVersion)
	}
	if refreshed.Status != EntryApproved {
		t.Fatalf("re-accepting rules must not reset approval, got %s", refreshed.Status)
	}
}

func TestJoinRejectsClosedChallenge(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Done", OrganizerID: "org-1", Status: StatusCompleted})
	p := seedPerson(t, people, "dave")

	_, err := svc.Join(ctx, c.ID, p.ID)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestJoinRejectsDeniedParticipant(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Restricted", OrganizerID: "org-1"})
	p := seedPerson(t, people, "eve")

	if _, err := svc.Join(ctx, c.ID, p.ID); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := svc.Deny(ctx, c.ID, p.ID); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	_, err := svc.Join(ctx, c.ID, p.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRosterFiltersByCurrentRulesVersion(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Vision", OrganizerID: "org-1", RulesVersion: 1})

	old := seedPerson(t, people, "zoe")
	cur := seedPerson(t, people, "anna")
	for _, p := range []*participant.Participant{old, cur} {
		if _, err := svc.Join(ctx, c.ID, p.ID); err != nil {
			t.Fatalf("Join: %v", err)
		}
		if _, err := svc.Approve(ctx, c.ID, p.ID); err != nil {
			t.Fatalf("Approve: %v", err)
		}
	}

	// Bump the rules; only anna re-accepts.
	c.RulesVersion = 2
	if err := store.UpdateChallenge(ctx, c); err != nil {
		t.Fatalf("UpdateChallenge: %v", err)
	}
	if _, err := svc.Join(ctx, c.ID, cur.ID); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	members, total, err := svc.Roster(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if total != 1 || len(members) != 1 {
		t.Fatalf("roster size = %d (total %d), want 1", len(members), total)
	}
	if members[0].ParticipantID != cur.ID {
		t.Fatalf("roster shows %s, want %s", members[0].ParticipantID, cur.ID)
	}
}

func TestRosterOrdersByNameAndPaginates(t *testing.T) {
	svc, store, people := newTestService(t)
	ctx := context.Background()
	c := seedChallenge(t, store, &Challenge{Title: "Big", OrganizerID: "org-1"})

	for i := 0; i < DefaultPageSize+3; i++ {
		p := seedPerson(t, people, fmt.Sprintf("member_%02d", i))
		if _, err := svc.Join(ctx, c.ID, p.ID); err != nil {
			t.Fatalf("Join: %v", err)
		}
		if _, err := svc.Approve(ctx, c.ID, p.ID); err != nil {
			t.Fatalf("Approve: %v", err)
		}
	}

	page1, total, err := svc.Roster(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if total != DefaultPageSize+3 {
		t.Fatalf("total = %d, want %d", total, DefaultPageSize+3)
	}
	if len(page1) != DefaultPageSize {
		t.Fatalf("page 1 size = %d, want %d", len(page1), DefaultPageSize)
	}
	if page1[0].Name != "member_00" {
		t.Fatalf("first member = %s, want member_00", page1[0].Name)
	}

	page2, _, err := svc.Roster(ctx, c.ID, 2)
	if err != nil {
		t.Fatalf("Roster page 2: %v", err)
	}
	if len(page2) != 3 {
		t.Fatalf("page 2 size = %d, want 3", len(page2))
	}
}

func TestListOrdersFeaturedFirst(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	seedChallenge(t, store, &Challenge{Title: "Plain", OrganizerID: "org-1"})
	seedChallenge(t, store, &Challenge{Title: "Second Featured", OrganizerID: "org-1", Featured: true, FeaturedSequence: 2})
	seedChallenge(t, store, &Challenge{Title: "First Featured", OrganizerID: "org-1", Featured: true, FeaturedSequence: 1})

	list, total, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if list[0].Title != "First Featured" || list[1].Title != "Second Featured" {
		t.Fatalf("featured ordering wrong: %s, %s", list[0].Title, list[1].Title)
	}

	featured, err := svc.Featured(ctx, 3)
	if err != nil {
		t.Fatalf("Featured: %v", err)
	}
	if len(featured) != 2 {
		t.Fatalf("featured count = %d, want 2", len(featured))
	}
}
