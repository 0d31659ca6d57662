package participant

import (
	"context"
	"testing"
	"time"
)

func TestLookupMissingYieldsDenyingSentinel(t *testing.T) {
	lookup := NewLookup(NewInMemory())
	ctx := context.Background()

	for _, ref := range []Ref{
		lookup.Find(ctx, "no-such-id"),
		lookup.Find(ctx, ""),
		lookup.FindByName(ctx, "ghost"),
	} {
		if ref.Found {
			t.Fatal("expected missing sentinel")
		}
		if ref.DisplayName() != "" {
			t.Fatalf("sentinel must have empty name, got %q", ref.DisplayName())
		}
		if ref.DisplayAvatarURL() != DefaultAvatarURL {
			t.Fatalf("sentinel must use stock avatar, got %q", ref.DisplayAvatarURL())
		}
		if ref.IsAdmin() || ref.CanPost() || ref.CanComment() || ref.CanSubmit() {
			t.Fatal("sentinel must deny every capability")
		}
		if len(ref.Preferences()) != 0 {
			t.Fatal("sentinel collections must be empty")
		}
	}
}

func TestLookupStoreErrorYieldsSentinel(t *testing.T) {
	// A nil store stands in for any lookup failure: the caller cannot tell
	// "not found" from "error", by contract.
	var lookup *Lookup
	ref := lookup.Find(context.Background(), "anything")
	if ref.Found || ref.CanPost() {
		t.Fatal("expected denying sentinel")
	}
}

func TestLookupFindsRealParticipant(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	now := time.Now().UTC()
	p := &Participant{
		Email:       "real@x.com",
		Name:        "real_user",
		Provider:    ProviderLocal,
		ConfirmedAt: &now,
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lookup := NewLookup(store)
	ref := lookup.Find(ctx, p.ID)
	if !ref.Found {
		t.Fatal("expected participant to be found")
	}
	if ref.DisplayName() != "real_user" {
		t.Fatalf("unexpected name: %s", ref.DisplayName())
	}
	if !ref.CanPost() {
		t.Fatal("confirmed active participant must be able to post")
	}
	if len(ref.Preferences()) != len(DefaultEmailPreferenceCategories) {
		t.Fatalf("expected provisioned preferences, got %d", len(ref.Preferences()))
	}

	byName := lookup.FindByName(ctx, "REAL_USER")
	if !byName.Found || byName.Participant.ID != p.ID {
		t.Fatal("case-insensitive name lookup failed")
	}
}
