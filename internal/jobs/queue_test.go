package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"crowdlab.org/internal/participant"
)

func TestQueueRunsRegisteredHandler(t *testing.T) {
	q := New(8, 1)

	done := make(chan Job, 1)
	q.Register(participant.EventPublishMetrics, func(ctx context.Context, job Job) error {
		done <- job
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.EnqueueEvents([]participant.Event{
		{Kind: participant.EventPublishMetrics, ParticipantID: "p-1"},
	})

	select {
	case job := <-done:
		if job.ParticipantID != "p-1" {
			t.Fatalf("unexpected participant id: %s", job.ParticipantID)
		}
		if job.EnqueuedAt.IsZero() {
			t.Fatal("enqueue timestamp not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestQueueHandlerFailureDoesNotPropagate(t *testing.T) {
	q := New(8, 1)

	var mu sync.Mutex
	ran := 0
	q.Register(participant.EventFetchAvatar, func(ctx context.Context, job Job) error {
		mu.Lock()
		ran++
		mu.Unlock()
		return errors.New("boom")
	})
	done := make(chan struct{}, 1)
	q.Register(participant.EventPublishMetrics, func(ctx context.Context, job Job) error {
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	// A failing job must not prevent later jobs from running.
	q.Enqueue(Job{Kind: participant.EventFetchAvatar})
	q.Enqueue(Job{Kind: participant.EventPublishMetrics})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after handler failure")
	}
	mu.Lock()
	defer mu.Unlock()
	if ran != 1 {
		t.Fatalf("expected failing handler to run once, ran %d", ran)
	}
}

func TestEnqueueNeverBlocksWhenFull(t *testing.T) {
	q := New(1, 1)
	// No workers started: the buffer fills and extra jobs drop.
	q.Enqueue(Job{Kind: participant.EventPublishMetrics})

	doneCh := make(chan struct{})
	go func() {
		q.Enqueue(Job{Kind: participant.EventPublishMetrics})
		q.Enqueue(Job{Kind: participant.EventPublishMetrics})
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on full buffer")
	}
}

func TestAvatarFetcherAttachesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not-really-a-png"))
	}))
	defer srv.Close()

	store := participant.NewInMemory()
	ctx := context.Background()
	p := &participant.Participant{Email: "a@x.com", Name: "a_b", Provider: participant.ProviderGitHub}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fetcher := AvatarFetcher{Store: store}
	err := fetcher.Fetch(ctx, Job{
		Kind:          participant.EventFetchAvatar,
		ParticipantID: p.ID,
		Payload:       map[string]string{"url": srv.URL + "/avatar.png"},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	stored, err := store.Find(ctx, p.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.AvatarURL != srv.URL+"/avatar.png" {
		t.Fatalf("avatar not attached: %s", stored.AvatarURL)
	}
}

func TestAvatarFetcherFailureLeavesAccountAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := participant.NewInMemory()
	ctx := context.Background()
	p := &participant.Participant{Email: "b@x.com", Name: "b_c", Provider: participant.ProviderGitHub}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fetcher := AvatarFetcher{Store: store}
	err := fetcher.Fetch(ctx, Job{
		ParticipantID: p.ID,
		Payload:       map[string]string{"url": srv.URL + "/gone.png"},
	})
	if err == nil {
		t.Fatal("expected fetch error")
	}

	stored, _ := store.Find(ctx, p.ID)
	if stored.AvatarURL != "" {
		t.Fatalf("avatar must stay empty on failure: %s", stored.AvatarURL)
	}
}
