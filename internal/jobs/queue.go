// Package jobs dispatches post-commit side effects. The participant core only
// returns event records; this queue turns them into best-effort background
// work. Delivery is at-least-once and job handlers own their idempotence; a
// failed job never propagates back to the save that produced it.
package jobs

import (
	"context"
	"sync"
	"time"

	"crowdlab.org/internal/obs"
	"crowdlab.org/internal/participant"
)

// Job is one unit of queued background work.
type Job struct {
	Kind          participant.EventKind `json:"kind"`
	ParticipantID string                `json:"participant_id"`
	Payload       map[string]string     `json:"payload,omitempty"`
	EnqueuedAt    time.Time             `json:"enqueued_at"`
}

// Handler executes one job kind.
type Handler func(ctx context.Context, job Job) error

// Queue is an in-process work queue with a fixed worker pool. Enqueue never
// blocks: when the buffer is full the job is dropped and logged, matching the
// fire-and-forget contract.
type Queue struct {
	mu       sync.RWMutex
	handlers map[participant.EventKind]Handler

	ch      chan Job
	workers int

	startOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a queue with the given buffer size and worker count.
func New(buffer, workers int) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Queue{
		handlers: make(map[participant.EventKind]Handler),
		ch:       make(chan Job, buffer),
		workers:  workers,
	}
}

// Register installs the handler for a job kind. Jobs with no handler are
// dropped with a log line.
func (q *Queue) Register(kind participant.EventKind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Start launches the worker pool. Workers drain until ctx ends.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

// Wait blocks until all workers have exited after context cancellation.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue queues jobs without blocking. Full buffer drops the job.
func (q *Queue) Enqueue(jobs ...Job) {
	for _, job := range jobs {
		if job.EnqueuedAt.IsZero() {
			job.EnqueuedAt = time.Now().UTC()
		}
		select {
		case q.ch <- job:
		default:
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "warn",
				"msg":   "job_dropped",
				"kind":  string(job.Kind),
			})
		}
	}
}

// EnqueueEvents converts post-commit participant events into jobs and queues
// them. Call only after the originating save has committed.
func (q *Queue) EnqueueEvents(events []participant.Event) {
	for _, e := range events {
		q.Enqueue(Job{Kind: e.Kind, ParticipantID: e.ParticipantID, Payload: e.Payload})
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.ch:
			q.run(ctx, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, job Job) {
	q.mu.RLock()
	h, ok := q.handlers[job.Kind]
	q.mu.RUnlock()
	if !ok {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "warn",
			"msg":   "job_unhandled",
			"kind":  string(job.Kind),
		})
		return
	}
	if err := h(ctx, job); err != nil {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "job_failed",
			"kind":  string(job.Kind),
			"error": err.Error(),
		})
	}
}
