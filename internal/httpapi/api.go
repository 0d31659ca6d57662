// Package httpapi is the HTTP surface of the platform: identity and
// lifecycle endpoints, challenge participation, the landing aggregate and
// the operational probes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"crowdlab.org/internal/challenge"
	"crowdlab.org/internal/jobs"
	"crowdlab.org/internal/landing"
	"crowdlab.org/internal/obs"
	"crowdlab.org/internal/participant"
)

// ReadyProbe checks readiness, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	participants *participant.Service
	people       participant.Store
	lookup       *participant.Lookup
	challenges   *challenge.Service
	landing      *landing.Service
	queue        *jobs.Queue

	tokenTTL   time.Duration
	rateBurst  int
	ratePerSec int
}

// New wires the routes. Any nil optional service disables its routes with a
// 404 rather than a panic.
func New(
	rp ReadyProbe,
	version string,
	participants *participant.Service,
	people participant.Store,
	challenges *challenge.Service,
	landingSvc *landing.Service,
	queue *jobs.Queue,
	tokenTTL time.Duration,
) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		participants: participants,
		people:       people,
		lookup:       participant.NewLookup(people),
		challenges:   challenges,
		landing:      landingSvc,
		queue:        queue,
		tokenTTL:     tokenTTL,
		rateBurst:    20,
		ratePerSec:   10,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 15 * time.Minute
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// identity + lifecycle
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/confirm", a.handleConfirm)
	a.mux.HandleFunc("/v1/auth/oauth/callback", a.handleOAuthCallback)

	a.mux.HandleFunc("/v1/participants/me", a.handleMe)
	a.mux.HandleFunc("/v1/participants/me/accept-terms", a.handleAcceptTerms)
	a.mux.HandleFunc("/v1/participants/", a.handleParticipantResource)

	// challenges
	a.mux.HandleFunc("/v1/challenges", a.handleChallengesCollection)
	a.mux.HandleFunc("/v1/challenges/", a.handleChallengeResource)

	// landing aggregate
	a.mux.HandleFunc("/v1/landing", a.handleLanding)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// dispatch hands post-commit events to the job queue. A nil queue drops them,
// which keeps handler tests free of background machinery.
func (a *API) dispatch(events []participant.Event) {
	if a.queue == nil || len(events) == 0 {
		return
	}
	a.queue.EnqueueEvents(events)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "crowdlab-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "crowdlab-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
