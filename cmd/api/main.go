package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crowdlab.org/internal/challenge"
	"crowdlab.org/internal/config"
	"crowdlab.org/internal/httpapi"
	"crowdlab.org/internal/jobs"
	"crowdlab.org/internal/landing"
	"crowdlab.org/internal/obs"
	"crowdlab.org/internal/participant"
	"crowdlab.org/internal/terms"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load(os.Getenv("CROWDLAB_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	obs.InitParticipantCount()

	// Without a DSN everything runs on in-memory stores, which is enough for
	// local development against the HTTP surface.
	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	var (
		people         participant.Store
		termsProvider  terms.Provider
		challengeStore challenge.Store
		contentStore   landing.Store
	)
	if db != nil {
		people = participant.NewPGStore(db)
		termsProvider = terms.NewPGProvider(db)
		challengeStore = challenge.NewPGStore(db)
		contentStore = landing.NewPGStore(db)
	} else {
		mem := participant.NewInMemory()
		mem.Reserve("crowdlab", "admin", "moderator", "support")
		people = mem
		termsProvider = terms.Static{}
		challengeStore = challenge.NewInMemory(mem)
		contentStore = landing.NewInMemory()
	}

	participants, err := participant.NewService(people, termsProvider)
	if err != nil {
		log.Fatalf("participant service: %v", err)
	}
	challenges, err := challenge.NewService(challengeStore)
	if err != nil {
		log.Fatalf("challenge service: %v", err)
	}
	landingSvc, err := landing.NewService(contentStore, challenges, people)
	if err != nil {
		log.Fatalf("landing service: %v", err)
	}

	// Post-commit side effects run on the in-process queue.
	jobCtx, stopJobs := context.WithCancel(context.Background())
	queue := jobs.New(cfg.Jobs.Buffer, cfg.Jobs.Workers)
	jobs.RegisterDefaults(queue, people, db, nil, nil)
	queue.Start(jobCtx)

	api := httpapi.New(
		httpapi.ReadyProbe{DB: db},
		version,
		participants,
		people,
		challenges,
		landingSvc,
		queue,
		cfg.Auth.TokenTTL,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting crowdlab-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopJobs()
	queue.Wait()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
