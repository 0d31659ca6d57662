package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crowdlab.org/internal/obs"
	"crowdlab.org/internal/participant"
)

// Mailer sends participant lifecycle email.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, token string) error
	SendOnboarding(ctx context.Context, email, name string) error
}

// MailingList syncs confirmed addresses to the newsletter provider.
type MailingList interface {
	Subscribe(ctx context.Context, email string) error
}

// LogMailer writes outgoing mail to the structured log. Stands in until an
// SMTP relay is wired up.
type LogMailer struct{}

func (LogMailer) SendConfirmation(ctx context.Context, email, token string) error {
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "mail_confirmation",
		"email": email,
	})
	return nil
}

func (LogMailer) SendOnboarding(ctx context.Context, email, name string) error {
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "mail_onboarding",
		"email": email,
	})
	return nil
}

// LogMailingList logs subscriptions instead of calling a provider.
type LogMailingList struct{}

func (LogMailingList) Subscribe(ctx context.Context, email string) error {
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "mailing_list_subscribe",
		"email": email,
	})
	return nil
}

// AvatarFetcher retrieves a remote avatar and records it on the participant.
// Failure leaves the account untouched; creation never waits on this.
type AvatarFetcher struct {
	Client *http.Client
	Store  participant.Store

	// MaxBytes bounds the downloaded image size.
	MaxBytes int64
}

func (f AvatarFetcher) Fetch(ctx context.Context, job Job) error {
	url := job.Payload["url"]
	if url == "" {
		return errors.New("avatar job missing url")
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatar fetch: unexpected status %d", resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBytes)); err != nil {
		return err
	}

	p, err := f.Store.Find(ctx, job.ParticipantID)
	if err != nil {
		return err
	}
	p.AvatarURL = url
	return f.Store.Update(ctx, p)
}

// ViewRefresher rebuilds the challenge-organizer materialized view.
type ViewRefresher struct {
	DB *sql.DB
}

func (v ViewRefresher) Refresh(ctx context.Context, _ Job) error {
	if v.DB == nil {
		return nil
	}
	_, err := v.DB.ExecContext(ctx, `refresh materialized view challenge_organizer_participants`)
	return err
}

// MetricsPublisher pushes the participant count gauge.
type MetricsPublisher struct {
	Store participant.Store
}

func (m MetricsPublisher) Publish(ctx context.Context, _ Job) error {
	n, err := m.Store.Count(ctx)
	if err != nil {
		return err
	}
	obs.PublishParticipantCount(n)
	return nil
}

// RegisterDefaults wires the standard handler set onto the queue.
func RegisterDefaults(q *Queue, store participant.Store, db *sql.DB, mailer Mailer, list MailingList) {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if list == nil {
		list = LogMailingList{}
	}

	metrics := MetricsPublisher{Store: store}
	avatars := AvatarFetcher{Store: store}
	views := ViewRefresher{DB: db}

	q.Register(participant.EventPublishMetrics, metrics.Publish)
	q.Register(participant.EventFetchAvatar, avatars.Fetch)
	q.Register(participant.EventRefreshOrganizerView, views.Refresh)
	q.Register(participant.EventSendConfirmationEmail, func(ctx context.Context, job Job) error {
		return mailer.SendConfirmation(ctx, job.Payload["email"], job.Payload["token"])
	})
	q.Register(participant.EventSendOnboardingEmail, func(ctx context.Context, job Job) error {
		return mailer.SendOnboarding(ctx, job.Payload["email"], job.Payload["name"])
	})
	q.Register(participant.EventSyncMailingList, func(ctx context.Context, job Job) error {
		return list.Subscribe(ctx, job.Payload["email"])
	})
}
