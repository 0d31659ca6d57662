package participant

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"crowdlab.org/internal/auth"
	"crowdlab.org/internal/ids"
	"crowdlab.org/internal/terms"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var countryRx = regexp.MustCompile(`^[A-Z]{2}$`)

// Assertion is an external identity claim from a federated login gateway. The
// shape is validated upstream; resolution only trusts provider, email and
// name.
type Assertion struct {
	Provider  string `json:"provider"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Registration is a direct credentials signup.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Service owns participant writes. Every mutation returns the post-commit
// events the caller must dispatch once the save has committed; the service
// itself performs no side-effect I/O.
type Service struct {
	store Store
	terms terms.Provider
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service. The terms provider is injected rather than
// read from global state so tests can pin a version.
func NewService(store Store, termsProvider terms.Provider, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("participant store is required")
	}
	if termsProvider == nil {
		return nil, errors.New("terms provider is required")
	}
	svc := &Service{store: store, terms: termsProvider, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// NormalizeProvider maps gateway provider identifiers to their canonical
// stored names.
func NormalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == genericOAuthProvider {
		return ProviderCrowdLab
	}
	if provider == "" {
		return ProviderLocal
	}
	return provider
}

// ResolveIdentity maps a federated assertion to exactly one participant,
// keyed by email alone. An existing record is returned unchanged; a new one
// is created with a sanitized handle, an unusable placeholder credential and
// the welcome notification suppressed, so the first credential login forces a
// password reset.
//
// Email-only keying means any provider asserting a known address logs into
// that account. Deliberate (multi-provider linking), but see DESIGN.md.
func (s *Service) ResolveIdentity(ctx context.Context, a Assertion) (*Participant, []Event, error) {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	if email == "" {
		return nil, nil, fmt.Errorf("%w: assertion email is required", ErrInvalidInput)
	}

	if existing, err := s.store.FindByEmail(ctx, email); err == nil {
		return existing, nil, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	placeholder, err := randomPlaceholderPassword()
	if err != nil {
		return nil, nil, err
	}
	hash, err := auth.HashPassword(placeholder)
	if err != nil {
		return nil, nil, err
	}

	p := &Participant{
		ID:                ids.New(),
		Email:             email,
		Name:              SanitizeHandle(a.Name),
		Provider:          NormalizeProvider(a.Provider),
		PasswordHash:      hash,
		ConfirmationToken: uuid.NewString(),
		AvatarURL:         a.AvatarURL,
	}
	if err := s.prepare(ctx, p, ""); err != nil {
		return nil, nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race against a concurrent resolution for the same
			// email: the unique index picked a winner, so retry as lookup.
			winner, lookupErr := s.store.FindByEmail(ctx, email)
			if lookupErr != nil {
				return nil, nil, lookupErr
			}
			return winner, nil, nil
		}
		return nil, nil, err
	}

	events := []Event{event(EventPublishMetrics, p.ID)}
	if a.AvatarURL != "" {
		events = append(events, event(EventFetchAvatar, p.ID, "url", a.AvatarURL))
	}
	return p, events, nil
}

// Register creates a participant from direct credentials. Unlike federated
// signups, registration issues a confirmation email event.
func (s *Service) Register(ctx context.Context, reg Registration) (*Participant, []Event, error) {
	if len(reg.Password) < 8 || len(reg.Password) > 128 {
		return nil, nil, &ValidationError{Fields: []FieldError{
			{Field: "password", Message: "must be between 8 and 128 characters"},
		}}
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, nil, err
	}

	p := &Participant{
		ID:                ids.New(),
		Email:             strings.ToLower(strings.TrimSpace(reg.Email)),
		Name:              strings.TrimSpace(reg.Name),
		Provider:          ProviderLocal,
		PasswordHash:      hash,
		ConfirmationToken: uuid.NewString(),
	}
	if err := s.prepare(ctx, p, ""); err != nil {
		return nil, nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	events := []Event{
		event(EventPublishMetrics, p.ID),
		event(EventSendConfirmationEmail, p.ID, "email", p.Email, "token", p.ConfirmationToken),
	}
	return p, events, nil
}

// Authenticate verifies credentials and every lifecycle gate: the account
// must be confirmed, not locked and not disabled. Failed attempts are counted
// and lock the account at the threshold.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Participant, []Event, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, ErrBadCredentials
	}
	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrBadCredentials
		}
		return nil, nil, err
	}
	if p.IsLocked() {
		return nil, nil, ErrLocked
	}
	if err := auth.VerifyPassword(p.PasswordHash, password); err != nil {
		p.FailedAttempts++
		if p.FailedAttempts >= maxFailedAttempts {
			now := s.now().UTC()
			p.LockedAt = &now
		}
		if updErr := s.store.Update(ctx, p); updErr != nil {
			return nil, nil, updErr
		}
		if p.IsLocked() {
			return nil, nil, ErrLocked
		}
		return nil, nil, ErrBadCredentials
	}
	if !p.IsConfirmed() {
		return nil, nil, ErrUnconfirmed
	}
	if !p.IsActive() {
		return nil, nil, ErrDisabled
	}

	var events []Event
	if p.FailedAttempts > 0 {
		p.FailedAttempts = 0
		if err := s.store.Update(ctx, p); err != nil {
			return nil, nil, err
		}
		events = append(events, event(EventPublishMetrics, p.ID))
	}
	return p, events, nil
}

// Confirm completes email confirmation for the given token. Confirming an
// already confirmed account is a no-op.
func (s *Service) Confirm(ctx context.Context, token string) (*Participant, []Event, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, fmt.Errorf("%w: confirmation token is required", ErrInvalidInput)
	}
	p, err := s.store.FindByConfirmationToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if p.IsConfirmed() {
		return p, nil, nil
	}
	now := s.now().UTC()
	p.ConfirmedAt = &now
	p.ConfirmationToken = ""
	if err := s.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	events := []Event{
		event(EventPublishMetrics, p.ID),
		event(EventSendOnboardingEmail, p.ID, "email", p.Email, "name", p.Name),
		event(EventSyncMailingList, p.ID, "email", p.Email),
	}
	return p, events, nil
}

// SaveProfile validates and persists profile changes. The slug regenerates
// only when the handle changed, and an organizer change schedules the
// materialized-view refresh.
func (s *Service) SaveProfile(ctx context.Context, p *Participant) (*Participant, []Event, error) {
	stored, err := s.store.Find(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	organizerChanged := stored.OrganizerID != p.OrganizerID
	if err := s.prepare(ctx, p, stored.Name); err != nil {
		return nil, nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	events := []Event{event(EventPublishMetrics, p.ID)}
	if organizerChanged {
		events = append(events, event(EventRefreshOrganizerView, p.ID))
	}
	return p, events, nil
}

// Disable marks the account disabled with a reason and timestamp. Idempotent:
// repeating it overwrites reason and timestamp.
func (s *Service) Disable(ctx context.Context, id, reason string) (*Participant, []Event, error) {
	p, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p.Disable(reason, s.now())
	if err := s.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, []Event{event(EventPublishMetrics, p.ID)}, nil
}

// Enable clears the disable sub-state atomically.
func (s *Service) Enable(ctx context.Context, id string) (*Participant, []Event, error) {
	p, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p.Enable()
	if err := s.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, []Event{event(EventPublishMetrics, p.ID)}, nil
}

// AcceptCurrentTerms records acceptance of the terms version that is current
// right now.
func (s *Service) AcceptCurrentTerms(ctx context.Context, id string) (*Participant, []Event, error) {
	current, err := s.terms.Current(ctx)
	if err != nil {
		if errors.Is(err, terms.ErrNoTerms) {
			return nil, nil, fmt.Errorf("%w: no participation terms published", ErrInvalidInput)
		}
		return nil, nil, err
	}
	p, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	p.TermsAcceptedVersion = current.Version
	p.TermsAcceptedAt = &now
	if err := s.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, []Event{event(EventPublishMetrics, p.ID)}, nil
}

// HasAcceptedCurrentTerms reports whether the participant accepted the terms
// version that is current right now. Never errors: absent terms or a provider
// failure both read as "not accepted".
func (s *Service) HasAcceptedCurrentTerms(ctx context.Context, p *Participant) bool {
	if p == nil {
		return false
	}
	current, err := s.terms.Current(ctx)
	if err != nil {
		return false
	}
	return p.HasAcceptedTerms(current.Version)
}

// Delete removes the participant row. Authored public content is preserved
// with authorship nullified; personal linkage rows cascade. That split lives
// in the store.
func (s *Service) Delete(ctx context.Context, id string) ([]Event, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return []Event{event(EventPublishMetrics, id)}, nil
}

// prepare normalizes and validates a participant before any write. previous
// is the stored handle, empty for creates.
func (s *Service) prepare(ctx context.Context, p *Participant, previousName string) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.normalizeURLs()
	if p.APIKey == "" {
		p.APIKey = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if p.Name != previousName || p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return s.validate(ctx, p)
}

func (s *Service) validate(ctx context.Context, p *Participant) error {
	verr := &ValidationError{}

	if p.Email == "" {
		verr.add("email", "is required")
	} else if !emailRx.MatchString(p.Email) {
		verr.add("email", "is not a valid email address")
	}

	verr.Fields = append(verr.Fields, ValidateHandle(p.Name)...)

	if p.Name != "" {
		reserved, err := s.store.IsReservedHandle(ctx, p.Name)
		if err != nil {
			return err
		}
		if reserved && p.Provider != ProviderCrowdLab {
			verr.add("name", "is reserved for CrowdLab users. Please log in via CrowdLab to claim this user handle.")
		}
	}

	validateOptionalLen(verr, "first_name", p.FirstName, 2, 100)
	validateOptionalLen(verr, "last_name", p.LastName, 2, 100)
	validateOptionalLen(verr, "affiliation", p.Affiliation, 2, 100)
	validateOptionalLen(verr, "address", p.Address, 10, 255)

	if p.CountryCode != "" && !countryRx.MatchString(p.CountryCode) {
		verr.add("country_code", "must be a two-letter ISO 3166 code")
	}

	for _, link := range []struct{ field, value string }{
		{"website", p.Website},
		{"github", p.GitHub},
		{"linkedin", p.LinkedIn},
		{"twitter", p.Twitter},
	} {
		if link.value != "" && !validHTTPURL(link.value) {
			verr.add(link.field, "is not a valid URL")
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}

func validateOptionalLen(verr *ValidationError, field, value string, min, max int) {
	if value == "" {
		return
	}
	if len(value) < min || len(value) > max {
		verr.add(field, "must be between %d and %d characters", min, max)
	}
}

func validHTTPURL(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	return rest != "" && !strings.ContainsAny(rest, " \t")
}

func randomPlaceholderPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
