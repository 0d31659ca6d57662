package participant

import "time"

// Identity providers. A generic OAuth2 assertion is normalized to
// ProviderCrowdLab before storage so the platform's own provider name is the
// one users see.
const (
	ProviderLocal    = "local"
	ProviderGitHub   = "github"
	ProviderCrowdLab = "crowdlab"

	// genericOAuthProvider is the raw identifier some gateways emit for the
	// platform's own OAuth2 application.
	genericOAuthProvider = "oauth2_generic"
)

// Lock after this many consecutive failed credential attempts.
const maxFailedAttempts = 10

// onlineWindow bounds how stale UpdatedAt may be for Online to hold.
const onlineWindow = 10 * time.Minute

// DisabledSupportMessage is shown to participants whose account has been
// disabled by an operator.
const DisabledSupportMessage = "Your account has been disabled. Please contact us at info@crowdlab.org."

// Participant is the platform's user entity. Confirmation, lock, disable and
// terms acceptance are independent sub-states; overall eligibility is derived,
// never stored.
type Participant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`

	Provider     string `json:"provider"`
	PasswordHash string `json:"-"`
	APIKey       string `json:"-"`

	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationToken string     `json:"-"`

	FailedAttempts int        `json:"-"`
	LockedAt       *time.Time `json:"-"`

	AccountDisabled       bool       `json:"account_disabled"`
	AccountDisabledReason string     `json:"account_disabled_reason,omitempty"`
	AccountDisabledAt     *time.Time `json:"account_disabled_at,omitempty"`

	TermsAcceptedVersion string     `json:"terms_accepted_version,omitempty"`
	TermsAcceptedAt      *time.Time `json:"terms_accepted_at,omitempty"`

	OrganizerID string `json:"organizer_id,omitempty"`

	Website  string `json:"website,omitempty"`
	GitHub   string `json:"github,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`

	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	Address     string `json:"address,omitempty"`
	CountryCode string `json:"country_code,omitempty"`

	AvatarURL string `json:"avatar_url,omitempty"`
	Admin     bool   `json:"admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailPreference is one notification category toggle. A default set is
// provisioned exactly once when the participant row is created.
type EmailPreference struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	Category      string `json:"category"`
	Enabled       bool   `json:"enabled"`
}

// DefaultEmailPreferenceCategories provisioned on account creation.
var DefaultEmailPreferenceCategories = []string{
	"challenge_updates",
	"newsletter",
	"submission_results",
}

// IsConfirmed reports whether the account finished email confirmation.
func (p *Participant) IsConfirmed() bool { return p.ConfirmedAt != nil }

// IsLocked reports whether failed credential attempts locked the account.
func (p *Participant) IsLocked() bool { return p.LockedAt != nil }

// IsActive is true iff the disable sub-state is clear. The authentication
// path must consult this in addition to credential checks.
func (p *Participant) IsActive() bool { return !p.AccountDisabled }

// Disable sets all three disable fields together. Calling it again overwrites
// the reason and timestamp.
func (p *Participant) Disable(reason string, now time.Time) {
	at := now.UTC()
	p.AccountDisabled = true
	p.AccountDisabledReason = reason
	p.AccountDisabledAt = &at
}

// Enable clears all three disable fields together.
func (p *Participant) Enable() {
	p.AccountDisabled = false
	p.AccountDisabledReason = ""
	p.AccountDisabledAt = nil
}

// InactiveMessage returns the support text for disabled accounts, empty
// otherwise.
func (p *Participant) InactiveMessage() string {
	if p.AccountDisabled {
		return DisabledSupportMessage
	}
	return ""
}

// HasAcceptedTerms is true only when the stored version matches the given
// current version and an acceptance timestamp exists. An empty current
// version means no terms are published, which is vacuously "not accepted".
func (p *Participant) HasAcceptedTerms(currentVersion string) bool {
	if currentVersion == "" {
		return false
	}
	if p.TermsAcceptedVersion != currentVersion {
		return false
	}
	return p.TermsAcceptedAt != nil
}

// Online reports recent activity.
func (p *Participant) Online(now time.Time) bool {
	return now.Sub(p.UpdatedAt) < onlineWindow
}

// DisplayName implements Viewer.
func (p *Participant) DisplayName() string { return p.Name }

// DisplayAvatarURL implements Viewer, falling back to the stock avatar.
func (p *Participant) DisplayAvatarURL() string {
	if p.AvatarURL != "" {
		return p.AvatarURL
	}
	return DefaultAvatarURL
}

// IsAdmin implements Viewer.
func (p *Participant) IsAdmin() bool { return p.Admin }

// CanPost implements Viewer: posting requires a confirmed, enabled account.
func (p *Participant) CanPost() bool { return p.IsConfirmed() && p.IsActive() && !p.IsLocked() }

// CanComment implements Viewer.
func (p *Participant) CanComment() bool { return p.CanPost() }

// CanSubmit implements Viewer. Submitting additionally requires current terms
// acceptance, which only the service can evaluate; this method reports the
// account-level gate.
func (p *Participant) CanSubmit() bool { return p.CanPost() }
