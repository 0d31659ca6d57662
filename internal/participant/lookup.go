package participant

import "context"

// DefaultAvatarURL is served whenever a participant has no avatar, including
// the missing-participant sentinel.
const DefaultAvatarURL = "/assets/user-avatar-default.svg"

// Viewer is the capability surface call sites need when rendering or
// permission-checking an account without caring whether it exists. Both a
// real participant and the missing sentinel satisfy it, so templates and
// handlers can skip existence branching.
type Viewer interface {
	DisplayName() string
	DisplayAvatarURL() string
	IsAdmin() bool
	CanPost() bool
	CanComment() bool
	CanSubmit() bool
}

// Ref is the result of a safe lookup: an explicit tagged variant instead of a
// polymorphic null object, so "found" stays testable while call sites that
// genuinely don't care can use the Viewer surface directly.
type Ref struct {
	Participant *Participant
	Found       bool

	prefs []EmailPreference
}

var _ Viewer = Ref{}
var _ Viewer = (*Participant)(nil)

func (r Ref) DisplayName() string {
	if r.Found {
		return r.Participant.DisplayName()
	}
	return ""
}

func (r Ref) DisplayAvatarURL() string {
	if r.Found {
		return r.Participant.DisplayAvatarURL()
	}
	return DefaultAvatarURL
}

func (r Ref) IsAdmin() bool { return r.Found && r.Participant.IsAdmin() }

func (r Ref) CanPost() bool { return r.Found && r.Participant.CanPost() }

func (r Ref) CanComment() bool { return r.Found && r.Participant.CanComment() }

func (r Ref) CanSubmit() bool { return r.Found && r.Participant.CanSubmit() }

// Preferences returns the loaded email preferences; always empty for the
// missing sentinel.
func (r Ref) Preferences() []EmailPreference {
	if !r.Found {
		return nil
	}
	return r.prefs
}

// Lookup wraps a Store with never-failing reads. Any failure, including a
// malformed id or a store error, yields the missing sentinel; callers that
// need "did it exist" check Found, not an error. "Truly not found" and
// "lookup error" are intentionally indistinguishable here.
type Lookup struct {
	store Store
}

// NewLookup constructs a safe lookup over the store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// Find resolves an id to a Ref, never returning an error.
func (l *Lookup) Find(ctx context.Context, id string) Ref {
	if l == nil || l.store == nil || id == "" {
		return Ref{}
	}
	p, err := l.store.Find(ctx, id)
	if err != nil {
		return Ref{}
	}
	return l.load(ctx, p)
}

// FindByName resolves a handle to a Ref, never returning an error.
func (l *Lookup) FindByName(ctx context.Context, name string) Ref {
	if l == nil || l.store == nil || name == "" {
		return Ref{}
	}
	p, err := l.store.FindByName(ctx, name)
	if err != nil {
		return Ref{}
	}
	return l.load(ctx, p)
}

func (l *Lookup) load(ctx context.Context, p *Participant) Ref {
	prefs, err := l.store.Preferences(ctx, p.ID)
	if err != nil {
		prefs = nil
	}
	return Ref{Participant: p, Found: true, prefs: prefs}
}
