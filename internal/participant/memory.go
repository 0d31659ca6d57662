package participant

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"crowdlab.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety. Used by
// service tests and local development without Postgres.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[string]*Participant
	prefs    map[string][]EmailPreference
	reserved map[string]struct{}
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[string]*Participant),
		prefs:    make(map[string][]EmailPreference),
		reserved: make(map[string]struct{}),
	}
}

// Reserve marks a handle as reserved for platform accounts.
func (s *InMemory) Reserve(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.reserved[strings.ToLower(n)] = struct{}{}
	}
}

func (s *InMemory) Create(ctx context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, p.Email) || strings.EqualFold(existing.Name, p.Name) {
			return ErrConflict
		}
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.byID[p.ID] = &cp

	prefs := make([]EmailPreference, 0, len(DefaultEmailPreferenceCategories))
	for _, cat := range DefaultEmailPreferenceCategories {
		prefs = append(prefs, EmailPreference{
			ID:            ids.New(),
			ParticipantID: p.ID,
			Category:      cat,
			Enabled:       true,
		})
	}
	s.prefs[p.ID] = prefs
	return nil
}

func (s *InMemory) Update(ctx context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[p.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.byID {
		if id == p.ID {
			continue
		}
		if strings.EqualFold(existing.Email, p.Email) || strings.EqualFold(existing.Name, p.Name) {
			return ErrConflict
		}
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.prefs, id)
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*Participant, error) {
	return s.findBy(func(p *Participant) bool { return strings.EqualFold(p.Email, email) })
}

func (s *InMemory) FindByName(ctx context.Context, name string) (*Participant, error) {
	return s.findBy(func(p *Participant) bool { return strings.EqualFold(p.Name, name) })
}

func (s *InMemory) FindByAPIKey(ctx context.Context, key string) (*Participant, error) {
	return s.findBy(func(p *Participant) bool { return p.APIKey != "" && p.APIKey == key })
}

func (s *InMemory) FindByConfirmationToken(ctx context.Context, token string) (*Participant, error) {
	return s.findBy(func(p *Participant) bool {
		return p.ConfirmationToken != "" && p.ConfirmationToken == token
	})
}

func (s *InMemory) findBy(match func(*Participant) bool) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) List(ctx context.Context, limit, offset int) ([]*Participant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Participant, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *InMemory) Newest(ctx context.Context, limit int) ([]*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Participant, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *InMemory) Preferences(ctx context.Context, participantID string) ([]EmailPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs := s.prefs[participantID]
	out := make([]EmailPreference, len(prefs))
	copy(out, prefs)
	return out, nil
}

func (s *InMemory) IsReservedHandle(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reserved[strings.ToLower(name)]
	return ok, nil
}
