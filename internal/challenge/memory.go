package challenge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"crowdlab.org/internal/ids"
	"crowdlab.org/internal/participant"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety. Roster rows
// resolve participant details from the provided participant store, standing
// in for the SQL join.
type InMemory struct {
	mu         sync.RWMutex
	challenges map[string]*Challenge
	entries    map[string]*Entry

	people participant.Store
}

// NewInMemory creates an empty store backed by the given participant store.
func NewInMemory(people participant.Store) *InMemory {
	return &InMemory{
		challenges: make(map[string]*Challenge),
		entries:    make(map[string]*Entry),
		people:     people,
	}
}

func (s *InMemory) CreateChallenge(ctx context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = ids.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *InMemory) UpdateChallenge(ctx context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *InMemory) FindChallenge(ctx context.Context, id string) (*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListChallenges(ctx context.Context, limit, offset int) ([]*Challenge, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Featured != b.Featured {
			return a.Featured
		}
		if a.Featured && a.FeaturedSequence != b.FeaturedSequence {
			return a.FeaturedSequence < b.FeaturedSequence
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *InMemory) Featured(ctx context.Context, limit int) ([]*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var featured []*Challenge
	for _, c := range s.challenges {
		if c.Featured {
			cp := *c
			featured = append(featured, &cp)
		}
	}
	sort.Slice(featured, func(i, j int) bool {
		return featured[i].FeaturedSequence < featured[j].FeaturedSequence
	})
	if len(featured) > limit {
		featured = featured[:limit]
	}
	return featured, nil
}

func (s *InMemory) CreateEntry(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ChallengeID == e.ChallengeID && existing.ParticipantID == e.ParticipantID {
			return ErrConflict
		}
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	cp := *e
	s.entries[e.ID] = &cp
	return nil
}

func (s *InMemory) UpdateEntry(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; !ok {
		return ErrNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	s.entries[e.ID] = &cp
	return nil
}

func (s *InMemory) FindEntry(ctx context.Context, challengeID, participantID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ChallengeID == challengeID && e.ParticipantID == participantID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) Members(ctx context.Context, challengeID string, rulesVersion, limit, offset int) ([]Member, int, error) {
	s.mu.RLock()
	var matched []*Entry
	for _, e := range s.entries {
		if e.ChallengeID == challengeID && e.Status == EntryApproved && e.RulesAcceptedVersion == rulesVersion {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	members := make([]Member, 0, len(matched))
	for _, e := range matched {
		p, err := s.people.Find(ctx, e.ParticipantID)
		if err != nil {
			continue
		}
		members = append(members, Member{
			ParticipantID: p.ID,
			Name:          p.Name,
			Slug:          p.Slug,
			AvatarURL:     p.AvatarURL,
			Affiliation:   p.Affiliation,
			CountryCode:   p.CountryCode,
			JoinedAt:      e.CreatedAt,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})

	total := len(members)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return members[offset:end], total, nil
}
