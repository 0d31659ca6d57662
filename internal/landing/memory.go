package landing

import (
	"context"
	"sort"
	"sync"

	"crowdlab.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store for tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	partners []Partner
	posts    []BlogPost
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// AddPartner stores a partner row.
func (s *InMemory) AddPartner(p Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	s.partners = append(s.partners, p)
}

// AddPost stores a blog post row.
func (s *InMemory) AddPost(p BlogPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	s.posts = append(s.posts, p)
}

func (s *InMemory) VisiblePartners(ctx context.Context, limit int) ([]Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible []Partner
	for _, p := range s.partners {
		if p.Visible {
			visible = append(visible, p)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		return visible[i].Sequence < visible[j].Sequence
	})
	if len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

func (s *InMemory) PublishedPosts(ctx context.Context, limit int) ([]BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var published []BlogPost
	for _, p := range s.posts {
		if p.Published && p.PublishedAt != nil {
			published = append(published, p)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].PublishedAt.After(*published[j].PublishedAt)
	})
	if len(published) > limit {
		published = published[:limit]
	}
	return published, nil
}
