package landing

import (
	"context"
	"errors"
	"time"

	"crowdlab.org/internal/challenge"
	"crowdlab.org/internal/participant"
)

// Profile is the public participant summary shown in the newest-members
// strip. No email or account state leaks here.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	AvatarURL string    `json:"avatar_url"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Page is the full landing page payload.
type Page struct {
	Challenges   []*challenge.Challenge `json:"challenges"`
	Partners     []Partner              `json:"partners"`
	Posts        []BlogPost             `json:"posts"`
	Participants []Profile              `json:"participants"`
}

// Service assembles the landing page from the challenge, content and
// participant stores.
type Service struct {
	store      Store
	challenges *challenge.Service
	people     participant.Store
}

// NewService constructs a Service.
func NewService(store Store, challenges *challenge.Service, people participant.Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("landing store is required")
	}
	if challenges == nil {
		return nil, errors.New("challenge service is required")
	}
	if people == nil {
		return nil, errors.New("participant store is required")
	}
	return &Service{store: store, challenges: challenges, people: people}, nil
}

// Build assembles one landing page. Any section failure fails the page.
func (s *Service) Build(ctx context.Context) (*Page, error) {
	featured, err := s.challenges.Featured(ctx, FeaturedChallenges)
	if err != nil {
		return nil, err
	}
	partners, err := s.store.VisiblePartners(ctx, VisiblePartners)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.PublishedPosts(ctx, RecentPosts)
	if err != nil {
		return nil, err
	}
	newest, err := s.people.Newest(ctx, NewestParticipants)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(newest))
	for _, p := range newest {
		profiles = append(profiles, Profile{
			ID:        p.ID,
			Name:      p.Name,
			Slug:      p.Slug,
			AvatarURL: p.DisplayAvatarURL(),
			JoinedAt:  p.CreatedAt,
		})
	}

	return &Page{
		Challenges:   featured,
		Partners:     partners,
		Posts:        posts,
		Participants: profiles,
	}, nil
}
