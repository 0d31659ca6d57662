// Package landing aggregates the public landing page: featured challenges,
// partner logos, recent blog posts and the newest participants.
package landing

import (
	"context"
	"time"
)

// Section sizes for the landing page.
const (
	FeaturedChallenges = 3
	VisiblePartners    = 8
	RecentPosts        = 4
	NewestParticipants = 5
)

// Partner is a sponsor or partner logo shown on the landing page.
type Partner struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url,omitempty"`
	Visible  bool   `json:"-"`
	Sequence int    `json:"-"`

	CreatedAt time.Time `json:"-"`
}

// BlogPost is a published article teaser.
type BlogPost struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Excerpt  string `json:"excerpt,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	AuthorID string `json:"author_id,omitempty"`

	Published   bool       `json:"-"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"-"`
}

// Store is the persistence boundary for landing page content.
type Store interface {
	// VisiblePartners returns up to limit visible partners by sequence.
	VisiblePartners(ctx context.Context, limit int) ([]Partner, error)

	// PublishedPosts returns up to limit published posts, newest first.
	PublishedPosts(ctx context.Context, limit int) ([]BlogPost, error)
}
