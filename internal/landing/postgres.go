package landing

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) VisiblePartners(ctx context.Context, limit int) ([]Partner, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, image_url, link_url, visible, sequence, created_at
		from partners
		where visible
		order by sequence asc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		var p Partner
		var link sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &link, &p.Visible, &p.Sequence, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.LinkURL = link.String
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (s *PGStore) PublishedPosts(ctx context.Context, limit int) ([]BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, slug, excerpt, image_url, participant_id, published, published_at, created_at
		from blogs
		where published and published_at is not null
		order by published_at desc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		var p BlogPost
		var author sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.ImageURL, &author, &p.Published, &p.PublishedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.AuthorID = author.String
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
