package repository

import (
	"context"
	"errors"
	"fmt"

	"cmsmini/internal/model"

	"github.com/jackc/pgx/v5"
)

// PostRepository defines operations for post data
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id int64) (*model.Post, error)
	FindByAuthor(ctx context.Context, authorID int) ([]model.Post, error)
	FindAll(ctx context.Context) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
	CountByAuthor(ctx context.Context) ([]model.AuthorStat, error)
}

type postRepository struct {
	db DB
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a new post into the database
func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	sql := `INSERT INTO posts (title, content, image_filename, image_alt_text, author_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, sql, p.Title, p.Content, p.ImageFilename, p.ImageAltText, p.AuthorID, p.CreatedAt, p.UpdatedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// FindByID retrieves a post by its ID
func (r *postRepository) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	p := &model.Post{}
	sql := `SELECT id, title, content, image_filename, image_alt_text, author_id, created_at, updated_at
            FROM posts WHERE id = $1`
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&p.ID, &p.Title, &p.Content, &p.ImageFilename, &p.ImageAltText,
		&p.AuthorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return p, nil
}

// FindByAuthor retrieves all posts owned by one user, newest first
func (r *postRepository) FindByAuthor(ctx context.Context, authorID int) ([]model.Post, error) {
	sql := `SELECT id, title, content, image_filename, image_alt_text, author_id, created_at, updated_at
            FROM posts WHERE author_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, sql, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts by author: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// FindAll retrieves every post across all owners, newest first
func (r *postRepository) FindAll(ctx context.Context) ([]model.Post, error) {
	sql := `SELECT id, title, content, image_filename, image_alt_text, author_id, created_at, updated_at
            FROM posts ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query all posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

func scanPosts(rows pgx.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Content, &p.ImageFilename, &p.ImageAltText,
			&p.AuthorID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	return posts, nil
}

// Update modifies an existing post
func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	sql := `UPDATE posts
            SET title = $1, content = $2, image_filename = $3, image_alt_text = $4, updated_at = NOW()
            WHERE id = $5 RETURNING updated_at`
	err := r.db.QueryRow(ctx, sql, p.Title, p.Content, p.ImageFilename, p.ImageAltText, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete removes a post from the database
func (r *postRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByAuthor returns per-author post counts for the admin overview
func (r *postRepository) CountByAuthor(ctx context.Context) ([]model.AuthorStat, error) {
	sql := `SELECT u.id, u.username, COUNT(p.id) AS post_count
            FROM users u LEFT JOIN posts p ON p.author_id = u.id
            GROUP BY u.id, u.username ORDER BY post_count DESC, u.username`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query post counts: %w", err)
	}
	defer rows.Close()

	var stats []model.AuthorStat
	for rows.Next() {
		var s model.AuthorStat
		if err := rows.Scan(&s.AuthorID, &s.Username, &s.PostCount); err != nil {
			return nil, fmt.Errorf("failed to scan author stat row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating author stat rows: %w", err)
	}
	return stats, nil
}
