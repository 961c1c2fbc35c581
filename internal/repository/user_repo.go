package repository

import (
	"context"
	"errors"
	"fmt"

	"cmsmini/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
	// DeleteWithPosts removes the user and all posts they own in one
	// transaction and returns the image filenames of the deleted posts so
	// the caller can clean up asset storage.
	DeleteWithPosts(ctx context.Context, id int) ([]string, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (username, password_hash, role, created_at)
            VALUES ($1, $2, $3, $4) RETURNING id`
	err := r.db.QueryRow(ctx, sql, user.Username, user.PasswordHash, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByUsername retrieves a user by their username (case-sensitive exact match)
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	sql := `SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`
	err := r.db.QueryRow(ctx, sql, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found is not an error for this method's contract, service layer handles it
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id int) (*model.User, error) {
	user := &model.User{}
	sql := `SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, sql, id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// DeleteWithPosts makes the ownership cascade explicit rather than leaning on
// the FK ON DELETE CASCADE alone: posts are deleted in the same transaction
// and their image filenames are collected for asset cleanup.
func (r *userRepository) DeleteWithPosts(ctx context.Context, id int) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT image_filename FROM posts WHERE author_id = $1 AND image_filename IS NOT NULL`, id)
	if err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to collect post images: %w", err)
	}
	var images []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to scan post image row: %w", err)
		}
		images = append(images, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("error iterating post image rows: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE author_id = $1`, id); err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to delete user posts: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return images, nil
}
