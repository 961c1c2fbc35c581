package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"cmsmini/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postColumns = []string{"id", "title", "content", "image_filename", "image_alt_text", "author_id", "created_at", "updated_at"}

func TestPostRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	now := time.Now()
	image := "cafe0123cafe0123cafe0123cafe0123.png"
	alt := "logo"
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO posts (title, content, image_filename, image_alt_text, author_id, created_at, updated_at)`)).
		WithArgs("title", "content", &image, &alt, 1, now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	post := &model.Post{
		Title: "title", Content: "content",
		ImageFilename: &image, ImageAltText: &alt,
		AuthorID: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), post))
	assert.Equal(t, int64(5), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_FindByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM posts WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	post, err := repo.FindByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_FindAll_OrderedNewestFirst(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts ORDER BY created_at DESC`)).
		WillReturnRows(pgxmock.NewRows(postColumns).
			AddRow(int64(2), "newer", "c", nil, nil, 1, now, now).
			AddRow(int64(1), "older", "c", nil, nil, 2, now.Add(-time.Hour), now.Add(-time.Hour)))

	posts, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].Title)
	assert.Nil(t, posts[0].ImageFilename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_FindByAuthor(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	now := time.Now()
	image := "cafe0123cafe0123cafe0123cafe0123.png"
	alt := "alt"
	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts WHERE author_id = $1 ORDER BY created_at DESC`)).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(postColumns).
			AddRow(int64(1), "mine", "c", &image, &alt, 2, now, now))

	posts, err := repo.FindByAuthor(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].ImageFilename)
	assert.Equal(t, image, *posts[0].ImageFilename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Update_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE posts`)).
		WithArgs("t", "c", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(404)).
		WillReturnError(pgx.ErrNoRows)

	post := &model.Post{ID: 404, Title: "t", Content: "c"}
	err := repo.Update(context.Background(), post)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Delete_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id = $1`)).
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Delete_DBError(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnError(errors.New("connection lost"))

	err := repo.Delete(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_CountByAuthor(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN posts p ON p.author_id = u.id`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "post_count"}).
			AddRow(1, "admin", int64(3)).
			AddRow(2, "editor", int64(0)))

	stats, err := repo.CountByAuthor(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "admin", stats[0].Username)
	assert.Equal(t, int64(3), stats[0].PostCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
