package model

import (
	"mime/multipart"
	"sort"
	"strings"
	"time"
)

// Post represents a content record owned by exactly one user
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ImageFilename *string   `json:"image_filename,omitempty"` // Pointer for optional field
	ImageAltText  *string   `json:"image_alt_text,omitempty"`
	AuthorID      int       `json:"author_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PostInput carries the parsed form fields for creating or updating a post.
// Image is nil when no file was uploaded.
type PostInput struct {
	Title        string
	Content      string
	ImageAltText string
	Image        *multipart.FileHeader
}

// AuthorStat represents per-author post counts for the admin overview
type AuthorStat struct {
	AuthorID  int    `json:"author_id"`
	Username  string `json:"username"`
	PostCount int64  `json:"post_count"`
}

// ValidationErrors maps a form field name to a human-readable message.
// It is an ordinary error value: validation failures are expected outcomes,
// not exceptional control flow.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}
