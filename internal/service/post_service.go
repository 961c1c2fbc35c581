package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"cmsmini/internal/model"
	"cmsmini/internal/policy"
	"cmsmini/internal/repository"
	"cmsmini/internal/storage"
	"cmsmini/internal/utils"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrForbidden    = errors.New("forbidden: user does not have permission for this action")
)

// MaxImageSize limits uploaded images to 16MB
const MaxImageSize = 16 * 1024 * 1024

// PostService orchestrates the post lifecycle: validation, authorization,
// image-file association and persistence.
type PostService interface {
	Create(ctx context.Context, authorID int, in model.PostInput) (*model.Post, error)
	Get(ctx context.Context, postID int64, userID int, role string) (*model.Post, error)
	List(ctx context.Context, userID int, role string) ([]model.Post, error)
	Update(ctx context.Context, postID int64, userID int, role string, in model.PostInput) (*model.Post, error)
	Delete(ctx context.Context, postID int64, userID int, role string) error

	// Admin methods
	Stats(ctx context.Context) ([]model.AuthorStat, error)
	ExportCSV(ctx context.Context) (*bytes.Buffer, error)
}

type postService struct {
	repo   repository.PostRepository
	assets storage.AssetStore
}

// NewPostService creates a new PostService
func NewPostService(repo repository.PostRepository, assets storage.AssetStore) PostService {
	return &postService{repo: repo, assets: assets}
}

// validateInput collects every field error before anything is persisted, so a
// failed request is all-or-nothing. hasExistingImage tells it whether the post
// already carries an image, which keeps alt text mandatory on update.
func validateInput(in model.PostInput, hasExistingImage bool) model.ValidationErrors {
	errs := model.ValidationErrors{}

	if strings.TrimSpace(in.Title) == "" {
		errs["title"] = "title must not be empty"
	}
	if strings.TrimSpace(in.Content) == "" {
		errs["content"] = "content must not be empty"
	}

	if in.Image != nil {
		if !utils.AllowedImageExt(in.Image.Filename) {
			errs["image"] = "unsupported file format, use PNG, JPG, JPEG or GIF"
		} else if in.Image.Size > MaxImageSize {
			errs["image"] = "image exceeds the 16MB size limit"
		}
	}
	// Alt text is only required when an image accompanies the post.
	if (in.Image != nil || hasExistingImage) && strings.TrimSpace(in.ImageAltText) == "" {
		errs["image_alt_text"] = "alt text is required for image accessibility"
	}

	return errs
}

// saveUpload stores the uploaded bytes under a freshly generated filename and
// returns that name. The client-supplied name is only consulted for its
// extension.
func (s *postService) saveUpload(fh *multipart.FileHeader) (string, error) {
	name := utils.GeneratedImageName(fh.Filename)
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := s.assets.Save(name, src); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return name, nil
}

// Create validates the input, stores the image (if any) and inserts the post.
// The author is always the authenticated caller, never a client-supplied field.
func (s *postService) Create(ctx context.Context, authorID int, in model.PostInput) (*model.Post, error) {
	if errs := validateInput(in, false); len(errs) > 0 {
		return nil, errs
	}

	post := &model.Post{
		Title:     strings.TrimSpace(in.Title),
		Content:   strings.TrimSpace(in.Content),
		AuthorID:  authorID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if in.Image != nil {
		name, err := s.saveUpload(in.Image)
		if err != nil {
			return nil, err
		}
		alt := strings.TrimSpace(in.ImageAltText)
		post.ImageFilename = &name
		post.ImageAltText = &alt
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if post.ImageFilename != nil {
			// Insert failed after the image was written; remove the file so
			// nothing references it.
			if delErr := s.assets.Delete(*post.ImageFilename); delErr != nil {
				log.Printf("Failed to clean up image %s after insert failure: %v", *post.ImageFilename, delErr)
			}
		}
		return nil, fmt.Errorf("failed to create post in repo: %w", err)
	}
	return post, nil
}

// Get returns the post if the caller is allowed to view it
func (s *postService) Get(ctx context.Context, postID int64, userID int, role string) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if !policy.CanView(userID, role, post) {
		return nil, ErrForbidden
	}
	return post, nil
}

// List returns every post for admins and only owned posts for editors,
// newest first in both cases.
func (s *postService) List(ctx context.Context, userID int, role string) ([]model.Post, error) {
	var posts []model.Post
	var err error
	if role == model.RoleAdmin {
		posts, err = s.repo.FindAll(ctx)
	} else {
		posts, err = s.repo.FindByAuthor(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// Update applies the full set of field changes, or none of them. When a new
// image is uploaded it is written durably before the old file is removed, so
// a failure never leaves the post without its image.
func (s *postService) Update(ctx context.Context, postID int64, userID int, role string, in model.PostInput) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post for update: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if !policy.CanEdit(userID, role, post) {
		return nil, ErrForbidden
	}

	if errs := validateInput(in, post.ImageFilename != nil); len(errs) > 0 {
		return nil, errs
	}

	oldImage := post.ImageFilename
	post.Title = strings.TrimSpace(in.Title)
	post.Content = strings.TrimSpace(in.Content)

	var newImage *string
	if in.Image != nil {
		name, err := s.saveUpload(in.Image)
		if err != nil {
			return nil, err
		}
		newImage = &name
		post.ImageFilename = &name
	}
	if post.ImageFilename != nil {
		alt := strings.TrimSpace(in.ImageAltText)
		post.ImageAltText = &alt
	}
	post.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, post); err != nil {
		if newImage != nil {
			if delErr := s.assets.Delete(*newImage); delErr != nil {
				log.Printf("Failed to clean up image %s after update failure: %v", *newImage, delErr)
			}
		}
		return nil, fmt.Errorf("failed to update post in repo: %w", err)
	}

	// The row now references the new file; the old one can go.
	if newImage != nil && oldImage != nil {
		if err := s.assets.Delete(*oldImage); err != nil {
			log.Printf("Failed to remove replaced image %s: %v", *oldImage, err)
		}
	}
	return post, nil
}

// Delete removes the post and its image asset. A missing image file on disk
// is not an error.
func (s *postService) Delete(ctx context.Context, postID int64, userID int, role string) error {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to find post for deletion: %w", err)
	}
	if post == nil {
		return ErrPostNotFound
	}
	if !policy.CanDelete(userID, role, post) {
		return ErrForbidden
	}

	if post.ImageFilename != nil {
		if err := s.assets.Delete(*post.ImageFilename); err != nil {
			log.Printf("Failed to remove image %s of deleted post %d: %v", *post.ImageFilename, postID, err)
		}
	}

	if err := s.repo.Delete(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to delete post in repo: %w", err)
	}
	return nil
}

// --- Admin Methods ---

// Stats returns per-author post counts
func (s *postService) Stats(ctx context.Context) ([]model.AuthorStat, error) {
	stats, err := s.repo.CountByAuthor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get post stats: %w", err)
	}
	return stats, nil
}

// ExportCSV renders every post as CSV for the admin export endpoint
func (s *postService) ExportCSV(ctx context.Context) (*bytes.Buffer, error) {
	posts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for CSV export: %w", err)
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	header := []string{"ID", "AuthorID", "Title", "Content", "ImageFilename", "ImageAltText", "CreatedAt", "UpdatedAt"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range posts {
		var image, alt string
		if p.ImageFilename != nil {
			image = *p.ImageFilename
		}
		if p.ImageAltText != nil {
			alt = *p.ImageAltText
		}
		row := []string{
			strconv.FormatInt(p.ID, 10),
			strconv.Itoa(p.AuthorID),
			p.Title,
			p.Content,
			image,
			alt,
			p.CreatedAt.Format(time.RFC3339),
			p.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}

	return buffer, nil
}
