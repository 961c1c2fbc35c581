package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cmsmini/internal/model"
	"cmsmini/internal/repository"
	"cmsmini/internal/storage"
	"cmsmini/internal/utils"
)

var (
	ErrUserAlreadyExists = errors.New("user with this username already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidRole       = errors.New("role must be admin or editor")
	ErrSelfDelete        = errors.New("cannot delete your own account")
)

// UserService provides the administrative provisioning path: creating
// accounts and deleting them together with everything they own.
type UserService interface {
	Create(ctx context.Context, username, password, role string) (*model.User, error)
	Delete(ctx context.Context, requesterID, targetID int) error
}

type userService struct {
	userRepo repository.UserRepository
	assets   storage.AssetStore
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository, assets storage.AssetStore) UserService {
	return &userService{userRepo: userRepo, assets: assets}
}

// Create provisions a new account with the given role
func (s *userService) Create(ctx context.Context, username, password, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if !model.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}
	return user, nil
}

// Delete removes a user and cascades to their posts in one transaction.
// Image assets of the deleted posts are removed afterwards, best effort:
// an orphaned file is preferable to a dangling database reference.
func (s *userService) Delete(ctx context.Context, requesterID, targetID int) error {
	if requesterID == targetID {
		return ErrSelfDelete
	}

	images, err := s.userRepo.DeleteWithPosts(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	for _, name := range images {
		if err := s.assets.Delete(name); err != nil {
			log.Printf("Failed to remove image %s of deleted user %d: %v", name, targetID, err)
		}
	}
	return nil
}
