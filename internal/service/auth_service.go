package service

import (
	"context"
	"errors"
	"fmt"

	"cmsmini/internal/model"
	"cmsmini/internal/repository"
	"cmsmini/internal/utils"
)

var (
	// ErrInvalidCredentials covers both "no such user" and "wrong password"
	// so login responses cannot be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// dummyHash keeps the bcrypt comparison on the unknown-user path, so both
// failure branches cost roughly the same.
var dummyHash, _ = utils.HashPassword("not-a-real-password")

// AuthService verifies credentials and issues session tokens
type AuthService interface {
	Login(ctx context.Context, username, password string) (*model.User, string, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtUtil  *utils.JWTUtil
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtUtil:  jwtUtil,
	}
}

// Login authenticates a user and returns a JWT token.
// There is deliberately no rate limiting or lockout here; callers that need
// it must provide it at the boundary.
func (s *authService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("error finding user by username: %w", err)
	}
	if user == nil {
		utils.CheckPasswordHash(password, dummyHash)
		return nil, "", ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}
