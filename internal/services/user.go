package services

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"

	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// UserService handles signup and credential checks.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService { return &UserService{store: s} }

const minPasswordLen = 8

// Signup registers a new user with a bcrypt-hashed password.
func (s *UserService) Signup(ctx context.Context, email, password string, displayName *string) (*model.User, error) {
	if !strfmt.Default.Validates("email", email) {
		return nil, fmt.Errorf("%w: invalid email address", model.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, minPasswordLen)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	return s.store.Users().Create(ctx, u)
}

// Authenticate verifies credentials and returns the user. A wrong email and a
// wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, model.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, model.ErrUnauthorized
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, model.ErrUnauthorized
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}
