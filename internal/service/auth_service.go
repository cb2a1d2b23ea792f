package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"todocal/internal/auth"
	apperrors "todocal/internal/errors"
	"todocal/internal/model"
	"todocal/internal/repository"
)

const bcryptCost = 10

// AuthService handles registration, login and session lifecycle.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (string, *model.UserSummary, error)
	Login(ctx context.Context, email, password string) (string, *model.UserSummary, error)
	Me(ctx context.Context, userID uint) (*model.UserSummary, error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// Register creates a user with a hashed password and opens a session for it.
// Email uniqueness is enforced by the repository, which reports a taken address as ErrEmailTaken.
func (s *authService) Register(ctx context.Context, email, password, name string) (string, *model.UserSummary, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        repository.CanonicalEmail(email),
		PasswordHash: string(hashedPassword),
		Name:         strings.TrimSpace(name),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailTaken) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

// Login verifies credentials. Unknown email and wrong password yield the same error.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.UserSummary, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me returns the stored profile of the session's user.
func (s *authService) Me(ctx context.Context, userID uint) (*model.UserSummary, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	summary := user.Summary()
	return &summary, nil
}

// Logout revokes the session token until it would have expired.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return apperrors.ErrUnauthenticated
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.tokenStore.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *authService) issue(user *model.User) (string, *model.UserSummary, error) {
	token, err := s.jwtService.GenerateSessionToken(user.ID, user.Email, user.Name)
	if err != nil {
		return "", nil, fmt.Errorf("generate session token: %w", err)
	}
	summary := user.Summary()
	return token, &summary, nil
}
