package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "todocal/internal/errors"
	"todocal/internal/model"
)

// UserRepository stores accounts keyed by a case-insensitive email.
type UserRepository interface {
	// Create inserts user with its email lowercased. A taken email yields errors.ErrEmailTaken.
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	// FindByEmail ignores case and surrounding whitespace.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
// The DB must be opened with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CanonicalEmail is the stored form of an email address.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = CanonicalEmail(user.Email)
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrEmailTaken
	}
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", CanonicalEmail(email)).
		Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
