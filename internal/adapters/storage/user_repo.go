package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"gorm.io/gorm"
)

// Ensure interface compliance
var _ ports.UserRepository = (*SQLAdapter)(nil)

// SaveUser creates or updates a user.
func (a *SQLAdapter) SaveUser(ctx context.Context, user domain.User) error {
	model := userToModel(user)
	return a.db.WithContext(ctx).Save(&model).Error
}

// GetUserByUsername retrieves a user by their username.
func (a *SQLAdapter) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	if err := a.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return nil, err
	}
	user := userToDomain(model)
	return &user, nil
}

// ListUsers returns all users.
func (a *SQLAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := a.db.WithContext(ctx).Order("username").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, len(models))
	for i, m := range models {
		users[i] = userToDomain(m)
	}
	return users, nil
}
