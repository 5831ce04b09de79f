package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when no account matches the given id.
var ErrUserNotFound = errors.New("user not found")

// UserStore reads account rows and maintains the online flag the gateway
// owns. Account creation and editing belong to the HTTP application.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
}

// GormUserStore is the gorm-backed UserStore.
type GormUserStore struct {
	db *gorm.DB
}

// NewUserStore creates a UserStore on top of the given connection.
func NewUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

// GetByID fetches a user by primary key.
func (s *GormUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// SetOnline updates the online flag and last-active timestamp.
func (s *GormUserStore) SetOnline(ctx context.Context, id string, online bool) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":      online,
			"last_active_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("set user online flag: %w", err)
	}
	return nil
}
