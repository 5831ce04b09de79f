package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a Messenger account. Registration, authentication and
// profile editing happen in the HTTP application; the gateway only reads
// these rows to resolve the safe profile attached to a connection.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	AvatarURL   string `json:"avatar_url"`

	// Activity tracking, maintained by the gateway
	LastActiveAt *time.Time `json:"last_active_at"`
	IsOnline     bool       `gorm:"default:false" json:"is_online"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// SafeUser is the subset of User that may be shown to other users.
// It is what travels in roster broadcasts and online notifications.
type SafeUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Safe returns the publicly visible projection of the user.
func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}
