package models

import (
	"time"

	"gorm.io/gorm"
)

// CallStatus is the lifecycle state of a persisted call session.
type CallStatus string

const (
	CallStatusRinging CallStatus = "ringing"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
)

// Call is the persisted record of a signaling session. It is created when
// a user initiates a call, marked active when the callee joins the room,
// and terminal once EndedAt is set. Signaling and persistence are not
// transactionally linked: a failed update is reported to the initiator as
// a channel error but already-relayed events stand.
type Call struct {
	ID          string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RoomID      string     `gorm:"uniqueIndex;not null" json:"room_id"`
	InitiatorID string     `gorm:"not null;index" json:"initiator_id"`
	Status      CallStatus `gorm:"not null;default:'ringing'" json:"status"`

	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	Participants []CallParticipant `gorm:"foreignKey:CallID" json:"participants,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CallParticipant records one user's membership in a call, joined or
// merely invited. JoinedAt stays nil for invitees who never accepted.
type CallParticipant struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	CallID string `gorm:"not null;index" json:"call_id"`
	UserID string `gorm:"not null;index" json:"user_id"`

	JoinedAt *time.Time `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
