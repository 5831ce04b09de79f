// Package store provides the persistence layer for call sessions and
// user presence flags. Stores wrap a gorm.DB and are passed explicitly
// to the components that need them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"gorm.io/gorm"
)

// CallStore persists call session records. The socket layer treats every
// method as best-effort: a failure is surfaced to the initiating sender
// as a channel error and never rolls back signaling already relayed.
type CallStore interface {
	Create(ctx context.Context, call *models.Call) error
	MarkStarted(ctx context.Context, roomID string, at time.Time) error
	MarkEnded(ctx context.Context, roomID string, at time.Time) error
	AddParticipant(ctx context.Context, roomID, userID string, joinedAt *time.Time) error
	MarkJoined(ctx context.Context, roomID, userID string, at time.Time) error
	MarkLeft(ctx context.Context, roomID, userID string, at time.Time) error
	GetByRoom(ctx context.Context, roomID string) (*models.Call, error)
	HistoryForUser(ctx context.Context, userID string, limit int) ([]models.Call, error)
}

// GormCallStore is the gorm-backed CallStore.
type GormCallStore struct {
	db *gorm.DB
}

// NewCallStore creates a CallStore on top of the given connection.
func NewCallStore(db *gorm.DB) *GormCallStore {
	return &GormCallStore{db: db}
}

// Create inserts a new call record in ringing state.
func (s *GormCallStore) Create(ctx context.Context, call *models.Call) error {
	if call.Status == "" {
		call.Status = models.CallStatusRinging
	}
	if err := s.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

// MarkStarted sets the start time and flips the call to active.
func (s *GormCallStore) MarkStarted(ctx context.Context, roomID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Call{}).
		Where("room_id = ? AND started_at IS NULL", roomID).
		Updates(map[string]interface{}{
			"started_at": at,
			"status":     models.CallStatusActive,
		})
	if res.Error != nil {
		return fmt.Errorf("mark call started: %w", res.Error)
	}
	return nil
}

// MarkEnded sets the end time, making the record terminal. Calls already
// ended are left untouched so the first end wins.
func (s *GormCallStore) MarkEnded(ctx context.Context, roomID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Call{}).
		Where("room_id = ? AND ended_at IS NULL", roomID).
		Updates(map[string]interface{}{
			"ended_at": at,
			"status":   models.CallStatusEnded,
		})
	if res.Error != nil {
		return fmt.Errorf("mark call ended: %w", res.Error)
	}
	return nil
}

// AddParticipant records a user attached to the call. joinedAt is nil for
// invitees that have not accepted yet.
func (s *GormCallStore) AddParticipant(ctx context.Context, roomID, userID string, joinedAt *time.Time) error {
	call, err := s.GetByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	p := models.CallParticipant{
		CallID:   call.ID,
		UserID:   userID,
		JoinedAt: joinedAt,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return fmt.Errorf("add call participant: %w", err)
	}
	return nil
}

// MarkJoined sets the join time on an invited participant.
func (s *GormCallStore) MarkJoined(ctx context.Context, roomID, userID string, at time.Time) error {
	call, err := s.GetByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.CallParticipant{}).
		Where("call_id = ? AND user_id = ? AND joined_at IS NULL", call.ID, userID).
		Update("joined_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark participant joined: %w", res.Error)
	}
	return nil
}

// MarkLeft sets the leave time on a participant.
func (s *GormCallStore) MarkLeft(ctx context.Context, roomID, userID string, at time.Time) error {
	call, err := s.GetByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.CallParticipant{}).
		Where("call_id = ? AND user_id = ? AND left_at IS NULL", call.ID, userID).
		Update("left_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark participant left: %w", res.Error)
	}
	return nil
}

// GetByRoom fetches a call with its participants by room id.
func (s *GormCallStore) GetByRoom(ctx context.Context, roomID string) (*models.Call, error) {
	var call models.Call
	err := s.db.WithContext(ctx).Preload("Participants").
		Where("room_id = ?", roomID).First(&call).Error
	if err != nil {
		return nil, fmt.Errorf("get call by room: %w", err)
	}
	return &call, nil
}

// HistoryForUser returns the most recent calls a user took part in.
func (s *GormCallStore) HistoryForUser(ctx context.Context, userID string, limit int) ([]models.Call, error) {
	if limit <= 0 {
		limit = 50
	}
	var calls []models.Call
	err := s.db.WithContext(ctx).
		Joins("JOIN call_participants cp ON cp.call_id = calls.id").
		Where("cp.user_id = ? OR calls.initiator_id = ?", userID, userID).
		Order("calls.created_at DESC").
		Limit(limit).
		Distinct().
		Preload("Participants").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("call history: %w", err)
	}
	return calls, nil
}
