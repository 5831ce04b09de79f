package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing.
// Tables are created manually with SQLite-compatible syntax; GORM
// AutoMigrate would emit PostgreSQL-specific defaults like
// gen_random_uuid.
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			username TEXT NOT NULL,
			display_name TEXT NOT NULL,
			avatar_url TEXT,
			last_active_at DATETIME,
			is_online INTEGER DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)
	`).Error
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE calls (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL UNIQUE,
			initiator_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ringing',
			started_at DATETIME,
			ended_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)
	`).Error
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE call_participants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at DATETIME,
			left_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error
	require.NoError(t, err)

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:          uuid.NewString(),
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: "User " + username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createCall(t *testing.T, s CallStore, roomID, initiatorID, calleeID string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.Create(context.Background(), &models.Call{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		InitiatorID: initiatorID,
		Participants: []models.CallParticipant{
			{UserID: initiatorID, JoinedAt: &now},
			{UserID: calleeID},
		},
	}))
}

func TestUserStoreGetByID(t *testing.T) {
	db := setupTestDB(t)
	s := NewUserStore(db)

	user := createUser(t, db, "alice")

	got, err := s.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStoreSetOnline(t *testing.T) {
	db := setupTestDB(t)
	s := NewUserStore(db)

	user := createUser(t, db, "alice")
	require.NoError(t, s.SetOnline(context.Background(), user.ID, true))

	got, err := s.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	require.NotNil(t, got.LastActiveAt)

	require.NoError(t, s.SetOnline(context.Background(), user.ID, false))
	got, err = s.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
}

func TestCallStoreCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)

	createCall(t, s, "room-1", "alice", "bob")

	call, err := s.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", call.InitiatorID)
	assert.Equal(t, models.CallStatusRinging, call.Status)
	assert.Len(t, call.Participants, 2)

	_, err = s.GetByRoom(context.Background(), "nope")
	assert.Error(t, err)
}

func TestCallStoreLifecycle(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	createCall(t, s, "room-1", "alice", "bob")

	start := time.Now().UTC()
	require.NoError(t, s.MarkJoined(ctx, "room-1", "bob", start))
	require.NoError(t, s.MarkStarted(ctx, "room-1", start))

	call, err := s.GetByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusActive, call.Status)
	require.NotNil(t, call.StartedAt)

	for _, p := range call.Participants {
		assert.NotNil(t, p.JoinedAt, "participant %s should have joined", p.UserID)
	}

	end := start.Add(time.Minute)
	require.NoError(t, s.MarkLeft(ctx, "room-1", "alice", end))
	require.NoError(t, s.MarkLeft(ctx, "room-1", "bob", end))
	require.NoError(t, s.MarkEnded(ctx, "room-1", end))

	call, err = s.GetByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusEnded, call.Status)
	require.NotNil(t, call.EndedAt)
}

func TestCallStoreFirstEndWins(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	createCall(t, s, "room-1", "alice", "bob")

	first := time.Now().UTC()
	require.NoError(t, s.MarkEnded(ctx, "room-1", first))

	// A second end (say, the other participant's disconnect racing the
	// hangup) leaves the recorded time alone
	require.NoError(t, s.MarkEnded(ctx, "room-1", first.Add(time.Hour)))

	call, err := s.GetByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.WithinDuration(t, first, *call.EndedAt, time.Second)
}

func TestCallStoreMarkStartedIdempotent(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	createCall(t, s, "room-1", "alice", "bob")

	first := time.Now().UTC()
	require.NoError(t, s.MarkStarted(ctx, "room-1", first))
	require.NoError(t, s.MarkStarted(ctx, "room-1", first.Add(time.Hour)))

	call, err := s.GetByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.WithinDuration(t, first, *call.StartedAt, time.Second)
}

func TestCallStoreHistoryForUser(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	createCall(t, s, "room-1", "alice", "bob")
	createCall(t, s, "room-2", "bob", "carol")
	createCall(t, s, "room-3", "carol", "dave")

	history, err := s.HistoryForUser(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = s.HistoryForUser(ctx, "dave", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "room-3", history[0].RoomID)

	history, err = s.HistoryForUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCallStoreAddParticipant(t *testing.T) {
	db := setupTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	createCall(t, s, "room-1", "alice", "bob")
	require.NoError(t, s.AddParticipant(ctx, "room-1", "carol", nil))

	call, err := s.GetByRoom(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, call.Participants, 3)
}
