package websocket

import (
	"context"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/cache"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/store"
	"go.uber.org/zap"
)

// PresenceTracker mirrors registry state into the durable stores: the
// online flag on the user row and the last-seen timestamp in Redis.
// Both writes are best-effort and asynchronous; the registry alone
// answers "who is online right now".
type PresenceTracker struct {
	users store.UserStore
	cache *cache.RedisClient
}

// NewPresenceTracker creates the tracker. Either store may be nil.
func NewPresenceTracker(users store.UserStore, rc *cache.RedisClient) *PresenceTracker {
	return &PresenceTracker{users: users, cache: rc}
}

// RegisterHooks attaches the tracker to hub lifecycle events.
func (pt *PresenceTracker) RegisterHooks(hub *Hub) {
	hub.OnConnect(func(c *Client) {
		go pt.record(c.UserID, true)
	})
	hub.OnDisconnect(func(c *Client) {
		go pt.record(c.UserID, false)
	})
}

// record writes the presence change, detached from the event loop.
func (pt *PresenceTracker) record(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()

	if pt.users != nil {
		if err := pt.users.SetOnline(ctx, userID, online); err != nil {
			logger.Log.Warn("Failed to update online flag",
				logger.WithUserID(userID), zap.Error(err))
		}
	}

	if pt.cache != nil {
		if err := pt.cache.TouchLastSeen(ctx, userID, now); err != nil {
			logger.Log.Warn("Failed to update last-seen",
				logger.WithUserID(userID), zap.Error(err))
		}
	}
}
