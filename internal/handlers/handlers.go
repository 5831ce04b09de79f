package handlers

import (
	"github.com/makebelieve-sk/Messenger-sub000/internal/cache"
	"github.com/makebelieve-sk/Messenger-sub000/internal/store"
	"github.com/makebelieve-sk/Messenger-sub000/internal/websocket"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db       *gorm.DB
	redis    *cache.RedisClient
	hub      *websocket.Hub
	notifier *websocket.Notifier
	calls    store.CallStore
	users    store.UserStore
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, redis *cache.RedisClient, hub *websocket.Hub, notifier *websocket.Notifier, calls store.CallStore, users store.UserStore) *Handlers {
	return &Handlers{
		db:       db,
		redis:    redis,
		hub:      hub,
		notifier: notifier,
		calls:    calls,
		users:    users,
	}
}
