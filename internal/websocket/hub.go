// Package websocket implements the real-time gateway: the connection
// registry, the acknowledged event relay, call signaling and the
// notification fan-out. Uses github.com/coder/websocket for transport.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/metrics"
)

// EventHandler processes an inbound event. The payload has already been
// shape-validated for the event type.
type EventHandler func(client *Client, message *Message, payload Payload) error

// Hub owns the registry and runs the event loop that serializes
// connection lifecycle changes, mirroring the single-threaded loop of
// the original gateway.
type Hub struct {
	registry *Registry
	relay    *Relay

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for handler map access
	mu sync.RWMutex

	// Inbound event dispatch table
	handlers map[string]EventHandler

	// Lifecycle hooks (presence bookkeeping, signaling cleanup)
	connectHooks    []func(*Client)
	disconnectHooks []func(*Client)

	// Metrics
	metrics *HubMetrics
	prom    *metrics.Metrics

	// Shutdown handling
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Rate limiter config
	rateLimitConfig RateLimitConfig
}

// HubMetrics tracks hub statistics
type HubMetrics struct {
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	MessagesReceived  atomic.Int64
	MessagesSent      atomic.Int64
	Errors            atomic.Int64
	DroppedDeliveries atomic.Int64
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	// MaxMessagesPerSecond per client
	MaxMessagesPerSecond int
	// BurstSize allows short bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 20,
		BurstSize:            40,
	}
}

// NewHub creates a hub around an explicit registry and relay.
func NewHub(registry *Registry, relay *Relay) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:        registry,
		relay:           relay,
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		handlers:        make(map[string]EventHandler),
		metrics:         &HubMetrics{},
		prom:            metrics.Get(),
		ctx:             ctx,
		cancel:          cancel,
		rateLimitConfig: DefaultRateLimitConfig(),
	}
	return h
}

// RegisterHandler registers a handler for an event type.
func (h *Hub) RegisterHandler(eventType string, handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[eventType] = handler
}

// GetHandler returns the handler for an event type.
func (h *Hub) GetHandler(eventType string) (EventHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[eventType]
	return handler, ok
}

// OnConnect adds a hook run after a client registers.
func (h *Hub) OnConnect(hook func(*Client)) {
	h.connectHooks = append(h.connectHooks, hook)
}

// OnDisconnect adds a hook run after a client unregisters.
func (h *Hub) OnDisconnect(hook func(*Client)) {
	h.disconnectHooks = append(h.disconnectHooks, hook)
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")

	for {
		select {
		case <-h.ctx.Done():
			logger.Log.Info("WebSocket hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

// Register queues a client registration.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister queues a client removal.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// handleRegister inserts the client into the registry, pushes the
// current roster to it and announces it to everyone else.
func (h *Hub) handleRegister(client *Client) {
	replaced := h.registry.Register(client.Connected())
	if replaced != nil && replaced.client != nil {
		// Last writer wins: the superseded connection is closed and its
		// eventual unregister is a socket-guarded no-op.
		logger.Log.Info("Connection superseded",
			logger.WithUserID(client.UserID),
			logger.WithSocketID(replaced.SocketID))
		replaced.client.Close()
	}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	h.prom.ConnectionsTotal.Inc()
	h.prom.ActiveConnections.Inc()

	// The newcomer gets the full roster
	h.relay.SendToSelf(client, NewMessage(EventRoster, &RosterPayload{
		Users: h.registry.Profiles(),
	}))

	// Everyone else learns about the newcomer
	h.relay.SendToAllExcept(client.UserID, NewMessage(EventUserOnline, &PresencePayload{
		User: client.Profile,
	}))

	for _, hook := range h.connectHooks {
		hook(client)
	}

	logger.Log.Info("Client connected",
		logger.WithUserID(client.UserID),
		logger.WithSocketID(client.SocketID))
}

// handleUnregister removes the client and, when it was still the
// registered connection for its user, broadcasts the departure exactly
// once.
func (h *Hub) handleUnregister(client *Client) {
	if !h.registry.Unregister(client.UserID, client.SocketID) {
		// Already superseded or never registered
		return
	}

	client.Close()

	h.metrics.ActiveConnections.Add(-1)
	h.prom.ActiveConnections.Dec()

	h.relay.SendToAllExcept(client.UserID, NewMessage(EventUserOffline, &PresencePayload{
		User: client.Profile,
	}))

	for _, hook := range h.disconnectHooks {
		hook(client)
	}

	logger.Log.Info("Client disconnected",
		logger.WithUserID(client.UserID),
		logger.WithSocketID(client.SocketID))
}

// Registry exposes the registry for HTTP status endpoints.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Relay exposes the relay for components that fan events out.
func (h *Hub) Relay() *Relay {
	return h.relay
}

// IsUserOnline checks if a user is connected.
func (h *Hub) IsUserOnline(userID string) bool {
	_, ok := h.registry.Lookup(userID)
	return ok
}

// GetOnlineUsers returns all connected user ids.
func (h *Hub) GetOnlineUsers() []string {
	entries := h.registry.Snapshot()
	users := make([]string, 0, len(entries))
	for _, cu := range entries {
		users = append(users, cu.UserID)
	}
	return users
}

// GetMetrics returns current hub metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:  h.metrics.TotalConnections.Load(),
		ActiveConnections: h.metrics.ActiveConnections.Load(),
		MessagesReceived:  h.metrics.MessagesReceived.Load(),
		MessagesSent:      h.metrics.MessagesSent.Load(),
		Errors:            h.metrics.Errors.Load(),
		DroppedDeliveries: h.metrics.DroppedDeliveries.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of hub metrics
type MetricsSnapshot struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	MessagesReceived  int64 `json:"messages_received"`
	MessagesSent      int64 `json:"messages_sent"`
	Errors            int64 `json:"errors"`
	DroppedDeliveries int64 `json:"dropped_deliveries"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.Errors, m.DroppedDeliveries,
	)
}

// SetRateLimitConfig updates the rate limiting configuration
func (h *Hub) SetRateLimitConfig(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitConfig = config
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("WebSocket hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	shutdownMsg := NewMessage(EventSystem, &SystemPayload{
		Event: "server_shutdown",
	})

	for _, cu := range h.registry.Snapshot() {
		if cu.client == nil {
			continue
		}
		_ = cu.client.Send(shutdownMsg)
		cu.client.Close()
		h.registry.Unregister(cu.UserID, cu.SocketID)
	}

	logger.Log.Info(fmt.Sprintf("Closed %d connections during shutdown",
		h.metrics.ActiveConnections.Load()))
}
