package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 256 * 1024 // 256KB

	// Send buffer size
	sendBufferSize = 256
)

// Client represents a single WebSocket connection
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// Hub reference
	hub *Hub

	// Identity bound at handshake time
	UserID   string
	SocketID string
	Profile  models.SafeUser

	// Buffered channel of outbound messages
	send chan []byte

	// Connection metadata
	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	// Rate limiting
	rateLimiter *RateLimiter

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Mutex for connection state
	mu sync.RWMutex

	// Closed flag
	closed bool
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	// Refill tokens
	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	// Check and consume
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, socketID string, profile models.SafeUser) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	config := hub.GetRateLimitConfig()

	return &Client{
		hub:         hub,
		conn:        conn,
		UserID:      profile.ID,
		SocketID:    socketID,
		Profile:     profile,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		rateLimiter: NewRateLimiter(config.MaxMessagesPerSecond, config.BurstSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Info("Client disconnected normally", logger.WithUserID(c.UserID))
			} else if c.ctx.Err() == nil {
				// Only log errors if we're not shutting down
				logger.Log.Error("Read error for client", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
			}
			return
		}

		// Rate limiting
		if !c.rateLimiter.Allow() {
			c.SendChannelError("too many messages, please slow down")
			c.hub.metrics.Errors.Add(1)
			c.hub.prom.RateLimitedTotal.Inc()
			continue
		}

		c.hub.metrics.MessagesReceived.Add(1)

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("WebSocket JSON parse error",
				logger.WithUserID(c.UserID),
				zap.Error(err))
			c.SendChannelError("failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Error("Write error for client", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Warn("Ping failed for client", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		}
	}
}

// handleMessage validates an inbound message and routes it to the
// registered handler for its event type.
func (c *Client) handleMessage(message *Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = FlexibleTime{Time: time.Now().UTC()}
	}

	c.hub.prom.EventsRecvTotal.WithLabelValues(message.Type).Inc()

	// Built-in message types
	switch message.Type {
	case EventPing, "heartbeat": // "heartbeat" is an alias for ping
		c.handlePing(message)
		return

	case EventAck:
		c.handleAck(message)
		return
	}

	// Validate the payload shape before anything else sees it
	payload, err := message.DecodePayload()
	if err != nil {
		logger.Log.Warn("Rejected inbound event",
			logger.WithUserID(c.UserID),
			logger.WithEventType(message.Type),
			zap.Error(err))
		c.SendChannelError(err.Error())
		return
	}

	// Events carrying an ID want delivery confirmation
	if message.ID != "" {
		_ = c.Send(NewAck(message.ID, true, ""))
	}

	handler, ok := c.hub.GetHandler(message.Type)
	if !ok {
		logger.Log.Warn("No handler for event type",
			logger.WithUserID(c.UserID),
			logger.WithEventType(message.Type))
		c.SendChannelError(fmt.Sprintf("unsupported event type: %s", message.Type))
		return
	}

	if err := handler(c, message, payload); err != nil {
		logger.Log.Error("Handler error",
			logger.WithEventType(message.Type),
			zap.Error(err))
		c.SendChannelError(fmt.Sprintf("failed to process %s", message.Type))
	}
}

// handlePing responds to ping messages with pong
func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()

	pong := NewMessage(EventPong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	})

	if message.ID != "" {
		pong.ReplyTo = message.ID
	}

	// Best-effort pong response - connection may be closing
	_ = c.Send(pong)
}

// handleAck resolves a pending delivery confirmation.
func (c *Client) handleAck(message *Message) {
	if message.ReplyTo == "" {
		return
	}

	var ack AckPayload
	if err := message.ParsePayload(&ack); err != nil {
		// A malformed ack counts as an explicit failure
		ack = AckPayload{OK: false, Reason: "malformed ack"}
	}

	c.hub.relay.resolveAck(message.ReplyTo, AckResult{
		OK:     ack.OK,
		Reason: ack.Reason,
		At:     time.Now().UTC(),
	})
}

// Send queues a message for this client's writer. The enqueue never
// blocks: a full buffer means the client is too slow and the message is
// dropped.
func (c *Client) Send(message *Message) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("client connection closed")
	}
	c.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		c.hub.metrics.MessagesSent.Add(1)
		c.hub.prom.EventsSentTotal.WithLabelValues(message.Type).Inc()
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("client shutting down")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// SendChannelError sends a channel_error event to the client.
func (c *Client) SendChannelError(text string) {
	_ = c.Send(NewChannelError(text))
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()

	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// IsClosed returns whether the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Connected returns the registry entry for this client.
func (c *Client) Connected() *ConnectedUser {
	return &ConnectedUser{
		UserID:   c.UserID,
		SocketID: c.SocketID,
		Profile:  c.Profile,
		client:   c,
	}
}
