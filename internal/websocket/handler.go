package websocket

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/makebelieve-sk/Messenger-sub000/internal/cache"
	"github.com/makebelieve-sk/Messenger-sub000/internal/errors"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/store"
	"go.uber.org/zap"
)

// Handler handles WebSocket HTTP upgrade requests and the presence
// status endpoints.
type Handler struct {
	hub      *Hub
	users    store.UserStore
	presence *cache.RedisClient
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, users store.UserStore, presence *cache.RedisClient) *Handler {
	return &Handler{
		hub:      hub,
		users:    users,
		presence: presence,
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
// The handshake carries the user identity as a query parameter; its
// legitimacy was established by the HTTP session flow, not re-checked
// here. An identity without an account row is refused.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		apiErr := errors.Unauthorized("user identity required")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		logger.Log.Warn("WebSocket handshake for unknown user",
			logger.WithUserID(userID), zap.Error(err))
		apiErr := errors.Unauthorized("unknown user identity")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// TODO: restrict origins once the web client's domains are final
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), user.Safe())
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(EventSystem, &SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"socket_id":   client.SocketID,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// HandleStats returns hub metrics (for monitoring).
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket":    h.hub.GetMetrics(),
		"online_users": h.hub.GetOnlineUsers(),
		"timestamp":    time.Now().UTC(),
	})
}

// HandleOnlineStatus checks if specific users are online.
func (h *Handler) HandleOnlineStatus(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	statuses := make(map[string]bool)
	for _, userID := range req.UserIDs {
		statuses[userID] = h.hub.IsUserOnline(userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"statuses":  statuses,
		"timestamp": time.Now().UTC(),
	})
}

// HandlePresence returns online state plus the last-seen timestamp kept
// in Redis for users who are currently offline.
func (h *Handler) HandlePresence(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	result := make(map[string]interface{})
	for _, userID := range req.UserIDs {
		if h.hub.IsUserOnline(userID) {
			result[userID] = gin.H{"status": "online"}
			continue
		}

		entry := gin.H{"status": "offline"}
		if h.presence != nil {
			if at, ok, err := h.presence.LastSeen(c.Request.Context(), userID); err == nil && ok {
				entry["last_seen"] = at.UnixMilli()
			}
		}
		result[userID] = entry
	}

	c.JSON(http.StatusOK, gin.H{
		"presence":  result,
		"timestamp": time.Now().UTC(),
	})
}
