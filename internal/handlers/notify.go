package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makebelieve-sk/Messenger-sub000/internal/errors"
	"github.com/makebelieve-sk/Messenger-sub000/internal/websocket"
)

// The notify API lets the rest of the backend push real-time events to
// connected clients after it has already persisted the underlying
// change. Delivery here is best-effort: offline recipients are dropped,
// and a failed push never rolls back the HTTP caller's write.

// NotifyMessage pushes a message lifecycle event (sent, edited,
// deleted) to its recipients.
// POST /api/v1/notify/message
func (h *Handlers) NotifyMessage(c *gin.Context) {
	var req struct {
		Event   string                        `json:"event" binding:"required"`
		Payload websocket.MessageEventPayload `json:"payload" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	switch req.Event {
	case websocket.EventMessageSent, websocket.EventMessageEdited, websocket.EventMessageDeleted:
	default:
		apiErr := errors.ValidationError("event", "unknown message event")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if err := req.Payload.Validate(); err != nil {
		apiErr := errors.ValidationError("payload", err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	h.notifier.FanOut(nil, req.Payload.Recipients, req.Event, &req.Payload)

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "recipients": len(req.Payload.Recipients)})
}

// NotifyChatDeleted pushes a chat removal event to its recipients.
// POST /api/v1/notify/chat-deleted
func (h *Handlers) NotifyChatDeleted(c *gin.Context) {
	var payload websocket.ChatEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}
	if err := payload.Validate(); err != nil {
		apiErr := errors.ValidationError("payload", err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	h.notifier.FanOut(nil, payload.Recipients, websocket.EventChatDeleted, &payload)

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "recipients": len(payload.Recipients)})
}

// NotifyFriendRequest pushes a friendship change to the other party.
// POST /api/v1/notify/friend-request
func (h *Handlers) NotifyFriendRequest(c *gin.Context) {
	var payload websocket.FriendRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}
	if err := payload.Validate(); err != nil {
		apiErr := errors.ValidationError("payload", err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	// Attach the sender's profile so the recipient can render the
	// notification without another round trip.
	if payload.From == nil && payload.FromUserID != "" {
		if user, err := h.users.GetByID(c.Request.Context(), payload.FromUserID); err == nil {
			safe := user.Safe()
			payload.From = &safe
		}
	}

	h.notifier.NotifyFriendRequest(nil, &payload)

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// NotifyReadStatus pushes a read-marker change to chat members.
// POST /api/v1/notify/read-status
func (h *Handlers) NotifyReadStatus(c *gin.Context) {
	var payload websocket.ReadStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apiErr := errors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}
	if err := payload.Validate(); err != nil {
		apiErr := errors.ValidationError("payload", err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	h.notifier.FanOut(nil, payload.Recipients, websocket.EventReadStatusChanged, &payload)

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "recipients": len(payload.Recipients)})
}
