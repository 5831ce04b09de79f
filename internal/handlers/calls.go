package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makebelieve-sk/Messenger-sub000/internal/errors"
)

// GetCallHistory returns a user's recent call records.
// GET /api/v1/calls/history/:user_id
func (h *Handlers) GetCallHistory(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		apiErr := errors.BadRequest("user_id is required")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	calls, err := h.calls.HistoryForUser(c.Request.Context(), userID, limit)
	if err != nil {
		apiErr := errors.InternalError("failed to load call history")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"meta": gin.H{
			"limit": limit,
			"count": len(calls),
		},
	})
}

// GetCall returns one call record by its room id.
// GET /api/v1/calls/:room_id
func (h *Handlers) GetCall(c *gin.Context) {
	roomID := c.Param("room_id")

	call, err := h.calls.GetByRoom(c.Request.Context(), roomID)
	if err != nil {
		apiErr := errors.NotFound("call")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": call})
}
