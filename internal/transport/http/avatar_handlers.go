package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/avatar"
)

// AvatarHandlers serves join credentials for a room's live video
// conversation.
type AvatarHandlers struct {
	manager *avatar.Manager
	log     *zerolog.Logger
}

// NewAvatarHandlers creates the avatar handlers; manager may be nil when
// the integration is disabled.
func NewAvatarHandlers(manager *avatar.Manager, logger *zerolog.Logger) *AvatarHandlers {
	return &AvatarHandlers{manager: manager, log: logger}
}

// JoinInfo returns credentials to join the room's video conversation.
// GET /api/rooms/:id/avatar?user_id=...&user_name=...
func (h *AvatarHandlers) JoinInfo(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "avatar integration disabled"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
		return
	}
	userName := c.Query("user_name")
	if userName == "" {
		userName = userID
	}

	info := h.manager.JoinInfo(c.Request.Context(), roomID, userID, userName)
	if info == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no live conversation for room"})
		return
	}

	c.JSON(http.StatusOK, info)
}
