package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room listing and matching.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create/match room request body.
type CreateRoomRequest struct {
	Mood string `json:"mood" binding:"required,min=1,max=32"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Mood      string `json:"mood"`
	CreatedAt string `json:"created_at"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Mood:      room.Mood,
		CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListRooms lists joinable rooms with their mood category.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}

	c.JSON(http.StatusOK, response)
}

// CreateRoom creates a new room for a mood.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Mood)
	if err != nil {
		h.log.Error().Err(err).Str("mood", req.Mood).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("room_id", room.ID).Str("mood", room.Mood).Msg("room created")
	c.JSON(http.StatusCreated, roomResponse(room))
}

// MatchRoom resolves a mood selection to a concrete joinable room,
// creating one if no room carries that mood yet.
// POST /api/rooms/match
func (h *RoomHandlers) MatchRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid match room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.GetRoomByMood(c.Request.Context(), req.Mood)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Error().Err(err).Str("mood", req.Mood).Msg("failed to match room")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		room, err = h.store.CreateRoom(c.Request.Context(), req.Mood)
		if err != nil {
			h.log.Error().Err(err).Str("mood", req.Mood).Msg("failed to create room for mood")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		h.log.Info().Int64("room_id", room.ID).Str("mood", room.Mood).Msg("room created for mood match")
	}

	c.JSON(http.StatusOK, roomResponse(room))
}
