package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/store"
)

// Registry is the authoritative mapping from room to connected clients,
// backed by the persistence gateway for participant rows. All methods
// must be called from the hub loop goroutine; the in-memory maps carry
// no locking of their own.
type Registry struct {
	store store.Store
	log   *zerolog.Logger
	rooms map[int64]*roomState
}

type roomState struct {
	room    *store.Room
	clients map[*Client]struct{}
}

// NewRegistry constructs a presence registry over the given store.
func NewRegistry(st store.Store, logger *zerolog.Logger) *Registry {
	return &Registry{
		store: st,
		log:   logger,
		rooms: make(map[int64]*roomState),
	}
}

// Join verifies the room exists, upserts the participant row and adds the
// client to the room's multicast group. Returns the room and its full
// participant list. Repeated joins by the same (user, room) pair overwrite
// the existing row rather than duplicating it.
func (r *Registry) Join(ctx context.Context, c *Client, cmd *Command) (*store.Room, []*store.Participant, error) {
	room, err := r.store.GetRoom(ctx, cmd.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, fmt.Errorf("get room: %w", err)
	}

	_, err = r.store.UpsertParticipant(ctx, &store.Participant{
		UserID: c.UserID,
		RoomID: room.ID,
		Name:   c.Name,
		Avatar: cmd.Avatar,
		Mood:   cmd.Mood,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert participant: %w", err)
	}

	participants, err := r.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list participants: %w", err)
	}

	// Added to the multicast group only once every store call has
	// succeeded: a failed join must leave the connection out of the room.
	state, ok := r.rooms[room.ID]
	if !ok {
		state = &roomState{room: room, clients: make(map[*Client]struct{})}
		r.rooms[room.ID] = state
	}
	state.clients[c] = struct{}{}

	return room, participants, nil
}

// Leave removes the client from the room's multicast group and deletes the
// participant row. Idempotent: leaving twice, or a room never joined, is a
// no-op. A failed row delete is logged but never blocks local removal.
func (r *Registry) Leave(ctx context.Context, c *Client, roomID int64) {
	state, ok := r.rooms[roomID]
	if ok {
		delete(state.clients, c)
		if len(state.clients) == 0 {
			delete(r.rooms, roomID)
		}
	}

	if c.UserID == "" {
		return
	}
	if err := r.store.DeleteParticipant(ctx, c.UserID, roomID); err != nil {
		r.log.Warn().Err(err).
			Int64("room_id", roomID).
			Str("user_id", c.UserID).
			Msg("delete participant row")
	}
}

// VoiceStatus re-reads the participant row and applies the new flags
// against current persisted state, not a stale snapshot.
func (r *Registry) VoiceStatus(ctx context.Context, userID string, roomID int64, speaking, muted bool) (*store.Participant, error) {
	row, err := r.store.GetParticipant(ctx, userID, roomID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	row.Speaking = speaking
	row.Muted = muted

	updated, err := r.store.UpsertParticipant(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}
	return updated, nil
}

// Room returns the tracked room info, or nil if no client is connected to it.
func (r *Registry) Room(roomID int64) *store.Room {
	if state, ok := r.rooms[roomID]; ok {
		return state.room
	}
	return nil
}

// Occupancy returns the number of live connections in a room.
func (r *Registry) Occupancy(roomID int64) int {
	if state, ok := r.rooms[roomID]; ok {
		return len(state.clients)
	}
	return 0
}

// Broadcast sends an event to every client in the room.
func (r *Registry) Broadcast(roomID int64, event *Event) {
	r.broadcast(roomID, nil, event)
}

// BroadcastExcept sends an event to every client in the room but one.
func (r *Registry) BroadcastExcept(roomID int64, skip *Client, event *Event) {
	r.broadcast(roomID, skip, event)
}

func (r *Registry) broadcast(roomID int64, skip *Client, event *Event) {
	state, ok := r.rooms[roomID]
	if !ok {
		return
	}
	for client := range state.clients {
		if client == skip {
			continue
		}
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}
