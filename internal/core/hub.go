package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/store"
)

const (
	defaultTypingTTL    = 2 * time.Second
	defaultHistoryLimit = 50
)

type dispatchReq struct {
	client *Client
	cmd    *Command
}

type typingKey struct {
	roomID int64
	userID string
}

// Hub is the single dispatch point for inbound client events. All state
// (registry maps, typing timers, client room membership) is owned by the
// Run loop goroutine; command handlers run to completion one at a time.
type Hub struct {
	store    store.Store
	registry *Registry
	log      *zerolog.Logger

	// Collaborators and tunables; set before Run.
	Avatar       AvatarSessions
	Identity     Identity
	TypingTTL    time.Duration
	HistoryLimit int

	register      chan *Client
	unregister    chan *Client
	dispatch      chan dispatchReq
	typingExpired chan typingKey
	typing        map[typingKey]*time.Timer
}

// NewHub creates a hub over the given store.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	return &Hub{
		store:         st,
		registry:      NewRegistry(st, logger),
		log:           logger,
		Identity:      ClientAssertedIdentity{},
		TypingTTL:     defaultTypingTTL,
		HistoryLimit:  defaultHistoryLimit,
		register:      make(chan *Client, 8),
		unregister:    make(chan *Client, 8),
		dispatch:      make(chan dispatchReq, 64),
		typingExpired: make(chan typingKey, 64),
		typing:        make(map[typingKey]*time.Timer),
	}
}

// Registry exposes the presence registry for read-only collaborators.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// RegisterClient announces a new connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection; the hub treats this as an
// implicit leave of the client's current room.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			go h.pumpCommands(ctx, c)
		case c := <-h.unregister:
			h.handleDisconnect(ctx, c)
		case req := <-h.dispatch:
			h.handleCommand(ctx, req.client, req.cmd)
		case key := <-h.typingExpired:
			h.handleTypingExpired(key)
		}
	}
}

// pumpCommands forwards one client's commands into the dispatch channel,
// preserving that connection's emission order. Exits when the client is
// unregistered, its channel closes, or the hub stops.
func (h *Hub) pumpCommands(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.dispatch <- dispatchReq{client: c, cmd: cmd}:
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(ctx, c, cmd)
	case CommandLeaveRoom:
		h.handleLeave(ctx, c, cmd)
	case CommandSendMessage:
		h.handleSendMessage(ctx, c, cmd)
	case CommandTypingStart:
		h.handleTypingStart(c, cmd)
	case CommandTypingStop:
		h.handleTypingStop(c)
	case CommandVoiceStatus:
		h.handleVoiceStatus(ctx, c, cmd)
	case CommandReaction:
		h.handleReaction(ctx, c, cmd)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, cmd *Command) {
	if c.roomID != 0 {
		h.sendError(c, coreError(ErrCodeAlreadyInRoom, "leave the current room before joining another"))
		return
	}

	userID, userName := h.Identity.Resolve(cmd.UserID, cmd.UserName)
	if userID == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "user id is required"))
		return
	}
	c.UserID = userID
	c.Name = userName

	room, participants, err := h.registry.Join(ctx, c, cmd)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			h.sendError(c, coreError(ErrCodeRoomNotFound, "room not found"))
			return
		}
		h.log.Error().Err(err).
			Str("event", "join").
			Int64("room_id", cmd.RoomID).
			Str("user_id", userID).
			Msg("join failed")
		h.sendError(c, coreError(ErrCodeStorage, "join failed"))
		return
	}
	c.roomID = room.ID

	history, err := h.store.ListMessages(ctx, room.ID, h.HistoryLimit)
	if err != nil {
		h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("load history")
		history = nil
	}

	h.sendEvent(c, &Event{
		Kind:         EventRoomJoined,
		RoomID:       room.ID,
		Room:         room,
		Participants: participants,
		History:      history,
	})

	var joined *store.Participant
	for _, p := range participants {
		if p.UserID == userID {
			joined = p
			break
		}
	}
	if joined == nil {
		joined = &store.Participant{UserID: userID, RoomID: room.ID, Name: userName, Avatar: cmd.Avatar, Mood: cmd.Mood}
	}
	h.registry.BroadcastExcept(room.ID, c, &Event{
		Kind:        EventUserJoined,
		RoomID:      room.ID,
		Participant: joined,
	})

	if h.Avatar != nil && h.registry.Occupancy(room.ID) == 1 {
		go h.Avatar.EnsureConversation(ctx, room)
	}
}

func (h *Hub) handleLeave(ctx context.Context, c *Client, cmd *Command) {
	// Leaving a room never joined, or the wrong room, is a no-op.
	if c.roomID == 0 || (cmd.RoomID != 0 && cmd.RoomID != c.roomID) {
		return
	}
	h.leaveCurrentRoom(ctx, c)
}

func (h *Hub) handleDisconnect(ctx context.Context, c *Client) {
	if c.roomID != 0 {
		h.leaveCurrentRoom(ctx, c)
	}
	c.stop()
}

func (h *Hub) leaveCurrentRoom(ctx context.Context, c *Client) {
	roomID := c.roomID
	h.clearTyping(typingKey{roomID: roomID, userID: c.UserID})

	h.registry.Leave(ctx, c, roomID)
	c.roomID = 0

	h.registry.Broadcast(roomID, &Event{
		Kind:   EventUserLeft,
		RoomID: roomID,
		UserID: c.UserID,
	})

	if h.Avatar != nil && h.registry.Occupancy(roomID) == 0 {
		go h.Avatar.EndConversation(ctx, roomID)
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd *Command) {
	if c.roomID == 0 || (cmd.RoomID != 0 && cmd.RoomID != c.roomID) {
		h.sendError(c, coreError(ErrCodeNotInRoom, "join a room before sending messages"))
		return
	}

	msgType := cmd.MsgType
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	saved, err := h.store.InsertMessage(ctx, &store.Message{
		RoomID:     c.roomID,
		SenderID:   c.UserID,
		SenderName: c.Name,
		Body:       cmd.Text,
		Type:       msgType,
		Token:      cmd.Token,
	})
	if err != nil {
		// Dropped silently from the client's perspective; the sender's
		// optimistic placeholder times out as the failure signal.
		h.log.Error().Err(err).
			Str("event", "send_message").
			Int64("room_id", c.roomID).
			Str("user_id", c.UserID).
			Msg("persist message")
		return
	}

	// Echo to the sender too: the displayed message must carry the
	// server-assigned id and timestamp.
	h.registry.Broadcast(c.roomID, &Event{
		Kind:    EventMessage,
		RoomID:  c.roomID,
		Message: saved,
	})
}

func (h *Hub) handleTypingStart(c *Client, cmd *Command) {
	if c.roomID == 0 {
		return
	}
	userName := cmd.UserName
	if userName == "" {
		userName = c.Name
	}

	h.registry.BroadcastExcept(c.roomID, c, &Event{
		Kind:     EventTypingStart,
		RoomID:   c.roomID,
		UserID:   c.UserID,
		UserName: userName,
	})

	key := typingKey{roomID: c.roomID, userID: c.UserID}
	if timer, ok := h.typing[key]; ok {
		timer.Stop()
	}
	h.typing[key] = time.AfterFunc(h.TypingTTL, func() {
		select {
		case h.typingExpired <- key:
		default:
		}
	})
}

func (h *Hub) handleTypingStop(c *Client) {
	if c.roomID == 0 {
		return
	}
	h.clearTyping(typingKey{roomID: c.roomID, userID: c.UserID})
	h.registry.BroadcastExcept(c.roomID, c, &Event{
		Kind:   EventTypingStop,
		RoomID: c.roomID,
		UserID: c.UserID,
	})
}

func (h *Hub) handleTypingExpired(key typingKey) {
	if _, ok := h.typing[key]; !ok {
		return
	}
	delete(h.typing, key)
	h.registry.Broadcast(key.roomID, &Event{
		Kind:   EventTypingStop,
		RoomID: key.roomID,
		UserID: key.userID,
	})
}

func (h *Hub) clearTyping(key typingKey) {
	if timer, ok := h.typing[key]; ok {
		timer.Stop()
		delete(h.typing, key)
	}
}

func (h *Hub) handleVoiceStatus(ctx context.Context, c *Client, cmd *Command) {
	if c.roomID == 0 {
		return
	}

	participant, err := h.registry.VoiceStatus(ctx, c.UserID, c.roomID, cmd.Speaking, cmd.Muted)
	if err != nil {
		h.log.Warn().Err(err).
			Str("event", "voice_status").
			Int64("room_id", c.roomID).
			Str("user_id", c.UserID).
			Msg("update voice status")
		return
	}

	h.registry.Broadcast(c.roomID, &Event{
		Kind:        EventVoiceStatus,
		RoomID:      c.roomID,
		Participant: participant,
	})
}

func (h *Hub) handleReaction(ctx context.Context, c *Client, cmd *Command) {
	userID := c.UserID
	if userID == "" {
		userID = cmd.UserID
	}
	if userID == "" || cmd.Emoji == "" {
		return
	}

	reaction, roomID, added, err := h.store.AddReaction(ctx, cmd.MessageID, cmd.Emoji, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Reaction for a nonexistent message is a stale event, not
			// an error.
			return
		}
		h.log.Error().Err(err).
			Str("event", "reaction").
			Int64("message_id", cmd.MessageID).
			Str("user_id", userID).
			Msg("persist reaction")
		return
	}
	if !added {
		// Same user, same emoji, same message: nothing changed.
		return
	}

	h.registry.Broadcast(roomID, &Event{
		Kind:      EventReaction,
		RoomID:    roomID,
		MessageID: cmd.MessageID,
		UserID:    userID,
		Reaction:  reaction,
	})
}

func (h *Hub) sendEvent(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("dropping event for slow consumer")
	}
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	h.sendEvent(c, &Event{Kind: EventError, Error: cerr})
}
