package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Room is a mood-scoped chat channel.
type Room struct {
	ID        int64
	Mood      string
	CreatedAt time.Time
}

// Participant is a user's live membership in one room.
// Keyed by (UserID, RoomID); at most one row per pair.
type Participant struct {
	UserID   string
	RoomID   int64
	Name     string
	Avatar   string
	Mood     string
	Speaking bool
	Muted    bool
	JoinedAt time.Time
}

// MessageType tags the kind of a chat message.
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeSystem    MessageType = "system"
	MessageTypeAIPrompt  MessageType = "ai_prompt"
	MessageTypeMoodCheck MessageType = "mood_check"
)

// Message is a persisted chat message. ID and CreatedAt are
// server-assigned; Token is the sender's idempotency token echoed back
// so clients can retire optimistic placeholders.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   string
	SenderName string
	Body       string
	Type       MessageType
	Token      string
	CreatedAt  time.Time
	Reactions  []Reaction
}

// Reaction aggregates who reacted to a message with one emoji.
// Count always equals len(UserIDs).
type Reaction struct {
	Emoji   string
	UserIDs []string
	Count   int
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a room for the given mood label.
	CreateRoom(ctx context.Context, mood string) (*Room, error)

	// GetRoom retrieves a room by ID. Returns ErrNotFound if absent.
	GetRoom(ctx context.Context, id int64) (*Room, error)

	// GetRoomByMood returns the oldest room with the given mood label,
	// or ErrNotFound if none exists.
	GetRoomByMood(ctx context.Context, mood string) (*Room, error)

	// ListRooms lists all joinable rooms.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// ParticipantStore handles participant persistence.
type ParticipantStore interface {
	// UpsertParticipant inserts the participant row, or overwrites the
	// existing (user, room) row's mutable fields if one is present.
	UpsertParticipant(ctx context.Context, p *Participant) (*Participant, error)

	// GetParticipant retrieves the (user, room) row. Returns ErrNotFound
	// if absent.
	GetParticipant(ctx context.Context, userID string, roomID int64) (*Participant, error)

	// DeleteParticipant removes the (user, room) row. Deleting a row
	// that does not exist is not an error.
	DeleteParticipant(ctx context.Context, userID string, roomID int64) error

	// ListParticipants returns all participants of a room.
	ListParticipants(ctx context.Context, roomID int64) ([]*Participant, error)
}

// MessageStore handles message and reaction persistence.
type MessageStore interface {
	// InsertMessage persists a message and returns it with the
	// server-assigned ID and timestamp filled in.
	InsertMessage(ctx context.Context, msg *Message) (*Message, error)

	// ListMessages returns the most recent messages of a room, oldest
	// first, with reactions attached.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)

	// AddReaction records that a user reacted to a message with an emoji.
	// A repeat reaction by the same user with the same emoji is a no-op
	// and returns added=false. On success the recomputed aggregate for
	// that emoji is returned along with the message's room ID.
	AddReaction(ctx context.Context, messageID int64, emoji, userID string) (reaction *Reaction, roomID int64, added bool, err error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	ParticipantStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
