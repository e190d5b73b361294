package core

import "github.com/echoroom/echoroom-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomJoined confirms a join to the joining connection only,
	// carrying the authoritative participant list and recent history.
	EventRoomJoined EventKind = iota
	// EventUserJoined notifies room members about a new participant.
	EventUserJoined
	// EventUserLeft notifies room members that a participant left.
	EventUserLeft
	// EventMessage delivers a canonical chat message, sender included.
	EventMessage
	// EventTypingStart signals a user began composing.
	EventTypingStart
	// EventTypingStop signals a user stopped composing.
	EventTypingStop
	// EventVoiceStatus delivers updated speaking/muted flags.
	EventVoiceStatus
	// EventReaction delivers an updated reaction aggregate for a message.
	EventReaction
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind   EventKind
	RoomID int64

	// EventRoomJoined.
	Room         *store.Room
	Participants []*store.Participant
	History      []*store.Message

	// EventUserJoined and EventVoiceStatus.
	Participant *store.Participant

	// EventUserLeft, EventTypingStart, EventTypingStop, EventReaction.
	UserID   string
	UserName string

	// EventMessage.
	Message *store.Message

	// EventReaction.
	MessageID int64
	Reaction  *store.Reaction

	// EventError.
	Error *CoreError
}
