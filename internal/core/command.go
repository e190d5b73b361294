package core

import "github.com/echoroom/echoroom-server/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the connection to a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the connection from a room.
	CommandLeaveRoom
	// CommandSendMessage persists and delivers a chat message.
	CommandSendMessage
	// CommandTypingStart signals the user began composing.
	CommandTypingStart
	// CommandTypingStop signals the user stopped composing.
	CommandTypingStop
	// CommandVoiceStatus updates the user's speaking/muted flags.
	CommandVoiceStatus
	// CommandReaction adds an emoji reaction to a message.
	CommandReaction
)

// Command represents an action requested by a client connection.
type Command struct {
	Kind     CommandKind
	RoomID   int64
	UserID   string
	UserName string
	Avatar   string
	Mood     string

	// Message fields.
	Text    string
	MsgType store.MessageType
	Token   string

	// Voice status fields.
	Speaking bool
	Muted    bool

	// Reaction fields.
	MessageID int64
	Emoji     string
}
