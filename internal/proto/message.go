package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin        = "join"
	InboundTypeLeave       = "leave"
	InboundTypeMsg         = "msg"
	InboundTypeTypingStart = "typing_start"
	InboundTypeTypingStop  = "typing_stop"
	InboundTypeVoiceStatus = "voice_status"
	InboundTypeReaction    = "reaction"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameRoomJoined  = "room_joined"
	EventNameUserJoined  = "user_joined"
	EventNameUserLeft    = "user_left"
	EventNameMessage     = "message"
	EventNameTypingStart = "typing_start"
	EventNameTypingStop  = "typing_stop"
	EventNameVoiceStatus = "voice_status"
	EventNameReaction    = "reaction"
)

// JoinData requests to join a specific room under a claimed identity.
type JoinData struct {
	RoomID   int64  `json:"room_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Avatar   string `json:"avatar,omitempty"`
	Mood     string `json:"mood,omitempty"`
}

// LeaveData requests to leave a room.
type LeaveData struct {
	RoomID int64  `json:"room_id"`
	UserID string `json:"user_id,omitempty"`
}

// MsgData is a chat message from the client. Token is a client-generated
// idempotency token echoed back in the canonical broadcast.
type MsgData struct {
	RoomID   int64  `json:"room_id"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Text     string `json:"text"`
	MsgType  string `json:"msg_type,omitempty"`
	Token    string `json:"token,omitempty"`
}

// TypingData signals typing start/stop.
type TypingData struct {
	RoomID   int64  `json:"room_id"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// VoiceStatusData updates the sender's speaking/muted flags.
type VoiceStatusData struct {
	UserID   string `json:"user_id,omitempty"`
	Speaking bool   `json:"speaking"`
	Muted    bool   `json:"muted"`
}

// ReactionData adds an emoji reaction to a message.
type ReactionData struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"user_id,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RoomPayload describes a room in outbound events.
type RoomPayload struct {
	ID        int64  `json:"id"`
	Mood      string `json:"mood"`
	CreatedAt int64  `json:"created_at"`
}

// ParticipantPayload describes a room participant's public fields.
type ParticipantPayload struct {
	UserID   string `json:"user_id"`
	RoomID   int64  `json:"room_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Mood     string `json:"mood,omitempty"`
	Speaking bool   `json:"speaking"`
	Muted    bool   `json:"muted"`
	JoinedAt int64  `json:"joined_at"`
}

// ReactionPayload is a message's reaction aggregate for one emoji.
type ReactionPayload struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

// MessagePayload is a canonical server-persisted message.
type MessagePayload struct {
	ID        int64             `json:"id"`
	RoomID    int64             `json:"room_id"`
	UserID    string            `json:"user_id"`
	User      string            `json:"user"`
	Text      string            `json:"text"`
	MsgType   string            `json:"msg_type"`
	Token     string            `json:"token,omitempty"`
	TS        int64             `json:"ts"`
	Reactions []ReactionPayload `json:"reactions,omitempty"`
}

// EventRoomJoined confirms a join to the joining connection only.
type EventRoomJoined struct {
	Room         RoomPayload          `json:"room"`
	Participants []ParticipantPayload `json:"participants"`
	Messages     []MessagePayload     `json:"messages,omitempty"`
}

// EventUserJoined notifies room members about a new participant.
type EventUserJoined struct {
	Participant ParticipantPayload `json:"participant"`
}

// EventUserLeft notifies room members that a participant left.
type EventUserLeft struct {
	RoomID int64  `json:"room_id"`
	UserID string `json:"user_id"`
}

// EventTyping carries typing start/stop notifications.
type EventTyping struct {
	RoomID   int64  `json:"room_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

// EventVoiceStatus carries updated speaking/muted flags.
type EventVoiceStatus struct {
	RoomID   int64  `json:"room_id"`
	UserID   string `json:"user_id"`
	Speaking bool   `json:"speaking"`
	Muted    bool   `json:"muted"`
}

// EventReaction carries an updated reaction aggregate for a message.
type EventReaction struct {
	RoomID    int64           `json:"room_id"`
	MessageID int64           `json:"message_id"`
	UserID    string          `json:"user_id"`
	Reaction  ReactionPayload `json:"reaction"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
