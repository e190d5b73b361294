package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/identity"
	"github.com/echoroom/echoroom-server/internal/proto"
)

const (
	defaultOptimisticTTL = 5 * time.Second
	defaultTypingTTL     = 2 * time.Second
)

// Sender pushes inbound envelopes to the server. The websocket client
// implements it; tests substitute a recorder.
type Sender interface {
	Send(inbound proto.Inbound) error
}

// Option tunes a Session.
type Option func(*Session)

// WithOptimisticTTL overrides how long an unconfirmed local message
// stays in the visible timeline.
func WithOptimisticTTL(d time.Duration) Option {
	return func(s *Session) { s.optimisticTTL = d }
}

// WithTypingTTL overrides the typing-indicator inactivity timeout.
func WithTypingTTL(d time.Duration) Option {
	return func(s *Session) { s.typingTTL = d }
}

// WithLogger attaches a logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

type typingState struct {
	name  string
	timer *time.Timer
}

// Session is the client's single source of truth: room membership and
// local projections of participants, canonical messages and the typing
// set, reconciled from server-pushed events. Locally sent messages are
// merged in as optimistic placeholders until their canonical echo
// arrives or the placeholder times out.
type Session struct {
	self   identity.Identity
	sender Sender
	log    *zerolog.Logger

	optimisticTTL time.Duration
	typingTTL     time.Duration

	mu           sync.Mutex
	roomID       int64
	room         *proto.RoomPayload
	avatar       string
	mood         string
	participants []proto.ParticipantPayload
	messages     []Message
	seen         map[int64]struct{}
	typing       map[string]*typingState
	pending      []*pendingMessage
}

// NewSession builds a session for the given identity over the sender.
func NewSession(self identity.Identity, sender Sender, opts ...Option) *Session {
	nop := zerolog.Nop()
	s := &Session{
		self:          self,
		sender:        sender,
		log:           &nop,
		optimisticTTL: defaultOptimisticTTL,
		typingTTL:     defaultTypingTTL,
		seen:          make(map[int64]struct{}),
		typing:        make(map[string]*typingState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Self returns the session's identity.
func (s *Session) Self() identity.Identity {
	return s.self
}

func (s *Session) send(msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return s.sender.Send(proto.Inbound{Type: msgType, Data: payload})
}

// Join requests membership in a room under this session's identity.
func (s *Session) Join(roomID int64, avatar, mood string) error {
	s.mu.Lock()
	s.avatar = avatar
	s.mood = mood
	s.mu.Unlock()

	return s.send(proto.InboundTypeJoin, proto.JoinData{
		RoomID:   roomID,
		UserID:   s.self.UserID,
		UserName: s.self.Name,
		Avatar:   avatar,
		Mood:     mood,
	})
}

// Leave abandons the current room and clears all room-local state.
func (s *Session) Leave() error {
	s.mu.Lock()
	roomID := s.roomID
	s.resetRoomLocked()
	s.mu.Unlock()

	if roomID == 0 {
		return nil
	}
	return s.send(proto.InboundTypeLeave, proto.LeaveData{
		RoomID: roomID,
		UserID: s.self.UserID,
	})
}

// Send emits a text message, inserting an optimistic placeholder into
// the visible timeline immediately. Returns the placeholder's temp id.
func (s *Session) Send(text string) (string, error) {
	return s.SendTyped(text, "text")
}

// SendTyped emits a message with an explicit type tag.
func (s *Session) SendTyped(text, msgType string) (string, error) {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return "", fmt.Errorf("not in a room")
	}

	p := s.addPending(text, msgType)

	err := s.send(proto.InboundTypeMsg, proto.MsgData{
		RoomID:   roomID,
		UserID:   s.self.UserID,
		UserName: s.self.Name,
		Text:     text,
		MsgType:  msgType,
		Token:    p.token,
	})
	if err != nil {
		// The placeholder still times out on its own; vanishing is the
		// product's failure signal.
		return p.tempID, err
	}
	return p.tempID, nil
}

// StartTyping signals the server that this user began composing.
func (s *Session) StartTyping() error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return nil
	}
	return s.send(proto.InboundTypeTypingStart, proto.TypingData{
		RoomID:   roomID,
		UserID:   s.self.UserID,
		UserName: s.self.Name,
	})
}

// StopTyping signals the server that this user stopped composing.
func (s *Session) StopTyping() error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return nil
	}
	return s.send(proto.InboundTypeTypingStop, proto.TypingData{
		RoomID: roomID,
		UserID: s.self.UserID,
	})
}

// SetVoiceStatus updates this user's speaking/muted flags.
func (s *Session) SetVoiceStatus(speaking, muted bool) error {
	return s.send(proto.InboundTypeVoiceStatus, proto.VoiceStatusData{
		UserID:   s.self.UserID,
		Speaking: speaking,
		Muted:    muted,
	})
}

// React adds an emoji reaction to a message.
func (s *Session) React(messageID int64, emoji string) error {
	return s.send(proto.InboundTypeReaction, proto.ReactionData{
		MessageID: messageID,
		Emoji:     emoji,
		UserID:    s.self.UserID,
	})
}

// Apply folds one server-pushed envelope into the session state.
// Protocol errors and unknown events are tolerated; only a malformed
// payload is reported back.
func (s *Session) Apply(out proto.Outbound) error {
	if out.Type == proto.OutboundTypeError {
		if out.Error != nil {
			s.log.Warn().Str("code", out.Error.Code).Str("msg", out.Error.Msg).Msg("server error")
		}
		return nil
	}

	switch out.Event {
	case proto.EventNameRoomJoined:
		var ev proto.EventRoomJoined
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyRoomJoined(ev)
	case proto.EventNameUserJoined:
		var ev proto.EventUserJoined
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyUserJoined(ev.Participant)
	case proto.EventNameUserLeft:
		var ev proto.EventUserLeft
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyUserLeft(ev.UserID)
	case proto.EventNameMessage:
		var ev proto.MessagePayload
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyMessage(ev)
	case proto.EventNameTypingStart:
		var ev proto.EventTyping
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyTypingStart(ev)
	case proto.EventNameTypingStop:
		var ev proto.EventTyping
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyTypingStop(ev.UserID)
	case proto.EventNameVoiceStatus:
		var ev proto.EventVoiceStatus
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyVoiceStatus(ev)
	case proto.EventNameReaction:
		var ev proto.EventReaction
		if err := decodeData(out.Data, &ev); err != nil {
			return err
		}
		s.applyReaction(ev)
	default:
		s.log.Debug().Str("event", out.Event).Msg("ignoring unknown event")
	}
	return nil
}

// decodeData re-marshals the envelope's any-typed data into the typed
// payload; the envelope may arrive with Data as either raw JSON or an
// already-decoded map.
func decodeData(data any, target any) error {
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal event data: %w", err)
	}
	return nil
}

func (s *Session) applyRoomJoined(ev proto.EventRoomJoined) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := ev.Room
	s.roomID = room.ID
	s.room = &room

	// Wholesale replace; fold in the local identity if the server's
	// list omitted it.
	s.participants = append([]proto.ParticipantPayload(nil), ev.Participants...)
	found := false
	for _, p := range s.participants {
		if p.UserID == s.self.UserID {
			found = true
			break
		}
	}
	if !found {
		s.participants = append(s.participants, proto.ParticipantPayload{
			UserID:   s.self.UserID,
			RoomID:   room.ID,
			Name:     s.self.Name,
			Avatar:   s.avatar,
			Mood:     s.mood,
			JoinedAt: time.Now().Unix(),
		})
	}

	s.messages = s.messages[:0]
	s.seen = make(map[int64]struct{})
	for _, msg := range ev.Messages {
		s.appendCanonicalLocked(msg)
	}
	s.clearTypingLocked()
}

func (s *Session) applyUserJoined(p proto.ParticipantPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].UserID == p.UserID {
			s.participants[i] = p
			return
		}
	}
	s.participants = append(s.participants, p)
}

func (s *Session) applyUserLeft(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].UserID == userID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			break
		}
	}
	s.removeTypingLocked(userID)
}

func (s *Session) applyTypingStart(ev proto.EventTyping) {
	if ev.UserID == s.self.UserID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.typing[ev.UserID]; ok {
		state.timer.Stop()
	}
	userID := ev.UserID
	s.typing[userID] = &typingState{
		name: ev.UserName,
		timer: time.AfterFunc(s.typingTTL, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.typing, userID)
		}),
	}
}

func (s *Session) applyTypingStop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTypingLocked(userID)
}

func (s *Session) removeTypingLocked(userID string) {
	if state, ok := s.typing[userID]; ok {
		state.timer.Stop()
		delete(s.typing, userID)
	}
}

func (s *Session) clearTypingLocked() {
	for userID, state := range s.typing {
		state.timer.Stop()
		delete(s.typing, userID)
	}
}

func (s *Session) applyVoiceStatus(ev proto.EventVoiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].UserID == ev.UserID {
			s.participants[i].Speaking = ev.Speaking
			s.participants[i].Muted = ev.Muted
			return
		}
	}
}

func (s *Session) applyReaction(ev proto.EventReaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID != ev.MessageID {
			continue
		}
		msg := &s.messages[i]
		for j := range msg.Reactions {
			if msg.Reactions[j].Emoji == ev.Reaction.Emoji {
				msg.Reactions[j] = ev.Reaction
				return
			}
		}
		msg.Reactions = append(msg.Reactions, ev.Reaction)
		return
	}
	// Reaction for a message we do not have: dropped, not an error.
}

func (s *Session) resetRoomLocked() {
	s.roomID = 0
	s.room = nil
	s.participants = nil
	s.messages = nil
	s.seen = make(map[int64]struct{})
	s.clearTypingLocked()
	s.dropAllPendingLocked()
}

// InRoom reports whether the session currently has a room.
func (s *Session) InRoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID != 0
}

// Room returns the current room info, or nil.
func (s *Session) Room() *proto.RoomPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil
	}
	room := *s.room
	return &room
}

// Participants returns a snapshot of the participant list.
func (s *Session) Participants() []proto.ParticipantPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proto.ParticipantPayload(nil), s.participants...)
}

// Typing returns the display names of users currently composing.
func (s *Session) Typing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.typing))
	for userID, state := range s.typing {
		name := state.name
		if name == "" {
			name = userID
		}
		names = append(names, name)
	}
	return names
}
