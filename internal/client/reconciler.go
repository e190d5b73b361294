package client

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/echoroom/echoroom-server/internal/proto"
)

// Message is one entry of the merged visible timeline: either a
// canonical server message or a not-yet-confirmed local placeholder.
type Message struct {
	ID         int64
	TempID     string
	Optimistic bool
	RoomID     int64
	UserID     string
	User       string
	Text       string
	MsgType    string
	Token      string
	TS         time.Time
	Reactions  []proto.ReactionPayload
}

type pendingMessage struct {
	tempID  string
	token   string
	text    string
	msgType string
	ts      time.Time
	timer   *time.Timer
}

// addPending inserts an optimistic placeholder and arms its timeout.
// If no canonical replacement arrives in time the placeholder is
// removed unconditionally.
func (s *Session) addPending(text, msgType string) *pendingMessage {
	p := &pendingMessage{
		tempID:  uuid.NewString(),
		token:   uuid.NewString(),
		text:    text,
		msgType: msgType,
		ts:      time.Now(),
	}

	s.mu.Lock()
	tempID := p.tempID
	p.timer = time.AfterFunc(s.optimisticTTL, func() {
		s.expirePending(tempID)
	})
	s.pending = append(s.pending, p)
	s.mu.Unlock()

	return p
}

func (s *Session) expirePending(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.tempID == tempID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.log.Debug().Str("temp_id", tempID).Msg("optimistic message timed out")
			return
		}
	}
}

func (s *Session) dropAllPendingLocked() {
	for _, p := range s.pending {
		p.timer.Stop()
	}
	s.pending = nil
}

// applyMessage folds a canonical message into the timeline: dedup by
// server id, then retire any pending placeholder it confirms.
func (s *Session) applyMessage(msg proto.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[msg.ID]; dup {
		return
	}
	s.appendCanonicalLocked(msg)

	if msg.Token != "" {
		s.retireByTokenLocked(msg.Token)
		return
	}
	if msg.UserID == s.self.UserID {
		// Own message echoed without a token: fall back to timestamp
		// retirement against placeholders at least as old.
		s.retireByTimestampLocked(time.Unix(msg.TS, 0))
	}
}

func (s *Session) appendCanonicalLocked(msg proto.MessagePayload) {
	s.seen[msg.ID] = struct{}{}
	ts := time.Unix(msg.TS, 0)
	s.messages = append(s.messages, Message{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		User:      msg.User,
		Text:      msg.Text,
		MsgType:   msg.MsgType,
		Token:     msg.Token,
		TS:        ts,
		Reactions: append([]proto.ReactionPayload(nil), msg.Reactions...),
	})
}

func (s *Session) retireByTokenLocked(token string) {
	for i, p := range s.pending {
		if p.token == token {
			p.timer.Stop()
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Session) retireByTimestampLocked(canonTS time.Time) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.ts.After(canonTS) {
			kept = append(kept, p)
			continue
		}
		p.timer.Stop()
	}
	s.pending = kept
}

// Messages returns the merged visible timeline: canonical messages plus
// optimistic placeholders, ordered by timestamp with placeholders after
// canonical entries of the same instant.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, 0, len(s.messages)+len(s.pending))
	out = append(out, s.messages...)
	for _, p := range s.pending {
		out = append(out, Message{
			TempID:     p.tempID,
			Optimistic: true,
			RoomID:     s.roomID,
			UserID:     s.self.UserID,
			User:       s.self.Name,
			Text:       p.text,
			MsgType:    p.msgType,
			Token:      p.token,
			TS:         p.ts,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		if out[i].Optimistic != out[j].Optimistic {
			return !out[i].Optimistic
		}
		return out[i].ID < out[j].ID
	})
	return out
}
