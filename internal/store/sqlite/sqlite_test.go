package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/echoroom/echoroom-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultRoomsSeeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != len(defaultMoods) {
		t.Fatalf("expected %d seeded rooms, got %d", len(defaultMoods), len(rooms))
	}

	moods := make(map[string]bool)
	for _, room := range rooms {
		moods[room.Mood] = true
	}
	for _, mood := range defaultMoods {
		if !moods[mood] {
			t.Errorf("expected seeded room for mood %q", mood)
		}
	}
}

func TestRoomCreateGetMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateRoom(ctx, "nostalgic")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if created.ID == 0 || created.Mood != "nostalgic" {
		t.Fatalf("unexpected created room: %+v", created)
	}

	got, err := s.GetRoom(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if got.ID != created.ID || got.Mood != "nostalgic" {
		t.Fatalf("unexpected room: %+v", got)
	}

	matched, err := s.GetRoomByMood(ctx, "nostalgic")
	if err != nil {
		t.Fatalf("GetRoomByMood failed: %v", err)
	}
	if matched.ID != created.ID {
		t.Fatalf("expected room %d for mood, got %d", created.ID, matched.ID)
	}

	if _, err := s.GetRoom(ctx, 99999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown room, got %v", err)
	}
	if _, err := s.GetRoomByMood(ctx, "no-such-mood"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown mood, got %v", err)
	}
}

func TestGetRoomByMoodReturnsOldest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRoom(ctx, "stormy")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := s.CreateRoom(ctx, "stormy"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	matched, err := s.GetRoomByMood(ctx, "stormy")
	if err != nil {
		t.Fatalf("GetRoomByMood failed: %v", err)
	}
	if matched.ID != first.ID {
		t.Fatalf("expected oldest room %d, got %d", first.ID, matched.ID)
	}
}

func TestUpsertParticipantOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.UpsertParticipant(ctx, &store.Participant{
		UserID: "u-1", RoomID: 1, Name: "alice", Mood: "calm",
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if p1.Name != "alice" || p1.Mood != "calm" {
		t.Fatalf("unexpected participant: %+v", p1)
	}

	p2, err := s.UpsertParticipant(ctx, &store.Participant{
		UserID: "u-1", RoomID: 1, Name: "alice2", Mood: "cozy", Speaking: true,
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if p2.Name != "alice2" || p2.Mood != "cozy" || !p2.Speaking {
		t.Fatalf("second upsert did not overwrite: %+v", p2)
	}

	participants, err := s.ListParticipants(ctx, 1)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(participants) != 1 {
		t.Fatalf("expected single row after repeated upsert, got %d", len(participants))
	}
}

func TestDeleteParticipantIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertParticipant(ctx, &store.Participant{
		UserID: "u-1", RoomID: 1, Name: "alice",
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := s.DeleteParticipant(ctx, "u-1", 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.DeleteParticipant(ctx, "u-1", 1); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if err := s.DeleteParticipant(ctx, "ghost", 1); err != nil {
		t.Fatalf("delete of unknown row failed: %v", err)
	}

	if _, err := s.GetParticipant(ctx, "u-1", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInsertAndListMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		msg, err := s.InsertMessage(ctx, &store.Message{
			RoomID:     1,
			SenderID:   "u-1",
			SenderName: "alice",
			Body:       text,
			Token:      "tok-" + text,
		})
		if err != nil {
			t.Fatalf("InsertMessage(%q) failed: %v", text, err)
		}
		if msg.ID == 0 {
			t.Fatalf("message inserted without id")
		}
		if msg.Type != store.MessageTypeText {
			t.Fatalf("expected default type text, got %q", msg.Type)
		}
		if msg.Token != "tok-"+text {
			t.Fatalf("token not persisted: %q", msg.Token)
		}
	}

	// Message for another room must not leak into the listing.
	if _, err := s.InsertMessage(ctx, &store.Message{
		RoomID: 2, SenderID: "u-2", SenderName: "bob", Body: "elsewhere",
	}); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	messages, err := s.ListMessages(ctx, 1, 50)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(messages))
	}
	for i, msg := range messages {
		if msg.Body != texts[i] {
			t.Errorf("expected %q at index %d, got %q", texts[i], i, msg.Body)
		}
	}

	// The limit keeps the newest messages, still oldest first.
	limited, err := s.ListMessages(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Body != "two" || limited[1].Body != "three" {
		t.Fatalf("unexpected limited listing: %+v", limited)
	}
}

func TestAddReactionDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.InsertMessage(ctx, &store.Message{
		RoomID: 1, SenderID: "u-1", SenderName: "alice", Body: "react to me",
	})
	if err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	reaction, roomID, added, err := s.AddReaction(ctx, msg.ID, "👍", "u-2")
	if err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if !added || roomID != 1 {
		t.Fatalf("expected added=true room=1, got added=%v room=%d", added, roomID)
	}
	if reaction.Count != 1 || len(reaction.UserIDs) != 1 || reaction.UserIDs[0] != "u-2" {
		t.Fatalf("unexpected aggregate: %+v", reaction)
	}

	// Same user, same emoji: no-op, aggregate unchanged.
	reaction, _, added, err = s.AddReaction(ctx, msg.ID, "👍", "u-2")
	if err != nil {
		t.Fatalf("duplicate AddReaction failed: %v", err)
	}
	if added {
		t.Fatalf("duplicate reaction reported as added")
	}
	if reaction.Count != 1 {
		t.Fatalf("duplicate changed aggregate: %+v", reaction)
	}

	// Different user on the same emoji increments the count.
	reaction, _, added, err = s.AddReaction(ctx, msg.ID, "👍", "u-3")
	if err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if !added || reaction.Count != 2 {
		t.Fatalf("expected count 2, got %+v (added=%v)", reaction, added)
	}
	if len(reaction.UserIDs) != reaction.Count {
		t.Fatalf("count does not match user list: %+v", reaction)
	}

	if _, _, _, err := s.AddReaction(ctx, 99999, "👍", "u-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown message, got %v", err)
	}
}

func TestListMessagesAttachesReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.InsertMessage(ctx, &store.Message{
		RoomID: 1, SenderID: "u-1", SenderName: "alice", Body: "hello",
	})
	if err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	if _, _, _, err := s.AddReaction(ctx, msg.ID, "🔥", "u-2"); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if _, _, _, err := s.AddReaction(ctx, msg.ID, "🔥", "u-3"); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
	if _, _, _, err := s.AddReaction(ctx, msg.ID, "👏", "u-2"); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}

	messages, err := s.ListMessages(ctx, 1, 50)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	byEmoji := make(map[string]store.Reaction)
	for _, r := range messages[0].Reactions {
		byEmoji[r.Emoji] = r
	}
	if byEmoji["🔥"].Count != 2 {
		t.Errorf("expected 🔥 count 2, got %+v", byEmoji["🔥"])
	}
	if byEmoji["👏"].Count != 1 {
		t.Errorf("expected 👏 count 1, got %+v", byEmoji["👏"])
	}
}
