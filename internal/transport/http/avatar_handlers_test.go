package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/avatar"
	"github.com/echoroom/echoroom-server/internal/config"
	"github.com/echoroom/echoroom-server/internal/core"
	"github.com/echoroom/echoroom-server/internal/store"
	"github.com/echoroom/echoroom-server/internal/store/sqlite"
)

type stubEngine struct{}

func (stubEngine) CreateConversation(_ context.Context, room *store.Room) (string, error) {
	return "conv-" + room.Mood, nil
}

func (stubEngine) EndConversation(_ context.Context, _ string) error { return nil }

func (stubEngine) JoinInfo(_ context.Context, externalID, userID, _ string) (*avatar.JoinInfo, error) {
	return &avatar.JoinInfo{
		URL:      "wss://media.example",
		Token:    "media-token",
		RoomName: externalID,
		Identity: userID,
	}, nil
}

func TestAvatarJoinInfoEnabled(t *testing.T) {
	testStore, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { testStore.Close() })

	disabledLogger := zerolog.New(nil)
	manager := avatar.NewManager(stubEngine{}, &disabledLogger)

	hub := core.NewHub(testStore, &disabledLogger)
	hub.Avatar = manager
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Config{
		Addr:               ":0",
		ReadHeaderTimeout:  time.Second,
		MaxEventsPerMinute: 600,
	}
	server := NewServer(hub, testStore, manager, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	// Before any conversation exists the endpoint has nothing to mint.
	resp, err := ts.Client().Get(ts.URL + "/api/rooms/1/avatar?user_id=u-1")
	if err != nil {
		t.Fatalf("avatar request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without conversation, got %d", resp.StatusCode)
	}

	room, err := testStore.GetRoom(ctx, 1)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	manager.EnsureConversation(ctx, room)

	resp, err = ts.Client().Get(ts.URL + "/api/rooms/1/avatar?user_id=u-1&user_name=alice")
	if err != nil {
		t.Fatalf("avatar request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var info avatar.JoinInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode join info: %v", err)
	}
	if info.Token != "media-token" || info.Identity != "u-1" || info.RoomName == "" {
		t.Fatalf("unexpected join info: %+v", info)
	}

	// Bad requests are rejected before touching the manager.
	resp, err = ts.Client().Get(ts.URL + "/api/rooms/1/avatar")
	if err != nil {
		t.Fatalf("avatar request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", resp.StatusCode)
	}
}
