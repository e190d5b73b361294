package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/config"
	"github.com/echoroom/echoroom-server/internal/core"
	"github.com/echoroom/echoroom-server/internal/store"
	"github.com/echoroom/echoroom-server/internal/store/sqlite"
)

func startTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	testStore, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { testStore.Close() })

	disabledLogger := zerolog.New(nil)

	hub := core.NewHub(testStore, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Config{
		Addr:               ":0",
		ReadHeaderTimeout:  time.Second,
		ShutdownTimeout:    time.Second,
		MaxEventsPerMinute: 600,
	}

	server := NewServer(hub, testStore, nil, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, testStore
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestListRooms(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var rooms []RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// The fresh database seeds one room per default mood.
	if len(rooms) != 5 {
		t.Fatalf("expected 5 seeded rooms, got %d", len(rooms))
	}

	moods := make(map[string]bool)
	for _, room := range rooms {
		moods[room.Mood] = true
	}
	for _, mood := range []string{"calm", "energetic", "melancholy", "cozy", "chaotic"} {
		if !moods[mood] {
			t.Errorf("expected seeded room for mood %q", mood)
		}
	}
}

func TestCreateRoom(t *testing.T) {
	ts, _ := startTestServer(t)

	body := bytes.NewBufferString(`{"mood":"nostalgic"}`)
	resp, err := ts.Client().Post(ts.URL+"/api/rooms", "application/json", body)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}

	var room RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if room.ID == 0 || room.Mood != "nostalgic" {
		t.Fatalf("unexpected room: %+v", room)
	}

	// Missing mood fails validation.
	badResp, err := ts.Client().Post(ts.URL+"/api/rooms", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("bad create request failed: %v", err)
	}
	defer badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", badResp.StatusCode)
	}
}

func TestMatchRoom(t *testing.T) {
	ts, testStore := startTestServer(t)

	match := func(mood string) RoomResponse {
		t.Helper()
		body, _ := json.Marshal(map[string]string{"mood": mood})
		resp, err := ts.Client().Post(ts.URL+"/api/rooms/match", "application/json",
			bytes.NewReader(body))
		if err != nil {
			t.Fatalf("match request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.StatusCode)
		}
		var room RoomResponse
		if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return room
	}

	// A seeded mood resolves to the existing room.
	seeded, err := testStore.GetRoomByMood(context.Background(), "calm")
	if err != nil {
		t.Fatalf("get seeded room: %v", err)
	}
	if got := match("calm"); got.ID != seeded.ID {
		t.Fatalf("expected seeded room %d, got %d", seeded.ID, got.ID)
	}

	// An unknown mood creates a room, and matching again reuses it.
	first := match("wistful")
	if first.Mood != "wistful" || first.ID == 0 {
		t.Fatalf("unexpected created room: %+v", first)
	}
	if second := match("wistful"); second.ID != first.ID {
		t.Fatalf("expected stable match %d, got %d", first.ID, second.ID)
	}
}

func TestAvatarJoinInfoDisabled(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/rooms/1/avatar?user_id=u-1")
	if err != nil {
		t.Fatalf("avatar request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with integration disabled, got %d", resp.StatusCode)
	}
}
