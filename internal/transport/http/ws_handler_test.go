package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/echoroom/echoroom-server/internal/proto"
)

type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *proto.Error    `json:"error,omitempty"`
}

// mustRead skips events until one with the wanted name (or an error
// envelope, when event is empty) arrives.
func mustRead(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) wireOutbound {
	t.Helper()

	for {
		var out wireOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound waiting for %q: %v", event, err)
		}
		if event == "" && out.Type == proto.OutboundTypeError {
			return out
		}
		if out.Event == event {
			return out
		}
	}
}

func dialWS(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(url, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func TestWebSocketJoinAndMessage(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts.URL)
	connB := dialWS(t, ctx, ts.URL)

	sendInbound(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{
		RoomID: 1, UserID: "u-alice", UserName: "alice", Mood: "calm",
	})

	joined := mustRead(t, ctx, connA, proto.EventNameRoomJoined)
	var roomState proto.EventRoomJoined
	if err := json.Unmarshal(joined.Data, &roomState); err != nil {
		t.Fatalf("unmarshal room_joined: %v", err)
	}
	if roomState.Room.ID != 1 || len(roomState.Participants) != 1 {
		t.Fatalf("unexpected room state: %+v", roomState)
	}

	sendInbound(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{
		RoomID: 1, UserID: "u-bob", UserName: "bob", Mood: "calm",
	})
	mustRead(t, ctx, connB, proto.EventNameRoomJoined)

	userJoined := mustRead(t, ctx, connA, proto.EventNameUserJoined)
	var joinEv proto.EventUserJoined
	if err := json.Unmarshal(userJoined.Data, &joinEv); err != nil {
		t.Fatalf("unmarshal user_joined: %v", err)
	}
	if joinEv.Participant.UserID != "u-bob" || joinEv.Participant.Name != "bob" {
		t.Fatalf("unexpected user_joined payload: %+v", joinEv)
	}

	sendInbound(t, ctx, connA, proto.InboundTypeMsg, proto.MsgData{
		RoomID: 1, Text: "hi there", Token: "tok-1",
	})

	// Both ends, the sender included, get the canonical message.
	for _, conn := range []*websocket.Conn{connA, connB} {
		out := mustRead(t, ctx, conn, proto.EventNameMessage)
		var msg proto.MessagePayload
		if err := json.Unmarshal(out.Data, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if msg.ID == 0 || msg.User != "alice" || msg.Text != "hi there" {
			t.Fatalf("unexpected message payload: %+v", msg)
		}
		if msg.Token != "tok-1" {
			t.Fatalf("token not echoed: %+v", msg)
		}
	}
}

func TestWebSocketJoinValidation(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts.URL)

	// Missing user_id is rejected before it reaches the hub.
	sendInbound(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{RoomID: 1})

	out := mustRead(t, ctx, conn, "")
	if out.Error == nil || out.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request error, got %+v", out)
	}

	// Unknown room is rejected by the hub.
	sendInbound(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		RoomID: 99999, UserID: "u-alice", UserName: "alice",
	})

	out = mustRead(t, ctx, conn, "")
	if out.Error == nil || out.Error.Code != "room_not_found" {
		t.Fatalf("expected room_not_found error, got %+v", out)
	}
}

func TestWebSocketHistoryOnJoin(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts.URL)
	sendInbound(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{
		RoomID: 1, UserID: "u-alice", UserName: "alice",
	})
	mustRead(t, ctx, connA, proto.EventNameRoomJoined)

	sendInbound(t, ctx, connA, proto.InboundTypeMsg, proto.MsgData{RoomID: 1, Text: "first"})
	mustRead(t, ctx, connA, proto.EventNameMessage)

	// A late joiner receives the earlier message as history.
	connB := dialWS(t, ctx, ts.URL)
	sendInbound(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{
		RoomID: 1, UserID: "u-bob", UserName: "bob",
	})

	joined := mustRead(t, ctx, connB, proto.EventNameRoomJoined)
	var roomState proto.EventRoomJoined
	if err := json.Unmarshal(joined.Data, &roomState); err != nil {
		t.Fatalf("unmarshal room_joined: %v", err)
	}
	if len(roomState.Messages) != 1 || roomState.Messages[0].Text != "first" {
		t.Fatalf("expected history with one message, got %+v", roomState.Messages)
	}
}
