package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	stdhttp "net/http"
	neturl "net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/echoroom/echoroom-server/internal/client"
	"github.com/echoroom/echoroom-server/internal/identity"
	"github.com/echoroom/echoroom-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("echoroom-client: %v", err)
		os.Exit(1)
	}
}

type wsSender struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (s *wsSender) Send(inbound proto.Inbound) error {
	return wsjson.Write(s.ctx, s.conn, inbound)
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	mood := flag.String("mood", "calm", "mood to match a room for")
	statePath := flag.String("state", "", "path to the identity file")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	self, err := loadIdentity(*statePath)
	if err != nil {
		return err
	}

	roomID, roomMood, err := matchRoom(ctx, *server, *mood)
	if err != nil {
		return fmt.Errorf("match room: %w", err)
	}

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	session := client.NewSession(self, &wsSender{ctx: ctx, conn: conn})
	if err := session.Join(roomID, "", *mood); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Printf("Connected to %s as %s, room %d (%s)\n", *server, self.Name, roomID, roomMood)
	fmt.Println("Type to chat. Commands: /who, /react <msg-id> <emoji>, /mute, /unmute, /video, /quit")

	go func() {
		defer cancel()
		readLoop(ctx, conn, session)
	}()

	writeLoop(ctx, session, *server, roomID)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func loadIdentity(path string) (identity.Identity, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		path = filepath.Join(base, "echoroom", "identity.yaml")
	}
	return identity.LoadOrCreate(path)
}

func matchRoom(ctx context.Context, server, mood string) (int64, string, error) {
	body, err := json.Marshal(map[string]string{"mood": mood})
	if err != nil {
		return 0, "", err
	}

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost,
		server+"/api/rooms/match", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusOK {
		return 0, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var room struct {
		ID   int64  `json:"id"`
		Mood string `json:"mood"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return 0, "", err
	}
	return room.ID, room.Mood, nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, session *client.Session) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if err := session.Apply(outbound); err != nil {
			log.Printf("apply event: %v", err)
			continue
		}
		render(outbound, session)
	}
}

func render(outbound proto.Outbound, session *client.Session) {
	if outbound.Type == proto.OutboundTypeError {
		if outbound.Error != nil {
			fmt.Printf("! server error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
		}
		return
	}

	raw, err := json.Marshal(outbound.Data)
	if err != nil {
		return
	}

	switch outbound.Event {
	case proto.EventNameRoomJoined:
		participants := session.Participants()
		names := make([]string, 0, len(participants))
		for _, p := range participants {
			names = append(names, p.Name)
		}
		fmt.Printf("* joined, here now: %s\n", strings.Join(names, ", "))
	case proto.EventNameMessage:
		var msg proto.MessagePayload
		if json.Unmarshal(raw, &msg) == nil {
			fmt.Printf("[#%d] %s: %s\n", msg.ID, msg.User, msg.Text)
		}
	case proto.EventNameUserJoined:
		var ev proto.EventUserJoined
		if json.Unmarshal(raw, &ev) == nil {
			fmt.Printf("* %s joined\n", ev.Participant.Name)
		}
	case proto.EventNameUserLeft:
		var ev proto.EventUserLeft
		if json.Unmarshal(raw, &ev) == nil {
			fmt.Printf("* %s left\n", ev.UserID)
		}
	case proto.EventNameTypingStart:
		var ev proto.EventTyping
		if json.Unmarshal(raw, &ev) == nil {
			fmt.Printf("* %s is typing...\n", ev.UserName)
		}
	case proto.EventNameReaction:
		var ev proto.EventReaction
		if json.Unmarshal(raw, &ev) == nil {
			fmt.Printf("* reaction %s x%d on #%d\n", ev.Reaction.Emoji, ev.Reaction.Count, ev.MessageID)
		}
	}
}

func writeLoop(ctx context.Context, session *client.Session, server string, roomID int64) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if handleCommand(ctx, text, session, server, roomID) {
				return
			}
		}
	}
}

// handleCommand runs one input line; returns true when the client
// should exit.
func handleCommand(ctx context.Context, text string, session *client.Session, server string, roomID int64) bool {
	switch {
	case text == "/quit":
		_ = session.Leave()
		return true
	case text == "/who":
		for _, p := range session.Participants() {
			flags := ""
			if p.Speaking {
				flags += " [speaking]"
			}
			if p.Muted {
				flags += " [muted]"
			}
			fmt.Printf("  %s (%s)%s\n", p.Name, p.Mood, flags)
		}
	case text == "/mute":
		if err := session.SetVoiceStatus(false, true); err != nil {
			log.Printf("voice status: %v", err)
		}
	case text == "/unmute":
		if err := session.SetVoiceStatus(false, false); err != nil {
			log.Printf("voice status: %v", err)
		}
	case text == "/video":
		if err := printVideoJoinInfo(ctx, server, roomID, session.Self()); err != nil {
			log.Printf("video: %v", err)
		}
	case strings.HasPrefix(text, "/react "):
		parts := strings.Fields(text)
		if len(parts) != 3 {
			fmt.Println("usage: /react <msg-id> <emoji>")
			return false
		}
		msgID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			fmt.Println("usage: /react <msg-id> <emoji>")
			return false
		}
		if err := session.React(msgID, parts[2]); err != nil {
			log.Printf("react: %v", err)
		}
	default:
		if err := session.StartTyping(); err != nil {
			log.Printf("typing: %v", err)
		}
		if _, err := session.Send(text); err != nil {
			log.Printf("send: %v", err)
		}
		if err := session.StopTyping(); err != nil {
			log.Printf("typing: %v", err)
		}
	}
	return false
}

// printVideoJoinInfo fetches credentials for the room's AI-avatar video
// conversation, if one is live.
func printVideoJoinInfo(ctx context.Context, server string, roomID int64, self identity.Identity) error {
	url := fmt.Sprintf("%s/api/rooms/%d/avatar?user_id=%s&user_name=%s",
		server, roomID, neturl.QueryEscape(self.UserID), neturl.QueryEscape(self.Name))

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == stdhttp.StatusNotFound {
		fmt.Println("* no live video conversation for this room")
		return nil
	}
	if resp.StatusCode != stdhttp.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var info struct {
		URL      string `json:"url"`
		Token    string `json:"token"`
		RoomName string `json:"room_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return err
	}
	fmt.Printf("* video room %s at %s\n* token: %s\n", info.RoomName, info.URL, info.Token)
	return nil
}
