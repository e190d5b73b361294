package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/echoroom/echoroom-server/internal/avatar"
	"github.com/echoroom/echoroom-server/internal/store"
)

// LiveKitEngine implements avatar.Engine on a LiveKit deployment.
type LiveKitEngine struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// New creates a new LiveKitEngine.
func New(apiKey, apiSecret, wsURL string) *LiveKitEngine {
	return &LiveKitEngine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
	}
}

// CreateConversation names the media room for the chat room. LiveKit
// creates rooms on demand when the first participant joins, so only the
// name is minted here.
func (e *LiveKitEngine) CreateConversation(_ context.Context, room *store.Room) (string, error) {
	return fmt.Sprintf("echoroom-%s-%d", room.Mood, room.ID), nil
}

// EndConversation is a no-op: LiveKit rooms auto-expire when empty.
func (e *LiveKitEngine) EndConversation(_ context.Context, _ string) error {
	return nil
}

// JoinInfo mints join credentials for a user.
func (e *LiveKitEngine) JoinInfo(_ context.Context, externalID, userID, userName string) (*avatar.JoinInfo, error) {
	identity := "user-" + userID

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     externalID,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(userName).
		SetValidFor(time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &avatar.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: externalID,
		Identity: identity,
	}, nil
}

var _ avatar.Engine = (*LiveKitEngine)(nil)
