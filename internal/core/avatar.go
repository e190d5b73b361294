package core

import (
	"context"

	"github.com/echoroom/echoroom-server/internal/store"
)

// AvatarSessions manages the external AI-avatar video conversation tied
// to a room. Implementations must be safe to call from their own
// goroutine and must never block chat: failures are theirs to log.
type AvatarSessions interface {
	// EnsureConversation starts a video conversation for the room if one
	// is not already running.
	EnsureConversation(ctx context.Context, room *store.Room)

	// EndConversation tears down the room's video conversation, if any.
	EndConversation(ctx context.Context, roomID int64)
}
