package avatar

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/core"
	"github.com/echoroom/echoroom-server/internal/store"
)

// JoinInfo contains what a client needs to join a video conversation.
type JoinInfo struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// Engine abstracts the external AI-avatar/video conversation service.
// Calls can fail independently of the chat session; callers must treat
// failures as non-fatal.
type Engine interface {
	// CreateConversation opens a named video conversation for the room
	// and returns its external identifier.
	CreateConversation(ctx context.Context, room *store.Room) (externalID string, err error)

	// EndConversation terminates the conversation.
	EndConversation(ctx context.Context, externalID string) error

	// JoinInfo mints join credentials for a user.
	JoinInfo(ctx context.Context, externalID, userID, userName string) (*JoinInfo, error)
}

// Manager tracks which room has which live conversation and shields the
// hub from engine failures. It implements core.AvatarSessions.
type Manager struct {
	engine Engine
	log    *zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]string // room id -> external conversation id
}

// NewManager wraps an engine; a nil engine yields a nil manager, which
// the hub treats as the integration being disabled.
func NewManager(engine Engine, logger *zerolog.Logger) *Manager {
	if engine == nil {
		return nil
	}
	return &Manager{
		engine:   engine,
		log:      logger,
		sessions: make(map[int64]string),
	}
}

// EnsureConversation starts a conversation for the room if none is live.
func (m *Manager) EnsureConversation(ctx context.Context, room *store.Room) {
	m.mu.Lock()
	if _, ok := m.sessions[room.ID]; ok {
		m.mu.Unlock()
		return
	}
	// Reserve the slot before the remote call so concurrent joins do not
	// open two conversations for one room.
	m.sessions[room.ID] = ""
	m.mu.Unlock()

	externalID, err := m.engine.CreateConversation(ctx, room)
	if err != nil {
		m.log.Warn().Err(err).Int64("room_id", room.ID).Msg("create avatar conversation")
		m.mu.Lock()
		delete(m.sessions, room.ID)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.sessions[room.ID] = externalID
	m.mu.Unlock()
	m.log.Info().Int64("room_id", room.ID).Str("conversation", externalID).Msg("avatar conversation started")
}

// EndConversation tears down the room's conversation, if any.
func (m *Manager) EndConversation(ctx context.Context, roomID int64) {
	m.mu.Lock()
	externalID, ok := m.sessions[roomID]
	delete(m.sessions, roomID)
	m.mu.Unlock()
	if !ok || externalID == "" {
		return
	}

	if err := m.engine.EndConversation(ctx, externalID); err != nil {
		m.log.Warn().Err(err).Int64("room_id", roomID).Str("conversation", externalID).Msg("end avatar conversation")
		return
	}
	m.log.Info().Int64("room_id", roomID).Str("conversation", externalID).Msg("avatar conversation ended")
}

// JoinInfo mints join credentials for the room's live conversation.
// Returns nil if the room has none.
func (m *Manager) JoinInfo(ctx context.Context, roomID int64, userID, userName string) *JoinInfo {
	m.mu.Lock()
	externalID, ok := m.sessions[roomID]
	m.mu.Unlock()
	if !ok || externalID == "" {
		return nil
	}

	info, err := m.engine.JoinInfo(ctx, externalID, userID, userName)
	if err != nil {
		m.log.Warn().Err(err).Int64("room_id", roomID).Str("user_id", userID).Msg("mint avatar join info")
		return nil
	}
	return info
}

var _ core.AvatarSessions = (*Manager)(nil)
