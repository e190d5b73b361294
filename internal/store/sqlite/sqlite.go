package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/echoroom/echoroom-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mood       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS participants (
	user_id   TEXT NOT NULL,
	room_id   INTEGER NOT NULL,
	name      TEXT NOT NULL,
	avatar    TEXT NOT NULL DEFAULT '',
	mood      TEXT NOT NULL DEFAULT '',
	speaking  BOOLEAN NOT NULL DEFAULT 0,
	muted     BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, room_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id     INTEGER NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	body        TEXT NOT NULL,
	type        TEXT NOT NULL DEFAULT 'text',
	token       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id INTEGER NOT NULL,
	user_id    TEXT NOT NULL,
	emoji      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (message_id, user_id, emoji),
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_participants_room ON participants(room_id);
CREATE INDEX IF NOT EXISTS idx_rooms_mood ON rooms(mood);
`

// defaultMoods are seeded as one room each on a fresh database so that a
// mood selection always resolves to at least one joinable room.
var defaultMoods = []string{"calm", "energetic", "melancholy", "cozy", "chaotic"}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath, applies the schema and
// seeds the default mood rooms if the rooms table is empty.
func New(dbPath string) (*SQLiteStore, error) {
	s, err := NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.seedDefaultRooms(context.Background()); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("seed rooms: %w", err)
	}
	return s, nil
}

// NewWithSetup opens the database and runs a setup function.
// Useful for tests to apply a custom schema without seeding.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) seedDefaultRooms(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, mood := range defaultMoods {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO rooms (mood) VALUES (?)`, mood); err != nil {
			return err
		}
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a room for the given mood label.
func (s *SQLiteStore) CreateRoom(ctx context.Context, mood string) (*store.Room, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO rooms (mood) VALUES (?)`, mood)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*store.Room, error) {
	query := `
		SELECT id, mood, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.Mood, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// GetRoomByMood returns the oldest room with the given mood label.
func (s *SQLiteStore) GetRoomByMood(ctx context.Context, mood string) (*store.Room, error) {
	query := `
		SELECT id, mood, created_at
		FROM rooms
		WHERE mood = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, mood).Scan(&room.ID, &room.Mood, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room by mood: %w", err)
	}

	return &room, nil
}

// ListRooms lists all joinable rooms.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `
		SELECT id, mood, created_at
		FROM rooms
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Mood, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// ==== ParticipantStore implementation ====

// UpsertParticipant inserts or overwrites the (user, room) row.
func (s *SQLiteStore) UpsertParticipant(ctx context.Context, p *store.Participant) (*store.Participant, error) {
	query := `
		INSERT INTO participants (user_id, room_id, name, avatar, mood, speaking, muted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, room_id) DO UPDATE SET
			name     = excluded.name,
			avatar   = excluded.avatar,
			mood     = excluded.mood,
			speaking = excluded.speaking,
			muted    = excluded.muted
	`
	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.RoomID, p.Name, p.Avatar, p.Mood, p.Speaking, p.Muted)
	if err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}

	return s.GetParticipant(ctx, p.UserID, p.RoomID)
}

// GetParticipant retrieves the (user, room) row.
func (s *SQLiteStore) GetParticipant(ctx context.Context, userID string, roomID int64) (*store.Participant, error) {
	query := `
		SELECT user_id, room_id, name, avatar, mood, speaking, muted, joined_at
		FROM participants
		WHERE user_id = ? AND room_id = ?
	`
	var p store.Participant
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(
		&p.UserID,
		&p.RoomID,
		&p.Name,
		&p.Avatar,
		&p.Mood,
		&p.Speaking,
		&p.Muted,
		&p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query participant: %w", err)
	}

	return &p, nil
}

// DeleteParticipant removes the (user, room) row; missing rows are a no-op.
func (s *SQLiteStore) DeleteParticipant(ctx context.Context, userID string, roomID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM participants WHERE user_id = ? AND room_id = ?`, userID, roomID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// ListParticipants returns all participants of a room ordered by join time.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID int64) ([]*store.Participant, error) {
	query := `
		SELECT user_id, room_id, name, avatar, mood, speaking, muted, joined_at
		FROM participants
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []*store.Participant
	for rows.Next() {
		var p store.Participant
		if err := rows.Scan(&p.UserID, &p.RoomID, &p.Name, &p.Avatar, &p.Mood,
			&p.Speaking, &p.Muted, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// ==== MessageStore implementation ====

// InsertMessage persists a message and returns the stored row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	msgType := msg.Type
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	query := `
		INSERT INTO messages (room_id, sender_id, sender_name, body, type, token)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msgType, msg.Token)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getMessage(ctx, id)
}

func (s *SQLiteStore) getMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, sender_name, body, type, token, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Body,
		&msg.Type,
		&msg.Token,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &msg, nil
}

// ListMessages returns the most recent messages of a room, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, room_id, sender_id, sender_name, body, type, token, created_at
		FROM (
			SELECT * FROM messages
			WHERE room_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName,
			&msg.Body, &msg.Type, &msg.Token, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, msg := range messages {
		reactions, err := s.listReactions(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		msg.Reactions = reactions
	}

	return messages, nil
}

// AddReaction records a reaction; repeats by the same user are no-ops.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID int64, emoji, userID string) (*store.Reaction, int64, bool, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, 0, false, err
	}

	// The composite primary key makes the duplicate insert a no-op.
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
		messageID, userID, emoji)
	if err != nil {
		return nil, 0, false, fmt.Errorf("insert reaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, 0, false, fmt.Errorf("rows affected: %w", err)
	}

	reaction, err := s.getReaction(ctx, messageID, emoji)
	if err != nil {
		return nil, 0, false, err
	}

	return reaction, msg.RoomID, affected > 0, nil
}

func (s *SQLiteStore) getReaction(ctx context.Context, messageID int64, emoji string) (*store.Reaction, error) {
	query := `
		SELECT user_id
		FROM message_reactions
		WHERE message_id = ? AND emoji = ?
		ORDER BY created_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, messageID, emoji)
	if err != nil {
		return nil, fmt.Errorf("query reaction: %w", err)
	}
	defer rows.Close()

	reaction := &store.Reaction{Emoji: emoji}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reaction.UserIDs = append(reaction.UserIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reaction.Count = len(reaction.UserIDs)
	return reaction, nil
}

func (s *SQLiteStore) listReactions(ctx context.Context, messageID int64) ([]store.Reaction, error) {
	query := `
		SELECT emoji, user_id
		FROM message_reactions
		WHERE message_id = ?
		ORDER BY created_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	byEmoji := make(map[string]*store.Reaction)
	var order []string
	for rows.Next() {
		var emoji, userID string
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, fmt.Errorf("scan reactions: %w", err)
		}
		r, ok := byEmoji[emoji]
		if !ok {
			r = &store.Reaction{Emoji: emoji}
			byEmoji[emoji] = r
			order = append(order, emoji)
		}
		r.UserIDs = append(r.UserIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactions := make([]store.Reaction, 0, len(order))
	for _, emoji := range order {
		r := byEmoji[emoji]
		r.Count = len(r.UserIDs)
		reactions = append(reactions, *r)
	}
	return reactions, nil
}

var _ store.Store = (*SQLiteStore)(nil)
