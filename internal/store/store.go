package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"mural-backend/internal/board"
)

// ErrSessionEnded is returned by JoinBoard when the board is expired.
// Expiry is terminal: the caller must reject the join, not retry it.
var ErrSessionEnded = errors.New("session ended")

// Store is the durable gateway for boards. Every mutation is a single
// transaction over one board's rows, so concurrent connections cannot
// corrupt a stroke sequence or a status transition.
type Store struct {
	db *sql.DB
}

// RecentSession is one row of the recent-sessions listing. Status is the
// caller's view: expired when the caller has left the room, otherwise the
// board's own status.
type RecentSession struct {
	RoomID           string    `json:"roomId"`
	Name             string    `json:"name"`
	CreatorID        string    `json:"creatorId"`
	Status           string    `json:"status"`
	ParticipantCount int       `json:"participantCount"`
	LastActive       time.Time `json:"lastActive"`
}

func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("store initialized")
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS boards (
		room_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		creator_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		participant_count INTEGER NOT NULL DEFAULT 0,
		last_active DATETIME DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS board_participants (
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		left_room INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (room_id, user_id),
		FOREIGN KEY (room_id) REFERENCES boards(room_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS board_strokes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		element_id TEXT NOT NULL,
		data TEXT NOT NULL,
		UNIQUE (room_id, element_id),
		FOREIGN KEY (room_id) REFERENCES boards(room_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_board_strokes_room_id ON board_strokes(room_id);

	CREATE TABLE IF NOT EXISTS board_chat (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		sent_at TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (room_id) REFERENCES boards(room_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_board_chat_room_id ON board_chat(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Board operations

// JoinBoard admits a user into a board, creating the board on first join.
// The whole check-and-admit runs in one transaction so a join cannot slip
// past a concurrent expiry. Anonymous joins (empty userID) refresh activity
// but leave the participant roster untouched.
func (s *Store) JoinBoard(roomID, userID, name string) (*board.Meta, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var meta board.Meta
	meta.RoomID = roomID
	row := tx.QueryRow(
		"SELECT name, creator_id, status, participant_count FROM boards WHERE room_id = ?",
		roomID,
	)
	err = row.Scan(&meta.Name, &meta.CreatorID, &meta.Status, &meta.ParticipantCount)
	switch {
	case err == sql.ErrNoRows:
		if name == "" {
			name = board.DefaultName
		}
		meta.Name = name
		meta.CreatorID = userID
		meta.Status = board.StatusActive
		if userID != "" {
			meta.ParticipantCount = 1
		}
		if _, err := tx.Exec(
			"INSERT INTO boards (room_id, name, creator_id, status, participant_count, last_active) VALUES (?, ?, ?, ?, ?, ?)",
			roomID, name, userID, board.StatusActive, meta.ParticipantCount, now,
		); err != nil {
			return nil, err
		}
		if userID != "" {
			if _, err := tx.Exec(
				"INSERT INTO board_participants (room_id, user_id) VALUES (?, ?)",
				roomID, userID,
			); err != nil {
				return nil, err
			}
		}

	case err != nil:
		return nil, err

	default:
		if meta.Status == board.StatusExpired {
			return nil, ErrSessionEnded
		}
		if userID != "" {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO board_participants (room_id, user_id) VALUES (?, ?)",
				roomID, userID,
			); err != nil {
				return nil, err
			}
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM board_participants WHERE room_id = ?",
				roomID,
			).Scan(&meta.ParticipantCount); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(
			"UPDATE boards SET participant_count = ?, last_active = ? WHERE room_id = ?",
			meta.ParticipantCount, now, roomID,
		); err != nil {
			return nil, err
		}
	}

	meta.LastActive = now
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetBoard returns a board's metadata, or nil when the board does not exist.
func (s *Store) GetBoard(roomID string) (*board.Meta, error) {
	row := s.db.QueryRow(
		"SELECT room_id, name, creator_id, status, participant_count, last_active FROM boards WHERE room_id = ?",
		roomID,
	)

	var meta board.Meta
	err := row.Scan(&meta.RoomID, &meta.Name, &meta.CreatorID, &meta.Status, &meta.ParticipantCount, &meta.LastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// TouchBoard refreshes a board's activity timestamp.
func (s *Store) TouchBoard(roomID string) error {
	_, err := s.db.Exec(
		"UPDATE boards SET last_active = ? WHERE room_id = ?",
		time.Now().UTC(), roomID,
	)
	return err
}

// ExpireBoard marks a board expired. There is no way back.
func (s *Store) ExpireBoard(roomID string) error {
	_, err := s.db.Exec(
		"UPDATE boards SET status = ? WHERE room_id = ?",
		board.StatusExpired, roomID,
	)
	return err
}

// MarkLeft records that a user explicitly left the room. Recent-sessions
// listings show such rooms as expired for that user.
func (s *Store) MarkLeft(roomID, userID string) error {
	if userID == "" {
		return nil
	}
	_, err := s.db.Exec(
		"UPDATE board_participants SET left_room = 1 WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	)
	return err
}

// Stroke operations

// UpsertStroke applies the last-write-wins rule for one element id: a new id
// appends, a known id is replaced in place keeping its position in the
// sequence. Activity is refreshed in the same transaction.
func (s *Store) UpsertStroke(roomID, elementID string, data []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO board_strokes (room_id, element_id, data)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id, element_id) DO UPDATE SET data = excluded.data
	`, roomID, elementID, string(data)); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"UPDATE boards SET last_active = ? WHERE room_id = ?",
		time.Now().UTC(), roomID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Strokes returns a board's element sequence in append order.
func (s *Store) Strokes(roomID string) ([]json.RawMessage, error) {
	rows, err := s.db.Query(
		"SELECT data FROM board_strokes WHERE room_id = ? ORDER BY seq ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	strokes := make([]json.RawMessage, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		strokes = append(strokes, json.RawMessage(data))
	}
	return strokes, rows.Err()
}

// ClearStrokes truncates a board's element sequence.
func (s *Store) ClearStrokes(roomID string) error {
	if _, err := s.db.Exec("DELETE FROM board_strokes WHERE room_id = ?", roomID); err != nil {
		return err
	}
	return s.TouchBoard(roomID)
}

// PopLastStroke removes the most recently appended element. Undo is global
// to the room: whoever drew the element, the newest one goes.
func (s *Store) PopLastStroke(roomID string) error {
	if _, err := s.db.Exec(`
		DELETE FROM board_strokes
		WHERE room_id = ? AND seq = (
			SELECT MAX(seq) FROM board_strokes WHERE room_id = ?
		)
	`, roomID, roomID); err != nil {
		return err
	}
	return s.TouchBoard(roomID)
}

// StrokeCount returns the number of elements on a board.
func (s *Store) StrokeCount(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM board_strokes WHERE room_id = ?",
		roomID,
	).Scan(&count)
	return count, err
}

// Chat operations

// AppendChat adds a line to a board's transcript. Transcripts are
// append-only; nothing ever edits or removes a line.
func (s *Store) AppendChat(roomID string, msg board.ChatMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO board_chat (room_id, message_id, author, sent_at, body) VALUES (?, ?, ?, ?, ?)",
		roomID, msg.ID, msg.Name, msg.Time, msg.Text,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"UPDATE boards SET last_active = ? WHERE room_id = ?",
		time.Now().UTC(), roomID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ChatHistory returns a board's transcript in send order.
func (s *Store) ChatHistory(roomID string) ([]board.ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT message_id, author, sent_at, body FROM board_chat WHERE room_id = ? ORDER BY seq ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]board.ChatMessage, 0)
	for rows.Next() {
		var msg board.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Time, &msg.Text); err != nil {
			return nil, err
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// Listings and expiry

// RecentSessions lists the rooms a user participated in with activity inside
// the window, newest first. Rooms the user explicitly left are reported as
// expired regardless of the board's own status.
func (s *Store) RecentSessions(userID string, window time.Duration, limit int) ([]RecentSession, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := s.db.Query(`
		SELECT b.room_id, b.name, b.creator_id, b.status, b.participant_count, b.last_active, p.left_room
		FROM boards b
		JOIN board_participants p ON p.room_id = b.room_id
		WHERE p.user_id = ? AND b.last_active >= ?
		ORDER BY b.last_active DESC
		LIMIT ?
	`, userID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]RecentSession, 0)
	for rows.Next() {
		var rs RecentSession
		var left int
		if err := rows.Scan(&rs.RoomID, &rs.Name, &rs.CreatorID, &rs.Status, &rs.ParticipantCount, &rs.LastActive, &left); err != nil {
			return nil, err
		}
		if left != 0 {
			rs.Status = board.StatusExpired
		}
		sessions = append(sessions, rs)
	}
	return sessions, rows.Err()
}

// DeleteInactiveBefore drops boards whose last activity predates the cutoff,
// cascading to their strokes, chat and participants. This is the store-side
// half of the inactivity expiry rule.
func (s *Store) DeleteInactiveBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM boards WHERE last_active < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats

func (s *Store) Stats() (map[string]any, error) {
	stats := make(map[string]any)

	var boardCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM boards").Scan(&boardCount); err != nil {
		return nil, err
	}
	stats["board_count"] = boardCount

	var strokeCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM board_strokes").Scan(&strokeCount); err != nil {
		return nil, err
	}
	stats["stroke_count"] = strokeCount

	var chatCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM board_chat").Scan(&chatCount); err != nil {
		return nil, err
	}
	stats["chat_count"] = chatCount

	return stats, nil
}
