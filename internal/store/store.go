// Package store provides SQLite persistence for tailfeed conversations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/tailfeed/internal/feed"

	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Conversation is a named, ordered stream of messages.
type Conversation struct {
	ID      string
	Title   string
	Created time.Time
}

// Watermark summarizes the message table. It changes whenever a message
// is appended or deleted.
type Watermark struct {
	LatestSeq int64
	Count     int
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		// tfctl and the viewer write the same file
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		author TEXT,
		body TEXT NOT NULL,
		has_image INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, seq);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// EnsureConversation creates the conversation if it does not exist. An
// existing conversation keeps its title.
func (s *Store) EnsureConversation(id, title string) error {
	if id == "" {
		return errors.New("conversation id is empty")
	}
	if title == "" {
		title = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO conversations (id, title, created_at) VALUES (?, ?, ?)",
		id, title, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("ensure conversation %s: %w", id, err)
	}
	return nil
}

// Conversations lists all conversations, oldest first.
// Thread-safe: acquires read lock.
func (s *Store) Conversations() ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, title, created_at FROM conversations ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.Created); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// AppendMessages adds items to the tail of a conversation, returning the
// count of new messages. Duplicates (by ID) are silently ignored via
// INSERT OR IGNORE. Seq values are assigned by the database.
// Thread-safe: acquires write lock.
func (s *Store) AppendMessages(convID string, items []feed.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO messages (id, conversation_id, author, body, has_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	newCount := 0
	for _, it := range items {
		created := it.Created
		if created.IsZero() {
			created = time.Now()
		}
		result, err := stmt.Exec(it.ID, convID, it.Author, it.Body, boolToInt(it.HasImage), created)
		if err != nil {
			return 0, fmt.Errorf("insert message %s: %w", it.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newCount, nil
}

// Messages returns the last limit messages of a conversation in ascending
// seq order. A non-positive limit returns the whole conversation.
// Thread-safe: acquires read lock.
func (s *Store) Messages(convID string, limit int) ([]feed.Item, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT seq, id, author, body, has_image, created_at FROM (
			SELECT seq, id, author, body, has_image, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, convID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []feed.Item
	for rows.Next() {
		var it feed.Item
		var author sql.NullString
		var hasImage int
		if err := rows.Scan(&it.Seq, &it.ID, &author, &it.Body, &hasImage, &it.Created); err != nil {
			return nil, err
		}
		it.Author = author.String
		it.HasImage = hasImage != 0
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteMessage removes a message by ID, reporting whether it existed.
// Thread-safe: acquires write lock.
func (s *Store) DeleteMessage(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete message %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MessageCount returns how many messages a conversation holds.
func (s *Store) MessageCount(convID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", convID).Scan(&n)
	return n, err
}

// LatestSeq returns the highest seq in a conversation, or 0 when empty.
func (s *Store) LatestSeq(convID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seq sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(seq) FROM messages WHERE conversation_id = ?", convID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// Watermark returns the table-wide change marker polled by the viewer.
func (s *Store) Watermark() (Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w Watermark
	var seq sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(seq), COUNT(*) FROM messages").Scan(&seq, &w.Count); err != nil {
		return Watermark{}, err
	}
	w.LatestSeq = seq.Int64
	return w, nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
