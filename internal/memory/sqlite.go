/*
Package memory is the SQLite-backed store for task graphs, sessions,
analyses, reflections and cached vectors.
*/
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup has no row.
var ErrNotFound = errors.New("not found")

// timeFormat is fixed-width so created_at columns compare as text.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// SQLiteStore persists everything Wayline keeps between requests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		// Graph mutations read then write; take the write lock at BEGIN so
		// another process cannot commit in between.
		dsn = path + "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		estimated_effort REAL NOT NULL,
		cognition_level TEXT NOT NULL,
		is_manual INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 1,
		quality_score REAL,
		source TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, archived);

	-- from_id depends on to_id for prerequisite; from_id blocks to_id for blocks
	CREATE TABLE IF NOT EXISTS edges (
		user_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		relationship TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1,
		detection_method TEXT NOT NULL DEFAULT 'stored',
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, relationship),
		FOREIGN KEY (from_id) REFERENCES tasks(id),
		FOREIGN KEY (to_id) REFERENCES tasks(id)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_user ON edges(user_id);

	CREATE TABLE IF NOT EXISTS goals (
		user_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		id UNINDEXED,
		title,
		body,
		tokenize='porter unicode61'
	);

	-- One session per user, enforced here rather than in application code.
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		goal TEXT NOT NULL,
		task_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		plan TEXT,
		metadata TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS trace_steps (
		session_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		tool_name TEXT,
		tool_input TEXT,
		tool_output TEXT,
		thought TEXT,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (session_id, step_number),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		gaps TEXT NOT NULL,
		semantic_error TEXT,
		dropped TEXT,
		degraded INTEGER NOT NULL DEFAULT 0,
		warnings TEXT,
		consumed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		lane TEXT NOT NULL,
		payload TEXT NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_analysis ON candidates(analysis_id);

	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_user ON reflections(user_id);

	CREATE TABLE IF NOT EXISTS intents (
		reflection_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT NOT NULL,
		strength TEXT NOT NULL,
		polarity TEXT NOT NULL,
		keywords TEXT NOT NULL,
		duration TEXT,
		summary TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (reflection_id) REFERENCES reflections(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_intents_hash ON intents(user_id, text_hash);

	CREATE TABLE IF NOT EXISTS task_effects (
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		reflection_id TEXT NOT NULL,
		effect TEXT NOT NULL,
		magnitude REAL NOT NULL,
		reason TEXT NOT NULL,
		warning INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, task_id)
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		key TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
