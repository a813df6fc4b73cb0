// File: internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/engager-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoSession is returned when no persisted session exists.
var ErrNoSession = errors.New("store: no session found")

// Store is the session persistence contract consumed by the engine.
// The concrete type is injected so tests can substitute a fake.
type Store interface {
	SaveSession(ctx context.Context, state *schemas.SessionState) error
	LoadLatestSession(ctx context.Context) (*schemas.SessionState, error)
	AppendActivity(ctx context.Context, event schemas.ActivityEvent) error
	RecentActivity(ctx context.Context, sessionID string, limit int) ([]schemas.ActivityEvent, error)
	Close() error
}

// SQLiteStore persists sessions in a local SQLite database in WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: dbPath, logger: logger.Named("store")}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		id         TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		target     INTEGER NOT NULL,
		processed  INTEGER NOT NULL DEFAULT 0,
		success    INTEGER NOT NULL DEFAULT 0,
		failed     INTEGER NOT NULL DEFAULT 0,
		payload    TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		item_id    TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_session ON activity_log(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_session_updated ON session_state(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession upserts the full session record. The serialized payload is
// authoritative; the extracted columns exist for querying only.
func (s *SQLiteStore) SaveSession(ctx context.Context, state *schemas.SessionState) error {
	if state == nil {
		return fmt.Errorf("nil session state")
	}
	if !state.Consistent() {
		return fmt.Errorf("refusing to persist inconsistent session %s: processed=%d success=%d failed=%d",
			state.ID, state.Processed, state.Success, state.Failed)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_state (id, status, target, processed, success, failed, payload, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			target = excluded.target,
			processed = excluded.processed,
			success = excluded.success,
			failed = excluded.failed,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		state.ID, string(state.Status), state.Target, state.Processed, state.Success, state.Failed,
		// Timestamps are stored as unix nanoseconds so ORDER BY sorts
		// numerically; formatted strings mis-sort on fractional seconds.
		string(payload), state.StartedAt.UTC().UnixNano(), state.UpdatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("save session %s: %w", state.ID, err)
	}
	return nil
}

// LoadLatestSession returns the most recently updated session record.
func (s *SQLiteStore) LoadLatestSession(ctx context.Context) (*schemas.SessionState, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM session_state ORDER BY updated_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load latest session: %w", err)
	}

	var state schemas.SessionState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshal session payload: %w", err)
	}
	if !state.Consistent() {
		s.logger.Warn("Persisted session fails consistency check; ignoring it.",
			zap.String("session_id", state.ID))
		return nil, ErrNoSession
	}
	return &state, nil
}

// AppendActivity records one event in the append-only activity log.
func (s *SQLiteStore) AppendActivity(ctx context.Context, event schemas.ActivityEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (session_id, item_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, event.ItemID, string(event.Kind), event.Detail,
		event.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit events for a session, newest first.
func (s *SQLiteStore) RecentActivity(ctx context.Context, sessionID string, limit int) ([]schemas.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, item_id, kind, detail, created_at
		FROM activity_log WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []schemas.ActivityEvent
	for rows.Next() {
		var ev schemas.ActivityEvent
		var kind, createdAt string
		if err := rows.Scan(&ev.SessionID, &ev.ItemID, &kind, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		ev.Kind = schemas.EventKind(kind)
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			ev.At = ts
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
