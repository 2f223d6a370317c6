// Package sqlite provides a durable SessionStore and TraceStore backed by
// SQLite. Sessions and traces are stored as JSON payload columns alongside
// the identity and state columns used for lookup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/concordlabs/concord/core"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_ms INTEGER NOT NULL,
	updated_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions(parent_id);

CREATE TABLE IF NOT EXISTS traces (
	session_id TEXT PRIMARY KEY,
	final_state TEXT NOT NULL,
	payload TEXT NOT NULL,
	finalized_ms INTEGER NOT NULL
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// sessionView is the JSON shape persisted for a session. core.Session holds
// a mutex, so a plain serializable view is stored instead.
type sessionView struct {
	ID       string        `json:"id"`
	ParentID string        `json:"parent_id,omitempty"`
	Depth    int           `json:"depth"`
	State    core.State    `json:"state"`
	RawInput string        `json:"raw_input"`
	Intent   core.Intent   `json:"intent"`
	Vector   []float64     `json:"vector,omitempty"`
	Snapshot core.Snapshot `json:"snapshot"`
	Offers   []core.Offer  `json:"offers,omitempty"`
	Round    int           `json:"round"`
	Result   *core.Result  `json:"result,omitempty"`
	Created  time.Time     `json:"created"`
	Updated  time.Time     `json:"updated"`
}

// Store provides SQLite-backed persistence for sessions and finalized
// traces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put upserts the session.
func (s *Store) Put(session *core.Session) error {
	c := session.Clone()
	view := sessionView{
		ID:       c.ID,
		ParentID: c.ParentID,
		Depth:    c.Depth,
		State:    c.State,
		RawInput: c.RawInput,
		Intent:   c.Intent,
		Vector:   c.Vector,
		Snapshot: c.Snapshot,
		Offers:   c.Offers,
		Round:    c.Round,
		Result:   c.Result,
		Created:  c.Created,
		Updated:  c.Updated,
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.sqlDB.Exec(`
		INSERT INTO sessions (id, parent_id, state, payload, created_ms, updated_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			updated_ms = excluded.updated_ms`,
		view.ID, view.ParentID, string(view.State), string(payload), toMillis(view.Created), toMillis(view.Updated))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get loads a session by id.
func (s *Store) Get(id string) (*core.Session, error) {
	var payload string
	err := s.sqlDB.QueryRow(`SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	var view sessionView
	if err := json.Unmarshal([]byte(payload), &view); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	sess := &core.Session{
		ID:       view.ID,
		ParentID: view.ParentID,
		Depth:    view.Depth,
		State:    view.State,
		RawInput: view.RawInput,
		Intent:   view.Intent,
		Vector:   view.Vector,
		Snapshot: view.Snapshot,
		Offers:   view.Offers,
		Round:    view.Round,
		Result:   view.Result,
		Created:  view.Created,
		Updated:  view.Updated,
	}
	return sess, nil
}

// ChildIDs returns the ids of sessions spawned by the given parent, oldest
// first.
func (s *Store) ChildIDs(parentID string) ([]string, error) {
	rows, err := s.sqlDB.Query(`SELECT id FROM sessions WHERE parent_id = ? ORDER BY created_ms`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveTrace stores a finalized trace.
func (s *Store) SaveTrace(trace core.Trace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	_, err = s.sqlDB.Exec(`
		INSERT INTO traces (session_id, final_state, payload, finalized_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			final_state = excluded.final_state,
			payload = excluded.payload,
			finalized_ms = excluded.finalized_ms`,
		trace.SessionID, string(trace.FinalState), string(payload), toMillis(trace.FinalizedAt))
	if err != nil {
		return fmt.Errorf("upsert trace: %w", err)
	}
	return nil
}

// GetTrace loads the finalized trace for a session.
func (s *Store) GetTrace(sessionID string) (core.Trace, error) {
	var payload string
	err := s.sqlDB.QueryRow(`SELECT payload FROM traces WHERE session_id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return core.Trace{}, fmt.Errorf("trace for session %s not found", sessionID)
	}
	if err != nil {
		return core.Trace{}, fmt.Errorf("query trace: %w", err)
	}
	var tr core.Trace
	if err := json.Unmarshal([]byte(payload), &tr); err != nil {
		return core.Trace{}, fmt.Errorf("unmarshal trace: %w", err)
	}
	return tr, nil
}

var _ core.SessionStore = (*Store)(nil)
var _ core.TraceStore = (*Store)(nil)
