// Package runstore persists orchestrator run states in SQLite so runs
// waiting for approval survive a restart.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
)

// ErrNotFound is returned by Load for unknown runs.
var ErrNotFound = orchestrator.ErrRunNotFound

const schema = `
CREATE TABLE IF NOT EXISTS run_states (
	session_id TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	phase      TEXT NOT NULL,
	state_json TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_run_states_phase ON run_states(phase);
`

// SQLiteStore implements orchestrator.StateStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path. ":memory:" keeps everything
// in-process.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating runstore dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening runstore: %w", err)
	}
	// One writer; also keeps a ":memory:" database on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating runstore: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Save upserts state.
func (s *SQLiteStore) Save(ctx context.Context, state *orchestrator.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding run state: %w", err)
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_states (session_id, task_id, phase, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, task_id) DO UPDATE SET
			phase = excluded.phase,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`,
		state.SessionID, state.TaskID, string(state.Phase), string(data), updated.UTC())
	if err != nil {
		return fmt.Errorf("saving run %s/%s: %w", state.SessionID, state.TaskID, err)
	}
	return nil
}

// Load returns the stored state, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, sessionID, taskID string) (*orchestrator.RunState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM run_states WHERE session_id = ? AND task_id = ?`,
		sessionID, taskID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s/%s: %w", sessionID, taskID, err)
	}
	return decode(data)
}

// Delete removes a run. It reports whether a row existed.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID, taskID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM run_states WHERE session_id = ? AND task_id = ?`, sessionID, taskID)
	if err != nil {
		return false, fmt.Errorf("deleting run %s/%s: %w", sessionID, taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns stored runs, newest first. An empty phase matches all.
func (s *SQLiteStore) List(ctx context.Context, phase orchestrator.Phase) ([]*orchestrator.RunState, error) {
	query := `SELECT state_json FROM run_states`
	var args []any
	if phase != "" {
		query += ` WHERE phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*orchestrator.RunState
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		state, err := decode(data)
		if err != nil {
			s.logger.Warn("skipping undecodable run state", zap.Error(err))
			continue
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decode(data string) (*orchestrator.RunState, error) {
	var state orchestrator.RunState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decoding run state: %w", err)
	}
	return &state, nil
}

var _ orchestrator.StateStore = (*SQLiteStore)(nil)
