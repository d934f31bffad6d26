// Package memory persists pipeline task snapshots in SQLite so that tasks
// survive a server restart.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "tasks.db"

// SQLiteStore stores one row per task holding the full JSON snapshot plus a
// few columns for listing and lookup.
type SQLiteStore struct {
	db       *sql.DB
	basePath string
}

// NewSQLiteStore opens (or creates) the task database under basePath.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	dbPath := ":memory:"
	if basePath != ":memory:" {
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dbPath = filepath.Join(basePath, DatabaseFile)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db, basePath: basePath}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS pipeline_tasks (
		id TEXT PRIMARY KEY,
		problem TEXT NOT NULL,
		current_stage TEXT NOT NULL,
		complete INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		snapshot TEXT NOT NULL,            -- JSON encoded TaskState
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_tasks_created ON pipeline_tasks(created_at);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes a snapshot. Older versions never overwrite newer ones, so
// snapshots may arrive out of order.
func (s *SQLiteStore) Upsert(ctx context.Context, st *pipeline.TaskState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", st.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipeline_tasks (id, problem, current_stage, complete, version, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			problem = excluded.problem,
			current_stage = excluded.current_stage,
			complete = excluded.complete,
			version = excluded.version,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
		WHERE excluded.version > pipeline_tasks.version
	`, st.ID, st.Problem, st.CurrentStage.String(), boolInt(st.Complete), st.Version, string(snapshot),
		st.CreatedAt.UTC().Format(time.RFC3339Nano), st.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", st.ID, err)
	}
	return tx.Commit()
}

// Get loads one task.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*pipeline.TaskState, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM pipeline_tasks WHERE id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeSnapshot(snapshot)
}

// LoadAll returns every stored task, oldest first.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*pipeline.TaskState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot FROM pipeline_tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*pipeline.TaskState
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		st, err := decodeSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return states, nil
}

// List returns listing rows for every stored task, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]pipeline.Summary, error) {
	states, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Summary, len(states))
	for i, st := range states {
		out[i] = st.Summarize()
	}
	return out, nil
}

// FindTaskIDsByPrefix returns the IDs starting with prefix, sorted.
func (s *SQLiteStore) FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM pipeline_tasks WHERE id LIKE ? ESCAPE '\' ORDER BY id`, escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("find task ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeSnapshot(raw string) (*pipeline.TaskState, error) {
	var st pipeline.TaskState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode task snapshot: %w", err)
	}
	return &st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
