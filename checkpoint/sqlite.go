package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores checkpoints in a single table of a SQLite database.
type SQLite struct {
	db        *sql.DB
	tableName string
}

// SQLiteOptions configures NewSQLite.
type SQLiteOptions struct {
	Path      string
	TableName string // Default "checkpoints"
}

// NewSQLite opens the database and creates the table if needed.
func NewSQLite(opts SQLiteOptions) (*SQLite, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite %s: %w", opts.Path, err)
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}
	s := &SQLite{db: db, tableName: tableName}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the table and thread index if they don't exist.
func (s *SQLite) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			node_name TEXT NOT NULL,
			state TEXT NOT NULL,
			metadata TEXT,
			timestamp DATETIME NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_version ON %s (thread_id, version);
	`, s.tableName, s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("checkpoint: create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, cp *Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}
	metadataJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, thread_id, node_name, state, metadata, timestamp, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			node_name = excluded.node_name,
			state = excluded.state,
			metadata = excluded.metadata,
			timestamp = excluded.timestamp,
			version = excluded.version
	`, s.tableName)
	_, err = s.db.ExecContext(ctx, query,
		cp.ID,
		ThreadID(cp),
		cp.NodeName,
		string(stateJSON),
		string(metadataJSON),
		cp.Timestamp,
		cp.Version,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", cp.ID, err)
	}
	return nil
}

const sqliteColumns = "id, node_name, state, metadata, timestamp, version"

func (s *SQLite) Load(ctx context.Context, id string) (*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", sqliteColumns, s.tableName)
	cp, err := scanSQLite(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", id, err)
	}
	return cp, nil
}

func (s *SQLite) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = ? ORDER BY version ASC, timestamp ASC", sqliteColumns, s.tableName)
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", threadID, err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: scan row: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: iterate rows: %w", err)
	}
	return out, nil
}

func (s *SQLite) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = ? ORDER BY version DESC LIMIT 1", sqliteColumns, s.tableName)
	cp, err := scanSQLite(s.db.QueryRowContext(ctx, query, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: latest %s: %w", threadID, err)
	}
	return cp, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, threadID); err != nil {
		return fmt.Errorf("checkpoint: clear %s: %w", threadID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Checkpoint, error) {
	var (
		cp           Checkpoint
		stateJSON    string
		metadataJSON sql.NullString
	)
	if err := row.Scan(&cp.ID, &cp.NodeName, &stateJSON, &metadataJSON, &cp.Timestamp, &cp.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &cp.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &cp, nil
}
