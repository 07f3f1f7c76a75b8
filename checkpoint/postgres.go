package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of pgxpool.Pool used by Postgres.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres stores checkpoints in a PostgreSQL table with JSONB state.
type Postgres struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configures NewPostgres.
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "checkpoints"
}

// NewPostgres connects a pool and creates the table if needed.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: postgres pool: %w", err)
	}
	s := NewPostgresWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool uses an existing pool, such as a pgxmock pool.
func NewPostgresWithPool(pool DBPool, tableName string) *Postgres {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &Postgres{pool: pool, tableName: tableName}
}

// InitSchema creates the table and thread index if they don't exist.
func (s *Postgres) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			node_name TEXT NOT NULL,
			state JSONB NOT NULL,
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_version ON %s (thread_id, version);
	`, s.tableName, s.tableName, s.tableName)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("checkpoint: create schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) Save(ctx context.Context, cp *Checkpoint) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			node_name = EXCLUDED.node_name,
			state = EXCLUDED.state,
			metadata = EXCLUDED.metadata,
			timestamp = EXCLUDED.timestamp,
			version = EXCLUDED.version
	`, s.tableName)
	_, err = s.pool.Exec(ctx, query,
		cp.ID,
		ThreadID(cp),
		cp.NodeName,
		stateJSON,
		metadataJSON,
		cp.Timestamp,
		cp.Version,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", cp.ID, err)
	}
	return nil
}

const postgresColumns = "id, node_name, state, metadata, timestamp, version"

func (s *Postgres) Load(ctx context.Context, id string) (*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", postgresColumns, s.tableName)
	cp, err := scanPostgres(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", id, err)
	}
	return cp, nil
}

func (s *Postgres) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = $1 ORDER BY version ASC, timestamp ASC", postgresColumns, s.tableName)
	rows, err := s.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", threadID, err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanPostgres(rows)
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

func (s *Postgres) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = $1 ORDER BY version DESC LIMIT 1", postgresColumns, s.tableName)
	cp, err := scanPostgres(s.pool.QueryRow(ctx, query, threadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: latest %s: %w", threadID, err)
	}
	return cp, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, threadID); err != nil {
		return fmt.Errorf("checkpoint: clear %s: %w", threadID, err)
	}
	return nil
}

func scanPostgres(row pgx.Row) (*Checkpoint, error) {
	var (
		cp           Checkpoint
		stateJSON    []byte
		metadataJSON []byte
	)
	if err := row.Scan(&cp.ID, &cp.NodeName, &stateJSON, &metadataJSON, &cp.Timestamp, &cp.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &cp, nil
}
