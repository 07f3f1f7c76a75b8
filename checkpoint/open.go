package checkpoint

import (
	"context"
	"fmt"

	"github.com/agentkit-go/ragagents/config"
)

// Open creates the saver named in cfg. Callers should close the result
// when it implements io.Closer.
func Open(ctx context.Context, cfg config.CheckpointConfig) (Saver, error) {
	var (
		s   Saver
		err error
	)
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		var f *File
		if f, err = NewFile(cfg.DSN); err == nil {
			s = f
		}
	case "sqlite":
		var db *SQLite
		if db, err = NewSQLite(SQLiteOptions{Path: cfg.DSN, TableName: cfg.Table}); err == nil {
			s = db
		}
	case "redis":
		var r *Redis
		if r, err = NewRedis(RedisOptions{URL: cfg.DSN, TTL: cfg.TTL}); err == nil {
			s = r
		}
	case "postgres":
		var pg *Postgres
		if pg, err = NewPostgres(ctx, PostgresOptions{ConnString: cfg.DSN, TableName: cfg.Table}); err == nil {
			s = pg
		}
	default:
		return nil, fmt.Errorf("checkpoint: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
