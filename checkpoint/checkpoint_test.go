package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit-go/ragagents/config"
)

type threadState struct {
	Messages []string `json:"messages"`
	Step     int      `json:"step"`
}

func saversUnderTest(t *testing.T) map[string]Saver {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFile(filepath.Join(dir, "files"))
	require.NoError(t, err)

	db, err := NewSQLite(SQLiteOptions{Path: filepath.Join(dir, "checkpoints.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb, err := NewRedis(RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return map[string]Saver{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
		"redis":  rdb,
	}
}

func TestSavers(t *testing.T) {
	for name, s := range saversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Latest(ctx, "1")
			assert.ErrorIs(t, err, ErrNotFound)
			n, err := Versions(ctx, s, "1")
			require.NoError(t, err)
			assert.Zero(t, n)

			var saved []*Checkpoint
			for v := 1; v <= 3; v++ {
				state := threadState{Messages: make([]string, v), Step: v}
				cp := New("1", "agent", state, v, map[string]any{MetaStatus: "completed"})
				require.NoError(t, s.Save(ctx, cp))
				saved = append(saved, cp)
			}
			require.NoError(t, s.Save(ctx, New("2", "tools", threadState{Step: 9}, 1, nil)))

			loaded, err := s.Load(ctx, saved[1].ID)
			require.NoError(t, err)
			assert.Equal(t, "agent", loaded.NodeName)
			assert.Equal(t, 2, loaded.Version)
			assert.Equal(t, "1", ThreadID(loaded))
			assert.Equal(t, "completed", loaded.Metadata[MetaStatus])

			st, err := DecodeState[threadState](loaded)
			require.NoError(t, err)
			assert.Equal(t, 2, st.Step)
			assert.Len(t, st.Messages, 2)

			list, err := s.List(ctx, "1")
			require.NoError(t, err)
			require.Len(t, list, 3)
			for i, cp := range list {
				assert.Equal(t, i+1, cp.Version)
			}

			latest, err := s.Latest(ctx, "1")
			require.NoError(t, err)
			assert.Equal(t, saved[2].ID, latest.ID)
			n, err = Versions(ctx, s, "1")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			_, err = s.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, saved[2].ID))
			latest, err = s.Latest(ctx, "1")
			require.NoError(t, err)
			assert.Equal(t, 2, latest.Version)

			require.NoError(t, s.Clear(ctx, "1"))
			list, err = s.List(ctx, "1")
			require.NoError(t, err)
			assert.Empty(t, list)

			other, err := s.List(ctx, "2")
			require.NoError(t, err)
			assert.Len(t, other, 1)
		})
	}
}

func TestSaveOverwritesSameID(t *testing.T) {
	for name, s := range saversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cp := New("t", "agent", threadState{Step: 1}, 1, nil)
			require.NoError(t, s.Save(ctx, cp))
			cp.State = threadState{Step: 2}
			require.NoError(t, s.Save(ctx, cp))

			list, err := s.List(ctx, "t")
			require.NoError(t, err)
			require.Len(t, list, 1)
			st, err := DecodeState[threadState](list[0])
			require.NoError(t, err)
			assert.Equal(t, 2, st.Step)
		})
	}
}

func TestRedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisOptions{URL: "redis://" + mr.Addr() + "/0", TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	cp := New("thread", "agent", threadState{}, 1, nil)
	require.NoError(t, s.Save(ctx, cp))
	assert.Equal(t, time.Minute, mr.TTL("ragagents:checkpoint:"+cp.ID))

	mr.FastForward(2 * time.Minute)
	_, err = s.Latest(ctx, "thread")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRejectsPathIDs(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	cp := New("t", "agent", nil, 1, nil)
	cp.ID = "../escape"
	assert.Error(t, f.Save(context.Background(), cp))
}

func TestNewSetsThread(t *testing.T) {
	meta := map[string]any{"k": "v"}
	cp := New("abc", "tools", 1, 4, meta)
	assert.NotEmpty(t, cp.ID)
	assert.Equal(t, "abc", ThreadID(cp))
	assert.NotContains(t, meta, MetaThreadID)
	assert.Equal(t, 4, cp.Version)
	assert.Empty(t, ThreadID(nil))

	_, err := DecodeState[threadState](nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.CheckpointConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.CheckpointConfig{Backend: "file", DSN: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	s, err = Open(ctx, config.CheckpointConfig{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.(*SQLite).Close())

	_, err = Open(ctx, config.CheckpointConfig{Backend: "redis", DSN: "://bad"})
	assert.Error(t, err)

	_, err = Open(ctx, config.CheckpointConfig{Backend: "etcd"})
	assert.Error(t, err)
}
