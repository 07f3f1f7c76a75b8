package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pgColumns = []string{"id", "node_name", "state", "metadata", "timestamp", "version"}

func TestPostgres_InitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS agent_checkpoints")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := NewPostgresWithPool(mock, "agent_checkpoints")
	require.NoError(t, s.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock, "")
	cp := New("6", "tools", map[string]any{"messages": []any{}}, 2, map[string]any{MetaStatus: "interrupted"})
	stateJSON, _ := json.Marshal(cp.State)
	metadataJSON, _ := json.Marshal(cp.Metadata)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkpoints")).
		WithArgs(cp.ID, "6", "tools", stateJSON, metadataJSON, cp.Timestamp, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveMarshalError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock, "")
	cp := New("6", "tools", make(chan int), 1, nil)
	err = s.Save(context.Background(), cp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresWithPool(mock, "")

	now := time.Now()
	rows := pgxmock.NewRows(pgColumns).
		AddRow("cp-1", "agent", []byte(`{"step":3}`), []byte(`{"thread_id":"1"}`), now, 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, node_name, state, metadata, timestamp, version FROM checkpoints WHERE id = $1")).
		WithArgs("cp-1").
		WillReturnRows(rows)

	cp, err := s.Load(context.Background(), "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "agent", cp.NodeName)
	assert.Equal(t, 3, cp.Version)
	assert.Equal(t, "1", ThreadID(cp))
	st, err := DecodeState[threadState](cp)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Step)

	mock.ExpectQuery(regexp.QuoteMeta("FROM checkpoints WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListAndLatest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresWithPool(mock, "")

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM checkpoints WHERE thread_id = $1 ORDER BY version ASC")).
		WithArgs("1").
		WillReturnRows(pgxmock.NewRows(pgColumns).
			AddRow("a", "agent", []byte(`{}`), []byte(`{"thread_id":"1"}`), now, 1).
			AddRow("b", "tools", []byte(`{}`), []byte(`{"thread_id":"1"}`), now, 2))

	list, err := s.List(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[1].ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM checkpoints WHERE thread_id = $1 ORDER BY version DESC LIMIT 1")).
		WithArgs("1").
		WillReturnRows(pgxmock.NewRows(pgColumns).
			AddRow("b", "tools", []byte(`{}`), []byte(`{"thread_id":"1"}`), now, 2))
	latest, err := s.Latest(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version DESC LIMIT 1")).
		WithArgs("empty").
		WillReturnRows(pgxmock.NewRows(pgColumns))
	_, err = s.Latest(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteAndClear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresWithPool(mock, "")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM checkpoints WHERE id = $1")).
		WithArgs("a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM checkpoints WHERE thread_id = $1")).
		WithArgs("1").
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, s.Delete(context.Background(), "a"))
	err = s.Clear(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
