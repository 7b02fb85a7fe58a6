package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/tracking/domain"
)

func newMockStore(t *testing.T, opts ...StateOption) (*StateStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := NewStateStore(db, opts...)
	require.NoError(t, err)
	return store, mock
}

func TestNewStateStoreRequiresDB(t *testing.T) {
	_, err := NewStateStore(nil)
	assert.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t, WithStateTable("importer_state"))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS importer_state")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadHistoryNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM import_state WHERE name = $1")).
		WithArgs(historyKey).
		WillReturnError(sql.ErrNoRows)

	h, err := store.LoadHistory(context.Background())
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	assert.NotNil(t, h.ImportedFiles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)
	cp := tracking.Checkpoint{FileHash: "abc", Position: tracking.Position{Records: 42}}
	payload, err := json.Marshal(cp)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO import_state (name, document, updated_at)")).
		WithArgs(checkpointKey, payload).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM import_state")).
		WithArgs(checkpointKey).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(payload))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM import_state WHERE name = $1")).
		WithArgs(checkpointKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveCheckpoint(context.Background(), cp))
	got, err := store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", got.FileHash)
	assert.Equal(t, int64(42), got.Position.Records)
	require.NoError(t, store.ClearCheckpoint(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM import_state")).
		WithArgs(historyKey).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte("{oops")))

	_, err := store.LoadHistory(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, tracking.ErrNotFound)
}
