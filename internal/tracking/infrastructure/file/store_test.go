package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/tracking/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(
		WithHistoryPath(filepath.Join(dir, "history.json")),
		WithCheckpointPath(filepath.Join(dir, "state", "progress.json")),
	), dir
}

func TestMissingDocumentsReportNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.LoadHistory(context.Background())
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	_, err = s.LoadCheckpoint(context.Background())
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	assert.NoError(t, s.ClearCheckpoint(context.Background()))
}

func TestHistoryRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	h := tracking.NewHistory()
	h.LastImport = &at
	h.LastTimestamps["heartrate_bpm"] = at
	h.ImportedFiles["export.xml"] = tracking.FileImport{Hash: "abc", ImportTime: at, Stats: tracking.RunStats{Written: 3}}

	require.NoError(t, s.SaveHistory(context.Background(), h))
	got, err := s.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.True(t, got.LastTimestamps["heartrate_bpm"].Equal(at))
	assert.Equal(t, "abc", got.ImportedFiles["export.xml"].Hash)
	assert.Equal(t, 3, got.ImportedFiles["export.xml"].Stats.Written)
}

func TestCheckpointSaveAndClear(t *testing.T) {
	s, dir := newTestStore(t)
	cp := tracking.Checkpoint{FileHash: "h", Position: tracking.Position{Records: 10, Workouts: 2}}
	require.NoError(t, s.SaveCheckpoint(context.Background(), cp))

	got, err := s.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cp.Position, got.Position)

	entries, err := os.ReadDir(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.ClearCheckpoint(context.Background()))
	_, err = s.LoadCheckpoint(context.Background())
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestCorruptDocumentIsError(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte("{not json"), 0o644))
	_, err := s.LoadHistory(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, tracking.ErrNotFound)
}
