package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/health/domain"
	"health-importer/internal/tracking/domain"
	"health-importer/internal/tracking/infrastructure/file"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type brokenStore struct{}

func (brokenStore) LoadHistory(context.Context) (tracking.History, error) {
	return tracking.History{}, errors.New("disk on fire")
}

func (brokenStore) SaveHistory(context.Context, tracking.History) error {
	return errors.New("disk on fire")
}

func newTestTracker(t *testing.T) (*Tracker, *file.Store) {
	t.Helper()
	store := file.NewStore(file.WithHistoryPath(filepath.Join(t.TempDir(), "history.json")))
	logger, _ := test.NewNullLogger()
	tr, err := NewTracker(context.Background(), store, WithLogger(logger), WithClock(func() time.Time { return base }))
	require.NoError(t, err)
	return tr, store
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFingerprintTracksSizeAndMtime(t *testing.T) {
	path := writeExport(t, "<HealthData/>")
	first, err := Fingerprint(path)
	require.NoError(t, err)
	again, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, first, 16)

	require.NoError(t, os.Chtimes(path, base, base))
	touched, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, touched)

	_, err = Fingerprint(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestMonotonicFilter(t *testing.T) {
	tr, _ := newTestTracker(t)
	require.NoError(t, tr.UpdateLastTimestamps(context.Background(), map[string]time.Time{"heartrate_bpm": base}))

	points := []health.Point{
		{Measurement: "heartrate_bpm", Time: base.Add(-time.Second)},
		{Measurement: "heartrate_bpm", Time: base},
		{Measurement: "heartrate_bpm", Time: base.Add(time.Second)},
		{Measurement: "energy_kcal", Time: base.Add(-time.Hour)},
	}
	kept, skipped := tr.FilterPoints(points)

	require.Len(t, kept, 2)
	assert.Equal(t, base.Add(time.Second), kept[0].Time)
	assert.Equal(t, "energy_kcal", kept[1].Measurement)
	assert.Equal(t, map[string]int{"heartrate_bpm": 2}, skipped)
}

func TestUpdateLastTimestampsOnlyAdvances(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.UpdateLastTimestamps(ctx, map[string]time.Time{"hr": base}))
	require.NoError(t, tr.UpdateLastTimestamps(ctx, map[string]time.Time{"hr": base.Add(-time.Hour)}))

	last, ok := tr.LastImportTime("hr")
	require.True(t, ok)
	assert.Equal(t, base, last)

	reloaded, err := NewTracker(ctx, store)
	require.NoError(t, err)
	last, ok = reloaded.LastImportTime("hr")
	require.True(t, ok)
	assert.True(t, last.Equal(base))
}

func TestRecordFileImport(t *testing.T) {
	tr, _ := newTestTracker(t)
	path := writeExport(t, "<HealthData/>")

	imported, err := tr.IsFileAlreadyImported(path)
	require.NoError(t, err)
	assert.False(t, imported)

	require.NoError(t, tr.RecordFileImport(context.Background(), path, tracking.RunStats{Written: 7}))
	imported, err = tr.IsFileAlreadyImported(path)
	require.NoError(t, err)
	assert.True(t, imported)

	summary := tr.Summary()
	require.NotNil(t, summary.LastImport)
	assert.Equal(t, base, *summary.LastImport)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, 7, summary.Files[0].Stats.Written)

	require.NoError(t, os.WriteFile(path, []byte("<HealthData></HealthData>"), 0o644))
	imported, err = tr.IsFileAlreadyImported(path)
	require.NoError(t, err)
	assert.False(t, imported)
}

func TestResetClearsHistory(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.UpdateLastTimestamps(ctx, map[string]time.Time{"hr": base}))
	require.NoError(t, tr.Reset(ctx))

	assert.True(t, tr.ShouldImport(base.Add(-24*time.Hour), "hr"))
	assert.Empty(t, tr.Summary().Files)
	assert.Nil(t, tr.Summary().LastImport)
}

func TestUnreadableHistoryStartsFresh(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tr, err := NewTracker(context.Background(), brokenStore{}, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, tr.ShouldImport(base, "hr"))
	assert.Len(t, hook.Entries, 1)

	assert.Error(t, tr.UpdateLastTimestamps(context.Background(), map[string]time.Time{"hr": base}))
}

func TestNewTrackerRequiresStore(t *testing.T) {
	_, err := NewTracker(context.Background(), nil)
	assert.Error(t, err)
}
