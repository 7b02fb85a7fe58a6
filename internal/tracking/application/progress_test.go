package application

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/tracking/domain"
	"health-importer/internal/tracking/infrastructure/file"
)

func TestProgressLifecycle(t *testing.T) {
	ctx := context.Background()
	store := file.NewStore(file.WithCheckpointPath(filepath.Join(t.TempDir(), "progress.json")))

	p, err := NewProgress(ctx, store)
	require.NoError(t, err)
	assert.False(t, p.CanResume("abc"))

	stats := tracking.RunStats{Categories: map[string]int{"vitals": 5}, Written: 5}
	pos := tracking.Position{Records: 5, Workouts: 1}
	require.NoError(t, p.Save(ctx, "abc", pos, stats))
	stats.Categories["vitals"] = 99

	reloaded, err := NewProgress(ctx, store)
	require.NoError(t, err)
	assert.True(t, reloaded.CanResume("abc"))
	assert.False(t, reloaded.CanResume("other"))
	assert.Equal(t, pos, reloaded.ResumePosition())
	assert.Equal(t, 5, reloaded.ResumeStats().Categories["vitals"])

	require.NoError(t, reloaded.Clear(ctx))
	assert.False(t, reloaded.CanResume("abc"))

	fresh, err := NewProgress(ctx, store)
	require.NoError(t, err)
	assert.False(t, fresh.CanResume("abc"))
}

func TestProgressWithoutPositionCannotResume(t *testing.T) {
	ctx := context.Background()
	store := file.NewStore(file.WithCheckpointPath(filepath.Join(t.TempDir(), "progress.json")))
	p, err := NewProgress(ctx, store)
	require.NoError(t, err)

	require.NoError(t, p.Save(ctx, "abc", tracking.Position{}, tracking.RunStats{}))
	assert.False(t, p.CanResume("abc"))
}
