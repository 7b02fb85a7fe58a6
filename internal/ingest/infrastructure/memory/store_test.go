package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/ingest/application"
)

func TestStoreWindowedLookup(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.WritePoints(context.Background(), []application.StoredPoint{
		{Measurement: "hr", Time: base},
		{Measurement: "hr", Time: base.Add(2 * time.Hour)},
		{Measurement: "steps", Time: base},
	}))

	got, err := s.ExistingTimestamps(context.Background(), "hr", base.Add(-time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{base}, got)
	assert.Equal(t, 2, s.Count("hr"))
	assert.Equal(t, 3, s.Count(""))
	assert.Equal(t, 1, s.Writes())
}

func TestStoreHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	assert.Error(t, s.WritePoints(ctx, []application.StoredPoint{{Measurement: "hr"}}))
	assert.Zero(t, s.Count(""))
}
