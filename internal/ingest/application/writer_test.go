package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	points    []StoredPoint
	calls     int
	failCalls map[int]bool
	failAll   func(batch []StoredPoint) bool
	queryErr  error
	queries   []queryCall
}

type queryCall struct {
	measurement string
	start, end  time.Time
}

func (f *fakeStore) WritePoints(_ context.Context, points []StoredPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failCalls[f.calls] || (f.failAll != nil && f.failAll(points)) {
		return errors.New("store unavailable")
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeStore) ExistingTimestamps(_ context.Context, measurement string, start, end time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queryCall{measurement, start, end})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []time.Time
	for _, p := range f.points {
		if p.Measurement == measurement && !p.Time.Before(start) && !p.Time.After(end) {
			out = append(out, p.Time)
		}
	}
	return out, nil
}

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func hr(offset time.Duration, value float64) health.Point {
	return health.Point{
		Type:   "HKQuantityTypeIdentifierHeartRate",
		Kind:   health.KindQuantity,
		Time:   base.Add(offset),
		Fields: map[string]any{"value": value},
		Tags:   map[string]string{"source": "Watch", "device": "", "unit": "count/min"},
	}
}

func newTestWriter(t *testing.T, store PointStore, reg *catalog.Registry, opts ...Option) *Writer {
	t.Helper()
	if reg == nil {
		reg = catalog.Default()
	}
	logger, _ := test.NewNullLogger()
	w, err := NewWriter(store, reg, append([]Option{WithLogger(logger), WithRetryUnit(time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	return w
}

func TestNewWriterValidatesDependencies(t *testing.T) {
	_, err := NewWriter(nil, catalog.Default())
	assert.Error(t, err)
	_, err = NewWriter(&fakeStore{}, nil)
	assert.Error(t, err)
}

func TestPrepareMapsTagsAndFields(t *testing.T) {
	w := newTestWriter(t, &fakeStore{}, nil)

	sp, err := w.Prepare(hr(0, 72))
	require.NoError(t, err)
	assert.Equal(t, "heartrate_bpm", sp.Measurement)
	assert.Equal(t, map[string]any{"heart_rate": 72.0}, sp.Fields)
	assert.Equal(t, map[string]string{
		"source": "Watch",
		"type":   "HKQuantityTypeIdentifierHeartRate",
	}, sp.Tags)
}

func TestPrepareInjectsPresenceMarker(t *testing.T) {
	w := newTestWriter(t, &fakeStore{}, nil)
	sp, err := w.Prepare(health.Point{
		Type:   health.WorkoutType,
		Time:   base,
		Fields: map[string]any{},
		Tags:   map[string]string{"activity_type": "Yoga"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": 1.0}, sp.Fields)
	assert.Equal(t, "Yoga", sp.Tags["activity_type"])
}

func TestPrepareUnknownTypeFails(t *testing.T) {
	w := newTestWriter(t, &fakeStore{}, nil)
	_, err := w.Prepare(health.Point{Type: "HKQuantityTypeIdentifierBloodGlucose"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestWriteBatchIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(t, store, nil)
	points := []health.Point{hr(0, 60), hr(time.Minute, 61), hr(2*time.Minute, 62)}

	first := w.WriteBatch(context.Background(), points)
	assert.Equal(t, 3, first.Written)
	assert.Zero(t, first.Duplicates)
	assert.Equal(t, base.Add(2*time.Minute), first.Latest["heartrate_bpm"])

	second := w.WriteBatch(context.Background(), points)
	assert.Zero(t, second.Written)
	assert.Equal(t, 3, second.Duplicates)
	assert.Len(t, store.points, 3)
}

func TestWriteBatchWidensLookupWindow(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(t, store, nil)

	w.WriteBatch(context.Background(), []health.Point{hr(0, 60), hr(time.Hour, 61)})
	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, "heartrate_bpm", q.measurement)
	assert.Equal(t, base.Add(-24*time.Hour), q.start)
	assert.Equal(t, base.Add(25*time.Hour), q.end)

	store.queries = nil
	w.WriteStreaming(context.Background(), []health.Point{hr(2*time.Hour, 62)})
	require.Len(t, store.queries, 1)
	assert.Equal(t, base.Add(time.Hour), store.queries[0].start)
	assert.Equal(t, base.Add(3*time.Hour), store.queries[0].end)
}

func TestDuplicateLookupFailsOpen(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("query timeout")}
	w := newTestWriter(t, store, nil)

	stats := w.WriteBatch(context.Background(), []health.Point{hr(0, 60)})
	assert.Equal(t, 1, stats.Written)
	assert.Zero(t, stats.Errors)
}

func TestBatchPartialFailureIsolation(t *testing.T) {
	doc := catalog.DefaultDocument()
	doc.Global.BatchSize = 2
	reg, err := catalog.NewRegistry(doc)
	require.NoError(t, err)

	poisoned := base.Add(4 * time.Minute)
	store := &fakeStore{failAll: func(batch []StoredPoint) bool {
		for _, p := range batch {
			if p.Time.Equal(poisoned) {
				return true
			}
		}
		return false
	}}
	w := newTestWriter(t, store, reg)

	var points []health.Point
	for i := 0; i < 10; i++ {
		points = append(points, hr(time.Duration(i)*time.Minute, float64(60+i)))
	}
	stats := w.WriteBatch(context.Background(), points)

	assert.Equal(t, 8, stats.Written)
	assert.Equal(t, 2, stats.Errors)
	assert.Len(t, store.points, 8)
	assert.Equal(t, 5+2, store.calls)
}

func TestWriteRetriesTransientFailures(t *testing.T) {
	store := &fakeStore{failCalls: map[int]bool{1: true, 2: true}}
	w := newTestWriter(t, store, nil)

	stats := w.WriteBatch(context.Background(), []health.Point{hr(0, 60)})
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 3, store.calls)
}

func TestWriteStreamingGroupsByMeasurement(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(t, store, nil)
	steps := health.Point{
		Type:   "HKQuantityTypeIdentifierStepCount",
		Time:   base,
		Fields: map[string]any{"value": 120.0},
	}

	stats := w.WriteStreaming(context.Background(), []health.Point{hr(0, 60), steps, {Type: "Bogus"}})
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 1, stats.Errors)
	assert.Len(t, store.queries, 2)
	assert.Equal(t, base, stats.Latest["energy_kcal"])
}

func TestDuplicateCheckCanBeDisabled(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(t, store, nil, WithDuplicateCheck(false))

	w.WriteBatch(context.Background(), []health.Point{hr(0, 60)})
	stats := w.WriteBatch(context.Background(), []health.Point{hr(0, 60)})
	assert.Equal(t, 1, stats.Written)
	assert.Empty(t, store.queries)
}

func TestStatsMerge(t *testing.T) {
	var total Stats
	total.Merge(Stats{Written: 2, Latest: map[string]time.Time{"a": base}})
	total.Merge(Stats{Duplicates: 1, Errors: 3, Latest: map[string]time.Time{"a": base.Add(-time.Hour), "b": base}})

	assert.Equal(t, 2, total.Written)
	assert.Equal(t, 1, total.Duplicates)
	assert.Equal(t, 3, total.Errors)
	assert.Equal(t, base, total.Latest["a"])
	assert.Equal(t, base, total.Latest["b"])
}
