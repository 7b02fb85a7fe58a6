package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
	"health-importer/internal/observability/metrics"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetryUnit      = time.Second
	streamingWindow       = time.Hour
)

// Stats aggregates the result of a write call.
type Stats struct {
	Written    int
	Duplicates int
	Errors     int
	// Latest is the newest written timestamp per measurement.
	Latest map[string]time.Time
}

// Merge adds other into s.
func (s *Stats) Merge(other Stats) {
	s.Written += other.Written
	s.Duplicates += other.Duplicates
	s.Errors += other.Errors
	for measurement, ts := range other.Latest {
		s.observe(measurement, ts)
	}
}

func (s *Stats) observe(measurement string, ts time.Time) {
	if s.Latest == nil {
		s.Latest = make(map[string]time.Time)
	}
	if prev, ok := s.Latest[measurement]; !ok || ts.After(prev) {
		s.Latest[measurement] = ts
	}
}

// Writer converts points to storage shape and commits them in batches.
type Writer struct {
	store          PointStore
	registry       *catalog.Registry
	logger         logrus.FieldLogger
	timeout        time.Duration
	retryUnit      time.Duration
	skipDuplicates bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRequestTimeout bounds each store call.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(w *Writer) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

// WithRetryUnit scales the retry wait; the n-th wait is unit*base^n.
func WithRetryUnit(unit time.Duration) Option {
	return func(w *Writer) {
		if unit > 0 {
			w.retryUnit = unit
		}
	}
}

// WithDuplicateCheck toggles duplicate suppression. Enabled by default.
func WithDuplicateCheck(enabled bool) Option {
	return func(w *Writer) {
		w.skipDuplicates = enabled
	}
}

// NewWriter constructs a writer.
func NewWriter(store PointStore, registry *catalog.Registry, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if registry == nil {
		return nil, errors.New("ingest: nil registry")
	}
	w := &Writer{
		store:          store,
		registry:       registry,
		logger:         logrus.StandardLogger(),
		timeout:        defaultRequestTimeout,
		retryUnit:      defaultRetryUnit,
		skipDuplicates: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteBatch writes points with duplicate suppression over the configured window.
func (w *Writer) WriteBatch(ctx context.Context, points []health.Point) Stats {
	prepared, stats := w.prepareAll(points)
	if w.skipDuplicates {
		var duplicates int
		prepared, duplicates = w.dropDuplicates(ctx, prepared, w.registry.DuplicateCheckWindow())
		stats.Duplicates += duplicates
		metrics.AddPoints(metrics.PointsDuplicate, duplicates)
	}
	w.commit(ctx, prepared, &stats)
	return stats
}

// WriteStreaming writes one streaming batch, checking duplicates per
// measurement over a one-hour window.
func (w *Writer) WriteStreaming(ctx context.Context, points []health.Point) Stats {
	prepared, stats := w.prepareAll(points)
	groups, names := groupByMeasurement(prepared)
	for _, name := range names {
		group := groups[name]
		if w.skipDuplicates {
			var duplicates int
			group, duplicates = w.dropDuplicates(ctx, group, streamingWindow)
			stats.Duplicates += duplicates
			metrics.AddPoints(metrics.PointsDuplicate, duplicates)
		}
		w.commit(ctx, group, &stats)
	}
	return stats
}

func (w *Writer) prepareAll(points []health.Point) ([]StoredPoint, Stats) {
	var stats Stats
	prepared := make([]StoredPoint, 0, len(points))
	for _, p := range points {
		sp, err := w.Prepare(p)
		if err != nil {
			stats.Errors++
			w.logger.WithError(err).Error("point preparation failed")
			continue
		}
		prepared = append(prepared, sp)
	}
	metrics.AddPoints(metrics.PointsError, stats.Errors)
	return prepared, stats
}

// commit writes points in batch-size chunks. A chunk that exhausts its
// retries is counted as errors and the remaining chunks still run.
func (w *Writer) commit(ctx context.Context, points []StoredPoint, stats *Stats) {
	size := w.registry.BatchSize()
	if size <= 0 {
		size = len(points)
	}
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]

		began := time.Now()
		err := w.retry(ctx, "write", func(callCtx context.Context) error {
			return w.store.WritePoints(callCtx, chunk)
		})
		if err != nil {
			metrics.ObserveBatchWrite(metrics.ResultError, time.Since(began))
			metrics.AddPoints(metrics.PointsError, len(chunk))
			stats.Errors += len(chunk)
			w.logger.WithError(err).WithFields(logrus.Fields{
				"measurement": chunk[0].Measurement,
				"points":      len(chunk),
			}).Error("batch write failed")
			continue
		}
		metrics.ObserveBatchWrite(metrics.ResultSuccess, time.Since(began))
		metrics.AddPoints(metrics.PointsWritten, len(chunk))
		stats.Written += len(chunk)
		for _, p := range chunk {
			stats.observe(p.Measurement, p.Time)
		}
	}
}

func (w *Writer) queryExisting(ctx context.Context, measurement string, start, end time.Time) ([]time.Time, error) {
	var existing []time.Time
	err := w.retry(ctx, "query", func(callCtx context.Context) error {
		var err error
		existing, err = w.store.ExistingTimestamps(callCtx, measurement, start, end)
		return err
	})
	return existing, err
}
