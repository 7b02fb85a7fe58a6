package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"health-importer/internal/ingest/application"
)

// Store keeps written points in process memory. Used for dry runs and tests.
type Store struct {
	mu     sync.Mutex
	points []application.StoredPoint
	writes int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

// WritePoints appends points.
func (s *Store) WritePoints(ctx context.Context, points []application.StoredPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
	s.writes++
	return nil
}

// ExistingTimestamps returns stored timestamps of measurement within [start, end].
func (s *Store) ExistingTimestamps(ctx context.Context, measurement string, start, end time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, p := range s.points {
		if p.Measurement != measurement || p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		out = append(out, p.Time)
	}
	return out, nil
}

// Points returns a copy of all stored points ordered by time.
func (s *Store) Points() []application.StoredPoint {
	s.mu.Lock()
	out := make([]application.StoredPoint, len(s.points))
	copy(out, s.points)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Count returns the number of stored points for measurement, or all points when empty.
func (s *Store) Count(measurement string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if measurement == "" {
		return len(s.points)
	}
	n := 0
	for _, p := range s.points {
		if p.Measurement == measurement {
			n++
		}
	}
	return n
}

// Writes returns the number of successful WritePoints calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
