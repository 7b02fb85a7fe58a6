package application

import (
	"context"
	"sort"
	"time"

	"health-importer/internal/observability/metrics"
)

// existingIndex holds stored timestamps per measurement for one write call.
type existingIndex map[string]map[int64]struct{}

func (idx existingIndex) add(measurement string, times []time.Time) {
	set, ok := idx[measurement]
	if !ok {
		set = make(map[int64]struct{}, len(times))
		idx[measurement] = set
	}
	for _, ts := range times {
		set[ts.UnixNano()] = struct{}{}
	}
}

func (idx existingIndex) contains(measurement string, ts time.Time) bool {
	_, ok := idx[measurement][ts.UnixNano()]
	return ok
}

func groupByMeasurement(points []StoredPoint) (map[string][]StoredPoint, []string) {
	groups := make(map[string][]StoredPoint)
	for _, p := range points {
		groups[p.Measurement] = append(groups[p.Measurement], p)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return groups, names
}

func timeSpan(points []StoredPoint) (time.Time, time.Time) {
	start, end := points[0].Time, points[0].Time
	for _, p := range points[1:] {
		if p.Time.Before(start) {
			start = p.Time
		}
		if p.Time.After(end) {
			end = p.Time
		}
	}
	return start, end
}

// dropDuplicates removes points whose timestamp already exists for their
// measurement within the widened span. Lookup failures keep every point.
func (w *Writer) dropDuplicates(ctx context.Context, points []StoredPoint, window time.Duration) ([]StoredPoint, int) {
	if len(points) == 0 {
		return points, 0
	}
	groups, names := groupByMeasurement(points)
	index := make(existingIndex, len(names))
	for _, name := range names {
		start, end := timeSpan(groups[name])
		existing, err := w.queryExisting(ctx, name, start.Add(-window), end.Add(window))
		if err != nil {
			metrics.IncDuplicateQueryError()
			w.logger.WithError(err).WithField("measurement", name).Warn("duplicate lookup failed, writing without suppression")
			continue
		}
		index.add(name, existing)
	}

	kept := make([]StoredPoint, 0, len(points))
	duplicates := 0
	for _, p := range points {
		if index.contains(p.Measurement, p.Time) {
			duplicates++
			continue
		}
		kept = append(kept, p)
	}
	return kept, duplicates
}
