package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"health-importer/internal/ingest/application"
)

// Config locates the target bucket.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Store writes points to an InfluxDB 2.x bucket.
type Store struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	bucket string
}

// NewStore constructs a store. The connection is not checked; call Ping.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx: url required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx: org and bucket required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Store{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		query:  client.QueryAPI(cfg.Org),
		bucket: cfg.Bucket,
	}, nil
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx: ping: %w", err)
	}
	if !ok {
		return errors.New("influx: server not ready")
	}
	return nil
}

// Close releases client resources.
func (s *Store) Close() {
	s.client.Close()
}

// WritePoints writes points in one blocking request.
func (s *Store) WritePoints(ctx context.Context, points []application.StoredPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, influxdb2.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}
	if err := s.write.WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("influx: write %d points: %w", len(points), err)
	}
	return nil
}

// ExistingTimestamps returns the distinct timestamps stored for measurement in [start, end].
func (s *Store) ExistingTimestamps(ctx context.Context, measurement string, start, end time.Time) ([]time.Time, error) {
	result, err := s.query.Query(ctx, existingQuery(s.bucket, measurement, start, end))
	if err != nil {
		return nil, fmt.Errorf("influx: query %s: %w", measurement, err)
	}
	defer result.Close()

	seen := make(map[int64]struct{})
	var out []time.Time
	for result.Next() {
		ts := result.Record().Time()
		if _, dup := seen[ts.UnixNano()]; dup {
			continue
		}
		seen[ts.UnixNano()] = struct{}{}
		out = append(out, ts)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx: read %s: %w", measurement, err)
	}
	return out, nil
}

// existingQuery builds the Flux lookup. The range stop is exclusive, so it
// is moved one nanosecond past end.
func existingQuery(bucket, measurement string, start, end time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> keep(columns: ["_time"])`,
		bucket,
		start.UTC().Format(time.RFC3339Nano),
		end.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano),
		measurement,
	)
}
