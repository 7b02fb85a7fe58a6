package application

import (
	"context"
	"time"
)

// StoredPoint is a point in storage wire shape.
type StoredPoint struct {
	Measurement string
	Time        time.Time
	Tags        map[string]string
	Fields      map[string]any
}

// PointStore persists points and answers duplicate lookups.
type PointStore interface {
	WritePoints(ctx context.Context, points []StoredPoint) error
	ExistingTimestamps(ctx context.Context, measurement string, start, end time.Time) ([]time.Time, error)
}
