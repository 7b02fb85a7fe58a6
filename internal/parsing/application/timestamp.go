package application

import (
	"fmt"
	"strings"
	"time"

	"health-importer/internal/health/domain"
)

const (
	exportLayout = "2006-01-02 15:04:05 -0700"
	naiveLayout  = "2006-01-02T15:04:05"
	dateLayout   = "2006-01-02"
)

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(exportLayout, raw); err == nil {
		return ts.In(loc), nil
	}
	iso := raw
	if strings.HasSuffix(iso, "Z") {
		iso = strings.TrimSuffix(iso, "Z") + "+00:00"
	}
	if ts, err := time.Parse(time.RFC3339Nano, iso); err == nil {
		return ts.In(loc), nil
	}
	if ts, err := time.ParseInLocation(naiveLayout, iso, loc); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", health.ErrInvalidTimestamp, raw)
}

// parseDay returns local midnight of a calendar day.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	ts, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", health.ErrInvalidTimestamp, raw)
	}
	return ts, nil
}
