package tracking

import (
	"context"
	"errors"
	"time"

	"health-importer/internal/health/domain"
)

// ErrNotFound is returned by stores that hold no document yet.
var ErrNotFound = errors.New("tracking: not found")

// RunStats are the accumulated counters of one import run.
type RunStats struct {
	Categories         map[string]int `json:"categories"`
	ParseErrors        int            `json:"parse_errors"`
	Rejected           int            `json:"rejected"`
	ValidationErrors   int            `json:"validation_errors"`
	ValidationWarnings int            `json:"validation_warnings"`
	UnknownTypes       int            `json:"unknown_types"`
	Skipped            int            `json:"skipped"`
	Written            int            `json:"written"`
	Duplicates         int            `json:"duplicates"`
	WriteErrors        int            `json:"write_errors"`

	// Latest is the newest written timestamp per measurement.
	Latest map[string]time.Time `json:"latest_timestamps,omitempty"`
}

// Clone returns a deep copy.
func (s RunStats) Clone() RunStats {
	out := s
	out.Categories = make(map[string]int, len(s.Categories))
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	if s.Latest != nil {
		out.Latest = make(map[string]time.Time, len(s.Latest))
		for k, v := range s.Latest {
			out.Latest[k] = v
		}
	}
	return out
}

// ObserveLatest raises Latest to the newer of the current and given timestamps.
func (s *RunStats) ObserveLatest(latest map[string]time.Time) {
	for measurement, ts := range latest {
		if s.Latest == nil {
			s.Latest = make(map[string]time.Time)
		}
		if prev, ok := s.Latest[measurement]; !ok || ts.After(prev) {
			s.Latest[measurement] = ts
		}
	}
}

// Errors is the total of parse, validation and write errors.
func (s RunStats) Errors() int {
	return s.ParseErrors + s.ValidationErrors + s.WriteErrors
}

// FileImport records one imported export file.
type FileImport struct {
	Hash       string    `json:"hash"`
	ImportTime time.Time `json:"import_time"`
	Stats      RunStats  `json:"stats"`
}

// History is the persistent import record.
type History struct {
	LastImport     *time.Time            `json:"last_import"`
	ImportedFiles  map[string]FileImport `json:"imported_files"`
	LastTimestamps map[string]time.Time  `json:"last_timestamps"`
}

// NewHistory returns an empty history.
func NewHistory() History {
	return History{
		ImportedFiles:  make(map[string]FileImport),
		LastTimestamps: make(map[string]time.Time),
	}
}

// Position counts processed elements per kind.
type Position struct {
	Records    int64 `json:"records"`
	Workouts   int64 `json:"workouts"`
	Activities int64 `json:"activities"`
}

// Total is the number of processed elements.
func (p Position) Total() int64 {
	return p.Records + p.Workouts + p.Activities
}

// Of returns the count for one element kind.
func (p Position) Of(kind health.ElementKind) int64 {
	switch kind {
	case health.ElementWorkout:
		return p.Workouts
	case health.ElementActivitySummary:
		return p.Activities
	default:
		return p.Records
	}
}

// Advance increments the count for kind.
func (p *Position) Advance(kind health.ElementKind) {
	switch kind {
	case health.ElementWorkout:
		p.Workouts++
	case health.ElementActivitySummary:
		p.Activities++
	default:
		p.Records++
	}
}

// Checkpoint is the persisted progress of an interrupted run.
type Checkpoint struct {
	FileHash           string     `json:"file_hash"`
	Position           Position   `json:"processed_counts"`
	Stats              RunStats   `json:"stats"`
	LastCheckpointTime *time.Time `json:"last_checkpoint_time"`
}

// HistoryStore persists the import history document.
type HistoryStore interface {
	LoadHistory(ctx context.Context) (History, error)
	SaveHistory(ctx context.Context, history History) error
}

// CheckpointStore persists the checkpoint document.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context) (Checkpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error
	ClearCheckpoint(ctx context.Context) error
}
