package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"health-importer/internal/health/domain"
	"health-importer/internal/tracking/domain"
)

// Tracker decides which points are new and remembers imported files.
type Tracker struct {
	store   tracking.HistoryStore
	logger  logrus.FieldLogger
	now     func() time.Time
	history tracking.History
}

// FileSummary describes one imported file.
type FileSummary struct {
	Path       string
	Hash       string
	ImportTime time.Time
	Stats      tracking.RunStats
}

// Summary is a read-only view of the history.
type Summary struct {
	LastImport     *time.Time
	Files          []FileSummary
	LastTimestamps map[string]time.Time
}

// NewTracker loads history from store. A missing or unreadable document
// starts an empty history.
func NewTracker(ctx context.Context, store tracking.HistoryStore, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("tracker: nil store")
	}
	o := buildOptions(opts)
	t := &Tracker{store: store, logger: o.logger, now: o.now}

	history, err := store.LoadHistory(ctx)
	switch {
	case err == nil:
	case errors.Is(err, tracking.ErrNotFound):
		history = tracking.NewHistory()
	default:
		t.logger.WithError(err).Warn("import history unreadable, starting fresh")
		history = tracking.NewHistory()
	}
	if history.ImportedFiles == nil {
		history.ImportedFiles = make(map[string]tracking.FileImport)
	}
	if history.LastTimestamps == nil {
		history.LastTimestamps = make(map[string]time.Time)
	}
	t.history = history
	return t, nil
}

// IsFileAlreadyImported reports whether path was imported with its current fingerprint.
func (t *Tracker) IsFileAlreadyImported(path string) (bool, error) {
	hash, err := Fingerprint(path)
	if err != nil {
		return false, err
	}
	rec, ok := t.history.ImportedFiles[path]
	return ok && rec.Hash == hash, nil
}

// LastImportTime returns the newest imported timestamp for measurement.
func (t *Tracker) LastImportTime(measurement string) (time.Time, bool) {
	ts, ok := t.history.LastTimestamps[measurement]
	return ts, ok
}

// ShouldImport reports whether ts is newer than the last import of measurement.
func (t *Tracker) ShouldImport(ts time.Time, measurement string) bool {
	last, ok := t.history.LastTimestamps[measurement]
	if !ok {
		return true
	}
	return ts.After(last)
}

// FilterPoints keeps points newer than their measurement's last import and
// returns the skipped count per measurement.
func (t *Tracker) FilterPoints(points []health.Point) ([]health.Point, map[string]int) {
	kept := make([]health.Point, 0, len(points))
	skipped := make(map[string]int)
	for _, p := range points {
		if t.ShouldImport(p.Time, p.Measurement) {
			kept = append(kept, p)
			continue
		}
		skipped[p.Measurement]++
	}
	return kept, skipped
}

// UpdateLastTimestamps advances per-measurement high-water marks and persists.
func (t *Tracker) UpdateLastTimestamps(ctx context.Context, latest map[string]time.Time) error {
	if len(latest) == 0 {
		return nil
	}
	for measurement, ts := range latest {
		if prev, ok := t.history.LastTimestamps[measurement]; !ok || ts.After(prev) {
			t.history.LastTimestamps[measurement] = ts
		}
	}
	return t.store.SaveHistory(ctx, t.history)
}

// RecordFileImport stores the fingerprint and stats of an imported file.
func (t *Tracker) RecordFileImport(ctx context.Context, path string, stats tracking.RunStats) error {
	hash, err := Fingerprint(path)
	if err != nil {
		return err
	}
	now := t.now()
	t.history.ImportedFiles[path] = tracking.FileImport{
		Hash:       hash,
		ImportTime: now,
		Stats:      stats.Clone(),
	}
	t.history.LastImport = &now
	if err := t.store.SaveHistory(ctx, t.history); err != nil {
		return err
	}
	t.logger.WithFields(logrus.Fields{"path": path, "written": stats.Written}).Info("file import recorded")
	return nil
}

// Summary returns the history view with files ordered by import time.
func (t *Tracker) Summary() Summary {
	s := Summary{
		LastImport:     t.history.LastImport,
		LastTimestamps: make(map[string]time.Time, len(t.history.LastTimestamps)),
	}
	for m, ts := range t.history.LastTimestamps {
		s.LastTimestamps[m] = ts
	}
	for path, rec := range t.history.ImportedFiles {
		s.Files = append(s.Files, FileSummary{Path: path, Hash: rec.Hash, ImportTime: rec.ImportTime, Stats: rec.Stats})
	}
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].ImportTime.Before(s.Files[j].ImportTime) })
	return s
}

// Reset forgets all history.
func (t *Tracker) Reset(ctx context.Context) error {
	t.history = tracking.NewHistory()
	if err := t.store.SaveHistory(ctx, t.history); err != nil {
		return err
	}
	t.logger.Info("import history reset")
	return nil
}
