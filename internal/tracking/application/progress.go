package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"health-importer/internal/observability/metrics"
	"health-importer/internal/tracking/domain"
)

// Progress persists streaming checkpoints.
type Progress struct {
	store   tracking.CheckpointStore
	logger  logrus.FieldLogger
	now     func() time.Time
	current tracking.Checkpoint
}

// NewProgress loads the stored checkpoint. A missing or unreadable document
// means there is nothing to resume.
func NewProgress(ctx context.Context, store tracking.CheckpointStore, opts ...Option) (*Progress, error) {
	if store == nil {
		return nil, errors.New("progress: nil store")
	}
	o := buildOptions(opts)
	p := &Progress{store: store, logger: o.logger, now: o.now}

	cp, err := store.LoadCheckpoint(ctx)
	switch {
	case err == nil:
		p.current = cp
	case errors.Is(err, tracking.ErrNotFound):
	default:
		p.logger.WithError(err).Warn("checkpoint unreadable, ignoring")
	}
	return p, nil
}

// CanResume reports whether the checkpoint belongs to hash and has progress.
func (p *Progress) CanResume(hash string) bool {
	return hash != "" && p.current.FileHash == hash && p.current.Position.Total() > 0
}

// ResumePosition returns the stored position.
func (p *Progress) ResumePosition() tracking.Position {
	return p.current.Position
}

// ResumeStats returns a copy of the stored stats.
func (p *Progress) ResumeStats() tracking.RunStats {
	return p.current.Stats.Clone()
}

// Save persists the position and stats reached for hash.
func (p *Progress) Save(ctx context.Context, hash string, pos tracking.Position, stats tracking.RunStats) error {
	now := p.now()
	cp := tracking.Checkpoint{
		FileHash:           hash,
		Position:           pos,
		Stats:              stats.Clone(),
		LastCheckpointTime: &now,
	}
	if err := p.store.SaveCheckpoint(ctx, cp); err != nil {
		metrics.IncCheckpointSave(metrics.ResultError)
		return fmt.Errorf("progress: save checkpoint: %w", err)
	}
	metrics.IncCheckpointSave(metrics.ResultSuccess)
	p.current = cp
	p.logger.WithFields(logrus.Fields{
		"records":    pos.Records,
		"workouts":   pos.Workouts,
		"activities": pos.Activities,
	}).Debug("checkpoint saved")
	return nil
}

// Clear removes the checkpoint.
func (p *Progress) Clear(ctx context.Context) error {
	if err := p.store.ClearCheckpoint(ctx); err != nil {
		return fmt.Errorf("progress: clear checkpoint: %w", err)
	}
	p.current = tracking.Checkpoint{}
	return nil
}
