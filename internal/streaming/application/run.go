package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	catalog "health-importer/internal/catalog/domain"
	health "health-importer/internal/health/domain"
	ingestapp "health-importer/internal/ingest/application"
	"health-importer/internal/observability/metrics"
	parsingapp "health-importer/internal/parsing/application"
	tracking "health-importer/internal/tracking/domain"
)

const (
	outcomeAccepted    = "accepted"
	outcomeUnknownType = "unknown_type"
	outcomeParseError  = "parse_error"
	outcomeRejected    = "rejected"
	outcomeInvalid     = "invalid"
)

// snapshot is the position and stats as of the last successful flush.
type snapshot struct {
	position tracking.Position
	stats    tracking.RunStats
}

type runState struct {
	ctx  context.Context
	p    *Processor
	opts RunOptions
	hash string
	log  logrus.FieldLogger

	position  tracking.Position
	stats     tracking.RunStats
	committed snapshot
	totals    int64

	pending        []health.Element
	batch          []health.Point
	preview        []health.Point
	lastCheckpoint int64
	lastProgress   int64
}

func (r *runState) commit() {
	r.committed = snapshot{position: r.position, stats: r.stats.Clone()}
}

func (r *runState) streaming() bool {
	return r.opts.Mode == ModeStreaming && !r.opts.Preview
}

func (r *runState) chunkSize() int {
	if r.p.workers > 1 {
		return r.p.workers * 64
	}
	return 1
}

// handle receives one element from the source.
func (r *runState) handle(el health.Element) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.pending = append(r.pending, el)
	if len(r.pending) < r.chunkSize() {
		return nil
	}
	return r.processPending()
}

func (r *runState) processPending() error {
	if len(r.pending) == 0 {
		return nil
	}
	jobs := make([]parseJob, len(r.pending))
	for i, el := range r.pending {
		metrics.IncElement(el.Kind.String())
		entry, ok := r.p.registry.Classify(el.Type())
		jobs[i] = parseJob{el: el, entry: entry, known: ok}
	}
	results := r.p.parseAll(r.ctx, jobs)
	r.pending = r.pending[:0]

	for i, job := range jobs {
		r.position.Advance(job.el.Kind)
		if err := r.account(job, results[i]); err != nil {
			return err
		}
		if err := r.afterElement(); err != nil {
			return err
		}
	}
	return nil
}

func (r *runState) account(job parseJob, res parseResult) error {
	if !job.known {
		r.stats.UnknownTypes++
		metrics.IncOutcome(outcomeUnknownType)
		return nil
	}
	if res.err != nil {
		r.stats.ParseErrors++
		metrics.IncOutcome(outcomeParseError)
		r.log.WithError(res.err).WithField("type", job.el.Type()).Debug("parse failed")
		return nil
	}
	if res.outcome.Status != parsingapp.Parsed {
		r.stats.Rejected++
		metrics.IncOutcome(outcomeRejected)
		return nil
	}

	point := res.outcome.Point
	verdict := r.p.validator.Validate(point)
	if len(verdict.Warnings) > 0 {
		r.stats.ValidationWarnings++
		if r.p.registry.LogWarnings() {
			r.log.WithFields(logrus.Fields{
				"type":     point.Type,
				"time":     point.Time,
				"warnings": verdict.Warnings,
			}).Warn("validation warning")
		}
	}
	if !verdict.Valid {
		r.stats.ValidationErrors++
		metrics.IncOutcome(outcomeInvalid)
		r.log.WithFields(logrus.Fields{
			"type":   point.Type,
			"time":   point.Time,
			"errors": verdict.Errors,
		}).Debug("point failed validation")
		return nil
	}

	if r.stats.Categories == nil {
		r.stats.Categories = make(map[string]int)
	}
	r.stats.Categories[point.Category]++
	metrics.IncOutcome(outcomeAccepted)

	if r.opts.Preview {
		r.preview = append(r.preview, point)
		if len(r.preview) >= r.p.previewLimit {
			return errPreviewDone
		}
		return nil
	}
	r.batch = append(r.batch, point)
	return nil
}

func (r *runState) afterElement() error {
	total := r.position.Total()
	if total-r.lastProgress >= r.p.progressEvery {
		r.lastProgress = total
		fields := logrus.Fields{"processed": total, "accepted": r.acceptedCount()}
		if r.totals > 0 {
			fields["percent"] = float64(total) * 100 / float64(r.totals)
		}
		r.log.WithFields(fields).Info("import progress")
	}
	if !r.streaming() {
		return nil
	}
	if len(r.batch) >= r.p.batchSize {
		if err := r.flush(r.ctx); err != nil {
			return err
		}
	}
	if total-r.lastCheckpoint >= r.p.checkpointInterval {
		if err := r.flush(r.ctx); err != nil {
			return err
		}
		if err := r.p.progress.Save(r.ctx, r.hash, r.committed.position, r.committed.stats); err != nil {
			return err
		}
		r.lastCheckpoint = total
	}
	return nil
}

func (r *runState) acceptedCount() int {
	n := 0
	for _, c := range r.stats.Categories {
		n += c
	}
	return n
}

// flush hands the batch to the writer. Write failures are counted; only
// cancellation is returned, in which case nothing is committed and the batch
// is replayed on resume.
func (r *runState) flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.batch) == 0 {
		r.commit()
		return nil
	}
	points := r.batch
	r.batch = make([]health.Point, 0, len(points))

	if r.opts.Incremental {
		kept, skipped := r.p.tracker.FilterPoints(points)
		n := 0
		for _, c := range skipped {
			n += c
		}
		r.stats.Skipped += n
		metrics.AddPoints(metrics.PointsSkipped, n)
		points = kept
	}

	var res ingestapp.Stats
	if len(points) > 0 {
		if r.opts.Mode == ModeStandard {
			res = r.p.writer.WriteBatch(ctx, points)
		} else {
			res = r.p.writer.WriteStreaming(ctx, points)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.stats.Written += res.Written
	r.stats.Duplicates += res.Duplicates
	r.stats.WriteErrors += res.Errors
	r.stats.ObserveLatest(res.Latest)
	r.commit()
	return nil
}

// drain processes buffered elements and writes what is left once the source is exhausted.
func (r *runState) drain(ctx context.Context) error {
	if err := r.processPending(); err != nil {
		return err
	}
	if r.opts.Preview {
		return nil
	}
	return r.flush(ctx)
}

func (r *runState) finish(ctx context.Context, path string) {
	if len(r.stats.Latest) > 0 {
		if err := r.p.tracker.UpdateLastTimestamps(ctx, r.stats.Latest); err != nil {
			r.log.WithError(err).Error("update last timestamps")
		}
	}
	if err := r.p.tracker.RecordFileImport(ctx, path, r.stats); err != nil {
		r.log.WithError(err).Error("record file import")
	}
	if r.opts.Mode == ModeStreaming {
		if err := r.p.progress.Clear(ctx); err != nil && !errors.Is(err, tracking.ErrNotFound) {
			r.log.WithError(err).Warn("clear checkpoint")
		}
	}
}

func (r *runState) fill(s *Summary) {
	s.Stats = r.stats.Clone()
	s.Validation = r.p.validator.Summary()
	s.Processed = r.position
	s.Preview = r.preview
}

// parseJob is one classified element awaiting parsing.
type parseJob struct {
	el    health.Element
	entry catalog.Entry
	known bool
}
