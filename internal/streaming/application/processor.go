package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	catalog "health-importer/internal/catalog/domain"
	health "health-importer/internal/health/domain"
	ingestapp "health-importer/internal/ingest/application"
	"health-importer/internal/observability/metrics"
	parsingapp "health-importer/internal/parsing/application"
	trackingapp "health-importer/internal/tracking/application"
	tracking "health-importer/internal/tracking/domain"
	validationapp "health-importer/internal/validation/application"
)

const (
	defaultBatchSize          = 5000
	defaultCheckpointInterval = 10000
	defaultPreviewLimit       = 100
	defaultProgressEvery      = 50000
	defaultParseTimeout       = 5 * time.Second
)

// Rough element totals reported when the counting pass fails.
var estimatedTotals = tracking.Position{Records: 1000000, Workouts: 10000, Activities: 1000}

var errPreviewDone = errors.New("streaming: preview sample complete")

// Mode selects how points reach storage.
type Mode int

const (
	// ModeStreaming flushes bounded batches and checkpoints progress.
	ModeStreaming Mode = iota
	// ModeStandard collects every point and writes once with the full duplicate window.
	ModeStandard
)

func (m Mode) String() string {
	if m == ModeStandard {
		return "standard"
	}
	return "streaming"
}

// ElementSource reads export elements from a file.
type ElementSource interface {
	Count(ctx context.Context, path string) (tracking.Position, error)
	Stream(ctx context.Context, path string, from tracking.Position, fn func(health.Element) error) error
}

// RecordParser turns an element into a point.
type RecordParser interface {
	Parse(el health.Element, entry catalog.Entry) (parsingapp.Outcome, error)
}

// PointValidator checks parsed points.
type PointValidator interface {
	Validate(p health.Point) validationapp.Result
	Summary() validationapp.Summary
	Reset()
}

// PointWriter commits points to storage.
type PointWriter interface {
	WriteBatch(ctx context.Context, points []health.Point) ingestapp.Stats
	WriteStreaming(ctx context.Context, points []health.Point) ingestapp.Stats
}

// RunOptions selects the behavior of one run.
type RunOptions struct {
	Mode        Mode
	Incremental bool
	Preview     bool
	Force       bool
	Count       bool
}

// Summary reports the outcome of a run.
type Summary struct {
	Path            string
	FileHash        string
	Mode            Mode
	Stats           tracking.RunStats
	Validation      validationapp.Summary
	Totals          tracking.Position
	TotalsEstimated bool
	Processed       tracking.Position
	Resumed         bool
	AlreadyImported bool
	Preview         []health.Point
	Duration        time.Duration
}

// Processor drives classify, parse, validate, batch, write and checkpoint
// over one export file.
type Processor struct {
	source    ElementSource
	registry  *catalog.Registry
	parser    RecordParser
	validator PointValidator
	writer    PointWriter
	tracker   *trackingapp.Tracker
	progress  *trackingapp.Progress
	logger    logrus.FieldLogger

	batchSize          int
	checkpointInterval int64
	previewLimit       int
	progressEvery      int64
	workers            int
	parseTimeout       time.Duration
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBatchSize sets how many points are buffered before a flush.
func WithBatchSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithCheckpointInterval sets how many elements pass between checkpoints.
func WithCheckpointInterval(interval int64) Option {
	return func(p *Processor) {
		if interval > 0 {
			p.checkpointInterval = interval
		}
	}
}

// WithPreviewLimit sets the preview sample size.
func WithPreviewLimit(limit int) Option {
	return func(p *Processor) {
		if limit > 0 {
			p.previewLimit = limit
		}
	}
}

// WithProgressEvery sets how often progress is logged, in elements.
func WithProgressEvery(every int64) Option {
	return func(p *Processor) {
		if every > 0 {
			p.progressEvery = every
		}
	}
}

// WithWorkers enables concurrent parsing with n workers when n > 1.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithParseTimeout bounds the parse time of one element in concurrent mode.
func WithParseTimeout(timeout time.Duration) Option {
	return func(p *Processor) {
		if timeout > 0 {
			p.parseTimeout = timeout
		}
	}
}

// NewProcessor constructs a processor.
func NewProcessor(
	source ElementSource,
	registry *catalog.Registry,
	parser RecordParser,
	validator PointValidator,
	writer PointWriter,
	tracker *trackingapp.Tracker,
	progress *trackingapp.Progress,
	opts ...Option,
) (*Processor, error) {
	switch {
	case source == nil:
		return nil, errors.New("streaming: nil source")
	case registry == nil:
		return nil, errors.New("streaming: nil registry")
	case parser == nil:
		return nil, errors.New("streaming: nil parser")
	case validator == nil:
		return nil, errors.New("streaming: nil validator")
	case writer == nil:
		return nil, errors.New("streaming: nil writer")
	case tracker == nil:
		return nil, errors.New("streaming: nil tracker")
	case progress == nil:
		return nil, errors.New("streaming: nil progress")
	}
	p := &Processor{
		source:             source,
		registry:           registry,
		parser:             parser,
		validator:          validator,
		writer:             writer,
		tracker:            tracker,
		progress:           progress,
		logger:             logrus.StandardLogger(),
		batchSize:          defaultBatchSize,
		checkpointInterval: defaultCheckpointInterval,
		previewLimit:       defaultPreviewLimit,
		progressEvery:      defaultProgressEvery,
		parseTimeout:       defaultParseTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run imports path. It returns a summary unless a fatal input or checkpoint
// error occurs; on cancellation the last committed position is checkpointed
// before the context error is returned.
func (p *Processor) Run(ctx context.Context, path string, opts RunOptions) (Summary, error) {
	started := time.Now()
	summary, err := p.run(ctx, path, opts)
	summary.Duration = time.Since(started)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveRun(result, summary.Duration)
	return summary, err
}

func (p *Processor) run(ctx context.Context, path string, opts RunOptions) (Summary, error) {
	summary := Summary{Path: path, Mode: opts.Mode}

	hash, err := trackingapp.Fingerprint(path)
	if err != nil {
		return summary, err
	}
	summary.FileHash = hash
	log := p.logger.WithFields(logrus.Fields{"path": path, "mode": opts.Mode.String()})

	p.validator.Reset()
	r := &runState{
		ctx:   ctx,
		p:     p,
		opts:  opts,
		hash:  hash,
		log:   log,
		stats: tracking.RunStats{Categories: make(map[string]int)},
	}

	switch {
	case opts.Preview || opts.Force:
	case opts.Mode == ModeStreaming && p.progress.CanResume(hash):
		r.position = p.progress.ResumePosition()
		r.stats = p.progress.ResumeStats()
		if r.stats.Categories == nil {
			r.stats.Categories = make(map[string]int)
		}
		summary.Resumed = true
		log.WithField("processed", r.position.Total()).Info("resuming from checkpoint")
	default:
		imported, err := p.tracker.IsFileAlreadyImported(path)
		if err != nil {
			return summary, err
		}
		if imported {
			log.Info("file already imported, use force to re-import")
			summary.AlreadyImported = true
			return summary, nil
		}
	}
	r.commit()
	from := r.position
	r.lastCheckpoint = from.Total()
	r.lastProgress = from.Total()

	if opts.Count {
		totals, err := p.source.Count(ctx, path)
		if err != nil {
			log.WithError(err).Warn("element count failed, using estimate")
			totals = estimatedTotals
			summary.TotalsEstimated = true
		}
		summary.Totals = totals
		r.totals = totals.Total()
	}

	err = p.source.Stream(ctx, path, from, r.handle)
	if err == nil {
		err = r.drain(ctx)
	}

	switch {
	case err == nil || errors.Is(err, errPreviewDone):
		if !opts.Preview {
			r.finish(ctx, path)
		}
	default:
		if !opts.Preview && opts.Mode == ModeStreaming {
			saveCtx := context.WithoutCancel(ctx)
			if saveErr := p.progress.Save(saveCtx, hash, r.committed.position, r.committed.stats); saveErr != nil {
				err = errors.Join(err, saveErr)
			} else {
				log.WithField("processed", r.committed.position.Total()).Warn("run interrupted, checkpoint saved")
			}
		}
		r.fill(&summary)
		return summary, fmt.Errorf("streaming: %w", err)
	}

	r.fill(&summary)
	log.WithFields(logrus.Fields{
		"written":    summary.Stats.Written,
		"duplicates": summary.Stats.Duplicates,
		"errors":     summary.Stats.Errors(),
	}).Info("import finished")
	return summary, nil
}
