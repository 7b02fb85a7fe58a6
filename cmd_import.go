package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ingestapp "health-importer/internal/ingest/application"
	"health-importer/internal/ingest/infrastructure/influx"
	"health-importer/internal/ingest/infrastructure/memory"
	"health-importer/internal/observability/metrics"
	parsingapp "health-importer/internal/parsing/application"
	"health-importer/internal/report"
	streamingapp "health-importer/internal/streaming/application"
	"health-importer/internal/streaming/infrastructure/xmlexport"
	trackingapp "health-importer/internal/tracking/application"
	validationapp "health-importer/internal/validation/application"
)

// exports above this size are imported in streaming mode unless asked otherwise.
const streamingThreshold = 100 << 20

type importFlags struct {
	incremental bool
	force       bool
	preview     bool
	streaming   bool
	standard    bool
	resume      bool
	dryRun      bool
	count       bool
	workers     int
	report      string
	metricsAddr string
}

func newImportCmd(root *rootFlags) *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "import <export.xml>",
		Short: "Import an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, flags, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.incremental, "incremental", false, "skip points not newer than the last import per measurement")
	f.BoolVar(&flags.force, "force", false, "re-import even if the file was already imported")
	f.BoolVar(&flags.preview, "preview", false, "parse a small sample without writing anything")
	f.BoolVar(&flags.streaming, "streaming", false, "force streaming mode with checkpoints")
	f.BoolVar(&flags.standard, "standard", false, "force single-batch mode")
	f.BoolVar(&flags.resume, "resume", false, "resume from a checkpoint (implies --streaming)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "run the full pipeline against an in-memory store")
	f.BoolVar(&flags.count, "count", true, "count elements first for progress reporting")
	f.IntVar(&flags.workers, "workers", 0, "parse with this many workers")
	f.StringVar(&flags.report, "report", "", "write a run report (.pdf or .xlsx)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.MarkFlagsMutuallyExclusive("streaming", "standard")
	cmd.MarkFlagsMutuallyExclusive("resume", "standard")
	cmd.MarkFlagsMutuallyExclusive("resume", "force")
	return cmd
}

func selectMode(path string, flags *importFlags) (streamingapp.Mode, error) {
	switch {
	case flags.streaming || flags.resume:
		return streamingapp.ModeStreaming, nil
	case flags.standard:
		return streamingapp.ModeStandard, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return streamingapp.ModeStandard, fmt.Errorf("stat export: %w", err)
	}
	if info.Size() > streamingThreshold {
		return streamingapp.ModeStreaming, nil
	}
	return streamingapp.ModeStandard, nil
}

func runImport(ctx context.Context, stdout, stderr io.Writer, root *rootFlags, flags *importFlags, path string) error {
	cfg, err := root.settings()
	if err != nil {
		return err
	}
	if flags.metricsAddr != "" {
		cfg.MetricsAddr = flags.metricsAddr
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	log := logger.WithField("component", "import")

	mode, err := selectMode(path, flags)
	if err != nil {
		return err
	}

	metrics.Init(nil)
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, log)
		defer shutdown()
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	var store ingestapp.PointStore
	if flags.dryRun {
		store = memory.NewStore()
		dir, err := os.MkdirTemp("", "health-import-dry-run-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		cfg.StateDSN = ""
		cfg.HistoryPath = filepath.Join(dir, "history.json")
		cfg.CheckpointPath = filepath.Join(dir, "progress.json")
	} else {
		influxStore, err := influx.NewStore(influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return err
		}
		defer influxStore.Close()
		if !flags.preview {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			err := influxStore.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
		store = influxStore
	}

	state, closeState, err := openState(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeState()

	tracker, progress, err := openTracking(ctx, state, logger)
	if err != nil {
		return err
	}
	if mode == streamingapp.ModeStreaming && flags.resume {
		if hash, err := trackingapp.Fingerprint(path); err == nil && !progress.CanResume(hash) {
			log.Info("no checkpoint for this file, starting from the beginning")
		}
	}

	parser, err := parsingapp.NewParser(registry, parsingapp.WithLogger(logger))
	if err != nil {
		return err
	}
	writer, err := ingestapp.NewWriter(store, registry,
		ingestapp.WithLogger(logger),
		ingestapp.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return err
	}
	processor, err := streamingapp.NewProcessor(
		xmlexport.NewReader(),
		registry,
		parser,
		validationapp.NewValidator(registry),
		writer,
		tracker,
		progress,
		processorOptions(cfg, logger, flags.workers)...,
	)
	if err != nil {
		return err
	}

	summary, runErr := processor.Run(ctx, path, streamingapp.RunOptions{
		Mode:        mode,
		Incremental: flags.incremental,
		Preview:     flags.preview,
		Force:       flags.force,
		Count:       flags.count && mode == streamingapp.ModeStreaming,
	})
	printSummary(stdout, summary)

	if flags.report != "" && runErr == nil {
		if err := report.Write(flags.report, summary, time.Now().UTC()); err != nil {
			log.WithError(err).Error("write report")
			return err
		}
		log.WithField("path", flags.report).Info("report written")
	}
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		log.Warn("import interrupted, run again with --resume to continue")
	}
	return runErr
}

func processorOptions(cfg config, logger logrus.FieldLogger, workers int) []streamingapp.Option {
	return []streamingapp.Option{
		streamingapp.WithLogger(logger),
		streamingapp.WithWorkers(workers),
		streamingapp.WithBatchSize(cfg.ProcessBatch),
		streamingapp.WithCheckpointInterval(cfg.CheckpointEvery),
	}
}

func serveMetrics(addr string, log logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("metrics listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func printSummary(w io.Writer, s streamingapp.Summary) {
	if s.AlreadyImported {
		fmt.Fprintf(w, "%s was already imported (use --force to re-import)\n", s.Path)
		return
	}
	if len(s.Preview) > 0 {
		fmt.Fprintf(w, "preview of %d points:\n", len(s.Preview))
		for _, p := range s.Preview {
			fmt.Fprintf(w, "  %s %-20s %-45s %v\n", p.Time.Format(time.RFC3339), p.Measurement, p.Type, p.Fields)
		}
	}
	fmt.Fprintf(w, "mode:         %s\n", s.Mode)
	if s.Resumed {
		fmt.Fprintln(w, "resumed:      yes")
	}
	fmt.Fprintf(w, "processed:    %d records, %d workouts, %d activity summaries\n",
		s.Processed.Records, s.Processed.Workouts, s.Processed.Activities)
	fmt.Fprintf(w, "written:      %d\n", s.Stats.Written)
	fmt.Fprintf(w, "duplicates:   %d\n", s.Stats.Duplicates)
	fmt.Fprintf(w, "skipped:      %d\n", s.Stats.Skipped)
	fmt.Fprintf(w, "errors:       %d parse, %d validation, %d write\n",
		s.Stats.ParseErrors, s.Stats.ValidationErrors, s.Stats.WriteErrors)
	fmt.Fprintf(w, "rejected:     %d\n", s.Stats.Rejected)
	fmt.Fprintf(w, "unknown:      %d\n", s.Stats.UnknownTypes)
	fmt.Fprintf(w, "warnings:     %d\n", s.Stats.ValidationWarnings)

	names := make([]string, 0, len(s.Stats.Categories))
	for name := range s.Stats.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %d\n", name, s.Stats.Categories[name])
	}
	fmt.Fprintf(w, "duration:     %s\n", s.Duration.Round(time.Millisecond))
}
