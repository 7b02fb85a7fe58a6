package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "health_import_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	elementsTotal  *prometheus.CounterVec
	outcomesTotal  *prometheus.CounterVec
	pointsTotal    *prometheus.CounterVec
	batchLatency   *prometheus.HistogramVec
	lookupFailures prometheus.Counter

	checkpointSaves *prometheus.CounterVec

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	reportExportTotal *prometheus.CounterVec
)

// Init registers import metrics with reg, or the default registerer when nil.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		elementsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "elements_total",
				Help: "Export elements read by element kind",
			},
			[]string{"kind"},
		)
		outcomesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "element_outcomes_total",
				Help: "Element processing outcomes",
			},
			[]string{"outcome"},
		)
		pointsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "points_total",
				Help: "Points handed to storage by result",
			},
			[]string{"result"},
		)
		batchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_write_seconds",
				Help:    "Batch write latency including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		lookupFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_lookup_failures_total",
				Help: "Duplicate lookups that failed open",
			},
		)
		checkpointSaves = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "checkpoint_saves_total",
				Help: "Checkpoint saves by result",
			},
			[]string{"result"},
		)
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Import runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_seconds",
				Help:    "Import run duration",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"result"},
		)
		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Run report exports by format and result",
			},
			[]string{"format", "result"},
		)

		reg.MustRegister(
			elementsTotal,
			outcomesTotal,
			pointsTotal,
			batchLatency,
			lookupFailures,
			checkpointSaves,
			runTotal,
			runLatency,
			reportExportTotal,
		)
	})
}

// IncElement counts one element read from the export.
func IncElement(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if elementsTotal != nil {
		elementsTotal.WithLabelValues(kind).Inc()
	}
}

// IncOutcome counts one element outcome.
func IncOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if outcomesTotal != nil {
		outcomesTotal.WithLabelValues(outcome).Inc()
	}
}

// AddPoints adds count points with the given storage result.
func AddPoints(result string, count int) {
	if count <= 0 {
		return
	}
	if pointsTotal != nil {
		pointsTotal.WithLabelValues(result).Add(float64(count))
	}
}

// ObserveBatchWrite records one batch write.
func ObserveBatchWrite(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if batchLatency != nil {
		batchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDuplicateQueryError counts a failed duplicate lookup.
func IncDuplicateQueryError() {
	if lookupFailures != nil {
		lookupFailures.Inc()
	}
}

// IncCheckpointSave counts a checkpoint save.
func IncCheckpointSave(result string) {
	if result == "" {
		result = resultSuccess
	}
	if checkpointSaves != nil {
		checkpointSaves.WithLabelValues(result).Inc()
	}
}

// ObserveRun records an import run.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReportExport counts a report export.
func IncReportExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	PointsWritten   = "written"
	PointsDuplicate = "duplicate"
	PointsError     = "error"
	PointsSkipped   = "skipped"
)
