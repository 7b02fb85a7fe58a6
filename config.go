package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	trackingfile "health-importer/internal/tracking/infrastructure/file"
)

const defaultMeasurementsPath = "config/measurements.yaml"

type config struct {
	InfluxURL        string        `yaml:"influxdb_url"`
	InfluxToken      string        `yaml:"influxdb_token"`
	InfluxOrg        string        `yaml:"influxdb_org"`
	InfluxBucket     string        `yaml:"influxdb_bucket"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	Timezone         string        `yaml:"timezone"`
	BatchSize        int           `yaml:"batch_size"`
	ProcessBatch     int           `yaml:"process_batch_size"`
	CheckpointEvery  int64         `yaml:"checkpoint_interval"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	StateDSN         string        `yaml:"state_dsn"`
	HistoryPath      string        `yaml:"history_file"`
	CheckpointPath   string        `yaml:"checkpoint_file"`
	MeasurementsPath string        `yaml:"measurements_config"`
	MetricsAddr      string        `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		InfluxURL:        "http://localhost:8086",
		InfluxOrg:        "health",
		InfluxBucket:     "health",
		RequestTimeout:   30 * time.Second,
		ProcessBatch:     5000,
		CheckpointEvery:  10000,
		LogLevel:         "info",
		LogFormat:        "text",
		HistoryPath:      trackingfile.DefaultHistoryPath,
		CheckpointPath:   trackingfile.DefaultCheckpointPath,
		MeasurementsPath: defaultMeasurementsPath,
	}
}

// loadConfig reads the optional settings file at path and applies
// environment overrides on top.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.InfluxURL = getenvDefault("INFLUXDB_URL", cfg.InfluxURL)
	cfg.InfluxToken = getenvDefault("INFLUXDB_TOKEN", cfg.InfluxToken)
	cfg.InfluxOrg = getenvDefault("INFLUXDB_ORG", cfg.InfluxOrg)
	cfg.InfluxBucket = getenvDefault("INFLUXDB_BUCKET", cfg.InfluxBucket)
	cfg.RequestTimeout = getenvDuration("INFLUXDB_TIMEOUT", cfg.RequestTimeout)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)
	cfg.BatchSize = getenvIntDefault("BATCH_SIZE", cfg.BatchSize)
	cfg.ProcessBatch = getenvIntDefault("PROCESS_BATCH_SIZE", cfg.ProcessBatch)
	cfg.CheckpointEvery = int64(getenvIntDefault("CHECKPOINT_INTERVAL", int(cfg.CheckpointEvery)))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenvDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.StateDSN = getenvDefault("STATE_DSN", getenvDefault("DATABASE_URL", cfg.StateDSN))
	cfg.HistoryPath = getenvDefault("HISTORY_FILE", cfg.HistoryPath)
	cfg.CheckpointPath = getenvDefault("CHECKPOINT_FILE", cfg.CheckpointPath)
	cfg.MeasurementsPath = getenvDefault("MEASUREMENTS_CONFIG", cfg.MeasurementsPath)
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", cfg.MetricsAddr)

	if cfg.BatchSize < 0 {
		return cfg, fmt.Errorf("config: batch size must not be negative, got %d", cfg.BatchSize)
	}
	if cfg.ProcessBatch <= 0 {
		return cfg, fmt.Errorf("config: process batch size must be positive, got %d", cfg.ProcessBatch)
	}
	if cfg.CheckpointEvery <= 0 {
		return cfg, fmt.Errorf("config: checkpoint interval must be positive, got %d", cfg.CheckpointEvery)
	}
	return cfg, nil
}

func newLogger(cfg config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.SetLevel(level)
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("config: unknown log format %q", cfg.LogFormat)
	}
	return logger, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
