package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	catalog "health-importer/internal/catalog/domain"
	catalogfile "health-importer/internal/catalog/infrastructure/file"
	trackingapp "health-importer/internal/tracking/application"
	tracking "health-importer/internal/tracking/domain"
	trackingfile "health-importer/internal/tracking/infrastructure/file"
	trackingrepo "health-importer/internal/tracking/infrastructure/postgres"
)

type stateStore interface {
	tracking.HistoryStore
	tracking.CheckpointStore
}

// buildRegistry loads the category file and applies timezone and batch size overrides.
func buildRegistry(cfg config, logger logrus.FieldLogger) (*catalog.Registry, error) {
	registry := catalogfile.Load(cfg.MeasurementsPath, logger)
	if cfg.Timezone == "" && cfg.BatchSize == 0 {
		return registry, nil
	}
	doc := registry.Document()
	if cfg.Timezone != "" {
		doc.Global.DefaultTimezone = cfg.Timezone
	}
	if cfg.BatchSize > 0 {
		doc.Global.BatchSize = cfg.BatchSize
	}
	return catalog.NewRegistry(doc)
}

// openState returns the Postgres state store when a DSN is configured, the
// JSON file store otherwise. The returned close func is never nil.
func openState(ctx context.Context, cfg config) (stateStore, func(), error) {
	if cfg.StateDSN == "" {
		store := trackingfile.NewStore(
			trackingfile.WithHistoryPath(cfg.HistoryPath),
			trackingfile.WithCheckpointPath(cfg.CheckpointPath),
		)
		return store, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.StateDSN)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open state db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, func() {}, fmt.Errorf("ping state db: %w", err)
	}
	store, err := trackingrepo.NewStateStore(db)
	if err != nil {
		db.Close()
		return nil, func() {}, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	return store, func() { _ = db.Close() }, nil
}

func openTracking(ctx context.Context, state stateStore, logger logrus.FieldLogger) (*trackingapp.Tracker, *trackingapp.Progress, error) {
	tracker, err := trackingapp.NewTracker(ctx, state, trackingapp.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	progress, err := trackingapp.NewProgress(ctx, state, trackingapp.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return tracker, progress, nil
}
