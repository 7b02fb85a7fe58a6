package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"health-importer/internal/tracking/domain"
)

const (
	defaultStateTable = "import_state"

	historyKey    = "history"
	checkpointKey = "checkpoint"
)

// StateStore keeps the history and checkpoint documents in one Postgres table.
type StateStore struct {
	db    *sql.DB
	table string
}

// StateOption configures the state store.
type StateOption func(*StateStore)

// WithStateTable overrides the table name.
func WithStateTable(table string) StateOption {
	return func(s *StateStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewStateStore constructs a state store.
func NewStateStore(db *sql.DB, opts ...StateOption) (*StateStore, error) {
	if db == nil {
		return nil, errors.New("state store: nil db")
	}
	s := &StateStore{db: db, table: defaultStateTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureSchema creates the state table when missing.
func (s *StateStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	document JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// LoadHistory reads the history document.
func (s *StateStore) LoadHistory(ctx context.Context) (tracking.History, error) {
	var h tracking.History
	if err := s.load(ctx, historyKey, &h); err != nil {
		return tracking.NewHistory(), err
	}
	return h, nil
}

// SaveHistory upserts the history document.
func (s *StateStore) SaveHistory(ctx context.Context, h tracking.History) error {
	return s.save(ctx, historyKey, h)
}

// LoadCheckpoint reads the checkpoint document.
func (s *StateStore) LoadCheckpoint(ctx context.Context) (tracking.Checkpoint, error) {
	var cp tracking.Checkpoint
	if err := s.load(ctx, checkpointKey, &cp); err != nil {
		return tracking.Checkpoint{}, err
	}
	return cp, nil
}

// SaveCheckpoint upserts the checkpoint document.
func (s *StateStore) SaveCheckpoint(ctx context.Context, cp tracking.Checkpoint) error {
	return s.save(ctx, checkpointKey, cp)
}

// ClearCheckpoint deletes the checkpoint document.
func (s *StateStore) ClearCheckpoint(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, s.table)
	_, err := s.db.ExecContext(ctx, query, checkpointKey)
	return err
}

func (s *StateStore) load(ctx context.Context, name string, v any) error {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE name = $1`, s.table)
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return tracking.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("state store: decode %s: %w", name, err)
	}
	return nil
}

func (s *StateStore) save(ctx context.Context, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, document, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name)
DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`, s.table)
	_, err = s.db.ExecContext(ctx, query, name, payload)
	return err
}
