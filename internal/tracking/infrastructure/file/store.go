package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"health-importer/internal/tracking/domain"
)

const (
	DefaultHistoryPath    = ".import_history.json"
	DefaultCheckpointPath = "import_progress.json"
)

// Store keeps the history and checkpoint as JSON documents on disk. Each
// save rewrites the whole document through a temp file and rename.
type Store struct {
	historyPath    string
	checkpointPath string
}

// Option configures the store.
type Option func(*Store)

// WithHistoryPath overrides the history document path.
func WithHistoryPath(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.historyPath = path
		}
	}
}

// WithCheckpointPath overrides the checkpoint document path.
func WithCheckpointPath(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.checkpointPath = path
		}
	}
}

// NewStore constructs a file store.
func NewStore(opts ...Option) *Store {
	s := &Store{historyPath: DefaultHistoryPath, checkpointPath: DefaultCheckpointPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadHistory reads the history document.
func (s *Store) LoadHistory(_ context.Context) (tracking.History, error) {
	var h tracking.History
	if err := readJSON(s.historyPath, &h); err != nil {
		return tracking.NewHistory(), err
	}
	return h, nil
}

// SaveHistory rewrites the history document.
func (s *Store) SaveHistory(_ context.Context, h tracking.History) error {
	return writeJSON(s.historyPath, h)
}

// LoadCheckpoint reads the checkpoint document.
func (s *Store) LoadCheckpoint(_ context.Context) (tracking.Checkpoint, error) {
	var cp tracking.Checkpoint
	if err := readJSON(s.checkpointPath, &cp); err != nil {
		return tracking.Checkpoint{}, err
	}
	return cp, nil
}

// SaveCheckpoint rewrites the checkpoint document.
func (s *Store) SaveCheckpoint(_ context.Context, cp tracking.Checkpoint) error {
	return writeJSON(s.checkpointPath, cp)
}

// ClearCheckpoint deletes the checkpoint document.
func (s *Store) ClearCheckpoint(_ context.Context) error {
	if err := os.Remove(s.checkpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return tracking.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("tracking file %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
