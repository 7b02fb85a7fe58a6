package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"health-importer/internal/catalog/domain"
)

// ErrNoCategories is returned for documents without a measurements block.
var ErrNoCategories = errors.New("catalog file: no measurements defined")

// Read parses a category document from path.
func Read(path string) (catalog.Document, error) {
	var doc catalog.Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("catalog file: decode %s: %w", path, err)
	}
	if len(doc.Measurements) == 0 {
		return doc, ErrNoCategories
	}
	return doc, nil
}

// Load builds a registry from path. A missing or malformed file degrades to
// the built-in categories and is logged, never returned.
func Load(path string, logger logrus.FieldLogger) *catalog.Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("path", path)

	doc, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("category config not found, using built-in defaults")
		} else {
			log.WithError(err).Warn("category config unreadable, using built-in defaults")
		}
		return catalog.Default()
	}

	reg, err := catalog.NewRegistry(doc)
	if err != nil {
		log.WithError(err).Warn("category config rejected, using built-in defaults")
		return catalog.Default()
	}
	log.WithField("categories", len(doc.Measurements)).Info("category config loaded")
	return reg
}

// Save writes doc as YAML, creating parent directories.
func Save(path string, doc catalog.Document) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("catalog file: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
