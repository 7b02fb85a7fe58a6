package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"health-importer/internal/health/domain"
)

// Registry maps raw record types to categories. It is immutable once built.
type Registry struct {
	doc      Document
	names    []string
	entries  map[string]Entry
	location *time.Location
}

// NewRegistry builds a registry and its type table from a document.
// Zero-valued global settings fall back to the built-in defaults.
func NewRegistry(doc Document) (*Registry, error) {
	if len(doc.Measurements) == 0 {
		return nil, errors.New("catalog: no categories")
	}
	doc.Global = withDefaults(doc.Global)

	loc, err := time.LoadLocation(doc.Global.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("catalog: timezone %q: %w", doc.Global.DefaultTimezone, err)
	}

	names := make([]string, 0, len(doc.Measurements))
	for name := range doc.Measurements {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make(map[string]Entry)
	for _, name := range names {
		cat := doc.Measurements[name]
		override, hasOverride := health.ParseKind(cat.Kind)
		for _, recordType := range cat.Types {
			if _, taken := entries[recordType]; taken {
				continue
			}
			kind := health.KindForType(recordType)
			if hasOverride {
				kind = override
			}
			entries[recordType] = Entry{Category: name, Kind: kind}
		}
	}

	return &Registry{doc: doc, names: names, entries: entries, location: loc}, nil
}

// Default returns a registry over the built-in categories.
func Default() *Registry {
	reg, err := NewRegistry(DefaultDocument())
	if err != nil {
		panic(err)
	}
	return reg
}

// Resolve returns the category that lists recordType.
func (r *Registry) Resolve(recordType string) (string, bool) {
	entry, ok := r.entries[recordType]
	return entry.Category, ok
}

// Classify returns the category and record kind for recordType.
func (r *Registry) Classify(recordType string) (Entry, bool) {
	entry, ok := r.entries[recordType]
	return entry, ok
}

// ConfigFor returns a category's configuration.
func (r *Registry) ConfigFor(category string) (Category, bool) {
	cat, ok := r.doc.Measurements[category]
	return cat, ok
}

// IsValidationEnabled reports whether rules apply to a category. Unset means enabled.
func (r *Registry) IsValidationEnabled(category string) bool {
	cat, ok := r.doc.Measurements[category]
	if !ok {
		return false
	}
	if cat.Validation.Enabled == nil {
		return true
	}
	return *cat.Validation.Enabled
}

// ValidationRules returns the per-field rules of a category.
func (r *Registry) ValidationRules(category string) map[string]FieldRule {
	return r.doc.Measurements[category].Validation.Rules
}

// Categories returns category names in sorted order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// MeasurementNames returns the configured measurement of every category.
func (r *Registry) MeasurementNames() []string {
	out := make([]string, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.doc.Measurements[name].MeasurementName)
	}
	return out
}

// Document returns a copy of the underlying configuration.
func (r *Registry) Document() Document {
	return r.doc
}

// BatchSize is the number of points per storage write.
func (r *Registry) BatchSize() int { return r.doc.Global.BatchSize }

// DuplicateCheckWindow is the span added on both sides of a batch when looking up existing points.
func (r *Registry) DuplicateCheckWindow() time.Duration {
	return time.Duration(r.doc.Global.DuplicateCheckWindowHours) * time.Hour
}

// MaxRetries is the number of attempts for one storage call.
func (r *Registry) MaxRetries() int { return r.doc.Global.Performance.MaxRetries }

// RetryDelayBase is the exponential backoff multiplier.
func (r *Registry) RetryDelayBase() float64 { return r.doc.Global.Performance.RetryDelayBase }

// Location is the target timezone for point timestamps.
func (r *Registry) Location() *time.Location { return r.location }

// StrictValidation reports whether the parser applies type plausibility bounds.
func (r *Registry) StrictValidation() bool { return r.doc.Global.Validation.StrictMode }

// LogWarnings reports whether validation warnings are logged. Defaults to true.
func (r *Registry) LogWarnings() bool {
	if r.doc.Global.Validation.LogWarnings == nil {
		return true
	}
	return *r.doc.Global.Validation.LogWarnings
}

// Validate reports configuration problems. Nothing is corrected.
func (r *Registry) Validate() error {
	var errs []error
	owners := make(map[string]string)
	for _, name := range r.names {
		cat := r.doc.Measurements[name]
		if err := cat.Validate(name); err != nil {
			errs = append(errs, err)
		}
		for _, recordType := range cat.Types {
			if prev, ok := owners[recordType]; ok {
				errs = append(errs, fmt.Errorf("catalog: type %q claimed by %q and %q", recordType, prev, name))
				continue
			}
			owners[recordType] = name
			if entry := r.entries[recordType]; entry.Kind == health.KindUnknown {
				errs = append(errs, fmt.Errorf("catalog: category %q: cannot infer kind of %q", name, recordType))
			}
		}
	}
	if r.doc.Global.BatchSize <= 0 {
		errs = append(errs, errors.New("catalog: batch size must be positive"))
	}
	if r.doc.Global.DuplicateCheckWindowHours < 0 {
		errs = append(errs, errors.New("catalog: negative duplicate check window"))
	}
	return errors.Join(errs...)
}

func withDefaults(s Settings) Settings {
	def := DefaultSettings()
	if s.BatchSize == 0 {
		s.BatchSize = def.BatchSize
	}
	if s.DuplicateCheckWindowHours == 0 {
		s.DuplicateCheckWindowHours = def.DuplicateCheckWindowHours
	}
	if s.DefaultTimezone == "" {
		s.DefaultTimezone = def.DefaultTimezone
	}
	if s.Performance.MaxRetries == 0 {
		s.Performance.MaxRetries = def.Performance.MaxRetries
	}
	if s.Performance.RetryDelayBase == 0 {
		s.Performance.RetryDelayBase = def.Performance.RetryDelayBase
	}
	return s
}
