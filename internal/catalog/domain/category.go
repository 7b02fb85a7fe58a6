package catalog

import (
	"errors"
	"fmt"
	"regexp"

	"health-importer/internal/health/domain"
)

// Duration units an interval category may store.
const (
	DurationSeconds = "seconds"
	DurationMinutes = "minutes"
)

var measurementNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FieldRule bounds one numeric field. Nil bounds are not checked.
type FieldRule struct {
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	TypicalMin *float64 `yaml:"typical_min,omitempty"`
	TypicalMax *float64 `yaml:"typical_max,omitempty"`
}

// Validation is the per-category rule block.
type Validation struct {
	Enabled *bool                `yaml:"enabled,omitempty"`
	Rules   map[string]FieldRule `yaml:"rules,omitempty"`
}

// Category groups raw record types sharing a measurement and rules.
type Category struct {
	Description     string            `yaml:"description,omitempty"`
	Types           []string          `yaml:"types"`
	Kind            string            `yaml:"kind,omitempty"`
	MeasurementName string            `yaml:"measurement_name"`
	Fields          map[string]string `yaml:"fields,omitempty"`
	Tags            []string          `yaml:"tags,omitempty"`
	DurationUnit    string            `yaml:"duration_unit,omitempty"`
	Validation      Validation        `yaml:"validation,omitempty"`
}

// Validate checks category invariants.
func (c Category) Validate(name string) error {
	var errs []error
	if c.MeasurementName == "" {
		errs = append(errs, fmt.Errorf("catalog: category %q: empty measurement name", name))
	} else if !measurementNamePattern.MatchString(c.MeasurementName) {
		errs = append(errs, fmt.Errorf("catalog: category %q: invalid measurement name %q", name, c.MeasurementName))
	}
	if len(c.Types) == 0 {
		errs = append(errs, fmt.Errorf("catalog: category %q: empty type list", name))
	}
	if c.Kind != "" {
		if _, ok := health.ParseKind(c.Kind); !ok {
			errs = append(errs, fmt.Errorf("catalog: category %q: unknown kind %q", name, c.Kind))
		}
	}
	switch c.DurationUnit {
	case "", DurationSeconds, DurationMinutes:
	default:
		errs = append(errs, fmt.Errorf("catalog: category %q: unknown duration unit %q", name, c.DurationUnit))
	}
	for field, rule := range c.Validation.Rules {
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			errs = append(errs, fmt.Errorf("catalog: category %q: rule %q min above max", name, field))
		}
		if rule.TypicalMin != nil && rule.TypicalMax != nil && *rule.TypicalMin > *rule.TypicalMax {
			errs = append(errs, fmt.Errorf("catalog: category %q: rule %q typical_min above typical_max", name, field))
		}
	}
	return errors.Join(errs...)
}

// ValidationSettings controls how findings are treated.
type ValidationSettings struct {
	StrictMode  bool  `yaml:"strict_mode"`
	LogWarnings *bool `yaml:"log_warnings,omitempty"`
}

// PerformanceSettings controls write retries.
type PerformanceSettings struct {
	MaxRetries     int     `yaml:"max_retries"`
	RetryDelayBase float64 `yaml:"retry_delay_base"`
}

// Settings holds the global tunables.
type Settings struct {
	BatchSize                 int                 `yaml:"batch_size"`
	DuplicateCheckWindowHours int                 `yaml:"duplicate_check_window_hours"`
	DefaultTimezone           string              `yaml:"default_timezone"`
	Validation                ValidationSettings  `yaml:"validation"`
	Performance               PerformanceSettings `yaml:"performance"`
}

// Document is the declarative category configuration.
type Document struct {
	Measurements map[string]Category `yaml:"measurements"`
	Global       Settings            `yaml:"global"`
}

// Entry is the resolved classification of a record type.
type Entry struct {
	Category string
	Kind     health.Kind
}

func float(v float64) *float64 { return &v }

func boolean(v bool) *bool { return &v }
