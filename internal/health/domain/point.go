package health

import (
	"strings"
	"time"
)

// Kind is the closed set of record shapes the importer understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindQuantity
	KindCategory
	KindWorkout
	KindDailySummary
)

const (
	quantityPrefix = "HKQuantityTypeIdentifier"
	categoryPrefix = "HKCategoryTypeIdentifier"
	dataTypePrefix = "HKDataType"

	// WorkoutType is the synthetic type assigned to Workout elements.
	WorkoutType = "HKWorkoutTypeIdentifier"
	// ActivitySummaryType is the synthetic type assigned to ActivitySummary elements.
	ActivitySummaryType = "HKActivitySummary"
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindQuantity:
		return "quantity"
	case KindCategory:
		return "category"
	case KindWorkout:
		return "workout"
	case KindDailySummary:
		return "daily_summary"
	default:
		return "unknown"
	}
}

// ParseKind maps a configured kind name to a Kind.
func ParseKind(value string) (Kind, bool) {
	switch value {
	case "quantity":
		return KindQuantity, true
	case "category":
		return KindCategory, true
	case "workout":
		return KindWorkout, true
	case "daily_summary":
		return KindDailySummary, true
	default:
		return KindUnknown, false
	}
}

// KindForType infers the record shape from the identifier naming convention.
func KindForType(recordType string) Kind {
	switch {
	case recordType == WorkoutType:
		return KindWorkout
	case recordType == ActivitySummaryType:
		return KindDailySummary
	case strings.HasPrefix(recordType, categoryPrefix):
		return KindCategory
	case strings.HasPrefix(recordType, quantityPrefix), strings.HasPrefix(recordType, dataTypePrefix):
		return KindQuantity
	default:
		return KindUnknown
	}
}

// Point is a normalized time-series sample ready for storage.
type Point struct {
	Type        string
	Kind        Kind
	Category    string
	Measurement string
	Time        time.Time
	Fields      map[string]any
	Tags        map[string]string
}

// NumericField returns a field as float64 when it is numeric.
func (p Point) NumericField(name string) (float64, bool) {
	raw, ok := p.Fields[name]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
