package health

// ElementKind identifies the export element an entry was read from.
type ElementKind int

const (
	ElementRecord ElementKind = iota
	ElementWorkout
	ElementActivitySummary
)

func (k ElementKind) String() string {
	switch k {
	case ElementRecord:
		return "Record"
	case ElementWorkout:
		return "Workout"
	case ElementActivitySummary:
		return "ActivitySummary"
	default:
		return "unknown"
	}
}

// Statistic is a nested per-workout total.
type Statistic struct {
	Type string
	Sum  string
	Unit string
}

// Element is one raw record, workout, or activity summary from an export.
type Element struct {
	Kind       ElementKind
	Attrs      map[string]string
	Metadata   map[string]string
	Statistics []Statistic
}

// Attr returns an attribute value or "".
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Type returns the record type used for category resolution.
func (e Element) Type() string {
	switch e.Kind {
	case ElementWorkout:
		return WorkoutType
	case ElementActivitySummary:
		return ActivitySummaryType
	default:
		return e.Attr("type")
	}
}
