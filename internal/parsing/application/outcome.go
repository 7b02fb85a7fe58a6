package application

import "health-importer/internal/health/domain"

// Status is the result class of a parse.
type Status int

const (
	// NotApplicable means the element is not of the shape the entry describes.
	NotApplicable Status = iota
	// Rejected means the element has the right shape but unusable content.
	Rejected
	// Parsed means Point holds a normalized sample.
	Parsed
)

func (s Status) String() string {
	switch s {
	case Rejected:
		return "rejected"
	case Parsed:
		return "parsed"
	default:
		return "not_applicable"
	}
}

// Outcome is the three-way result of parsing one element.
type Outcome struct {
	Status Status
	Reason string
	Point  health.Point
}

func notApplicable(reason string) Outcome {
	return Outcome{Status: NotApplicable, Reason: reason}
}

func rejected(reason string) Outcome {
	return Outcome{Status: Rejected, Reason: reason}
}

func parsed(point health.Point) Outcome {
	return Outcome{Status: Parsed, Point: point}
}
