package application

import (
	"errors"
	"fmt"

	"health-importer/internal/health/domain"
)

// ErrUnknownCategory is returned when a point's type resolves to no category.
var ErrUnknownCategory = errors.New("ingest: no category for type")

const presenceField = "value"

// fieldNames renames the generic value field per record type.
var fieldNames = map[string]string{
	"HKQuantityTypeIdentifierHeartRate":                "heart_rate",
	"HKQuantityTypeIdentifierRestingHeartRate":         "resting_heart_rate",
	"HKQuantityTypeIdentifierHeartRateVariabilitySDNN": "hrv_sdnn",
	"HKQuantityTypeIdentifierBodyMass":                 "weight",
	"HKQuantityTypeIdentifierHeight":                   "height",
	"HKQuantityTypeIdentifierActiveEnergyBurned":       "active_energy",
	"HKQuantityTypeIdentifierBasalEnergyBurned":        "basal_energy",
	"HKQuantityTypeIdentifierStepCount":                "steps",
	"HKQuantityTypeIdentifierDistanceWalkingRunning":   "distance",
	"HKQuantityTypeIdentifierFlightsClimbed":           "flights",
	"HKQuantityTypeIdentifierOxygenSaturation":         "oxygen_saturation",
	"HKQuantityTypeIdentifierRespiratoryRate":          "respiratory_rate",
	"HKQuantityTypeIdentifierVO2Max":                   "vo2_max",
	"HKQuantityTypeIdentifierWalkingSpeed":             "walking_speed",
	"HKQuantityTypeIdentifierRunningSpeed":             "running_speed",
	"HKQuantityTypeIdentifierAppleExerciseTime":        "exercise_time",
	"HKQuantityTypeIdentifierAppleStandTime":           "stand_time",
}

// Prepare converts p into storage shape using its category configuration.
func (w *Writer) Prepare(p health.Point) (StoredPoint, error) {
	category, ok := w.registry.Resolve(p.Type)
	if !ok {
		return StoredPoint{}, fmt.Errorf("%w %q", ErrUnknownCategory, p.Type)
	}
	cfg, _ := w.registry.ConfigFor(category)

	tags := make(map[string]string, len(cfg.Tags)+1)
	for _, key := range cfg.Tags {
		if value := p.Tags[key]; value != "" {
			tags[key] = value
		}
	}
	tags["type"] = p.Type

	fields := make(map[string]any, len(p.Fields))
	for key, value := range p.Fields {
		if value == nil {
			continue
		}
		if key == "value" {
			if renamed, ok := fieldNames[p.Type]; ok {
				key = renamed
			}
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		fields[presenceField] = 1.0
	}

	return StoredPoint{
		Measurement: cfg.MeasurementName,
		Time:        p.Time,
		Tags:        tags,
		Fields:      fields,
	}, nil
}
