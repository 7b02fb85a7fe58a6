package application

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
)

func heartRate(value float64, context string) health.Point {
	tags := map[string]string{}
	if context != "" {
		tags["motion_context"] = context
	}
	return health.Point{
		Type:   heartRateType,
		Kind:   health.KindQuantity,
		Time:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Fields: map[string]any{"value": value},
		Tags:   tags,
	}
}

func workout(activity string, distance, duration float64) health.Point {
	return health.Point{
		Type:   health.WorkoutType,
		Kind:   health.KindWorkout,
		Time:   time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC),
		Fields: map[string]any{"distance": distance, "duration": duration},
		Tags:   map[string]string{"activity_type": activity},
	}
}

func TestValidationBoundary(t *testing.T) {
	v := NewValidator(catalog.Default())

	atMin := v.Validate(heartRate(30, ""))
	assert.True(t, atMin.Valid)
	assert.Empty(t, atMin.Errors)
	assert.Len(t, atMin.Warnings, 1)

	belowMin := v.Validate(heartRate(29, ""))
	assert.False(t, belowMin.Valid)
	assert.Len(t, belowMin.Errors, 1)
	assert.Empty(t, belowMin.Warnings)

	midTypical := v.Validate(heartRate(120, ""))
	assert.True(t, midTypical.Valid)
	assert.Empty(t, midTypical.Warnings)

	aboveTypical := v.Validate(heartRate(201, ""))
	assert.True(t, aboveTypical.Valid)
	assert.Empty(t, aboveTypical.Errors)
	assert.Len(t, aboveTypical.Warnings, 1)

	assert.Nil(t, aboveTypical.CorrectedValue)
	assert.Equal(t, Summary{TotalValidated: 4, Errors: 1, Warnings: 2}, v.Summary())
}

func TestValidateScenarioOneValidOneError(t *testing.T) {
	v := NewValidator(catalog.Default())

	ok := v.Validate(heartRate(72, ""))
	bad := v.Validate(heartRate(500, ""))

	assert.True(t, ok.Valid)
	assert.False(t, bad.Valid)
	assert.Contains(t, bad.Errors[0], "outside valid range (30-250)")
	assert.Equal(t, 2, v.Summary().TotalValidated)
	assert.Equal(t, 1, v.Summary().Errors)
}

func TestHeartRateMotionContext(t *testing.T) {
	v := NewValidator(catalog.Default())

	res := v.Validate(heartRate(130, "sedentary"))
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)

	res = v.Validate(heartRate(70, "active"))
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)

	res = v.Validate(heartRate(70, "sedentary"))
	assert.Empty(t, res.Warnings)
}

func TestWorkoutSpeedChecks(t *testing.T) {
	v := NewValidator(catalog.Default())

	res := v.Validate(workout("Running", 10000, 3600))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)

	res = v.Validate(workout("Running", 10000, 1000))
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "running speed 36.0")

	res = v.Validate(workout("Walking", 5000, 1200))
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)

	res = v.Validate(workout("Cycling", 40000, 1200))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "not humanly possible")
}

func TestSleepDaytimeWarning(t *testing.T) {
	v := NewValidator(catalog.Default())
	p := health.Point{
		Type:   sleepType,
		Kind:   health.KindCategory,
		Time:   time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		Fields: map[string]any{"duration": 60.0},
	}

	res := v.Validate(p)
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)

	p.Time = time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	res = v.Validate(p)
	assert.Empty(t, res.Warnings)
}

func TestDisabledOrUnknownCategoryIsValid(t *testing.T) {
	disabled := false
	reg, err := catalog.NewRegistry(catalog.Document{Measurements: map[string]catalog.Category{
		"vitals": {
			Types:           []string{heartRateType},
			MeasurementName: "hr",
			Validation: catalog.Validation{
				Enabled: &disabled,
				Rules:   map[string]catalog.FieldRule{"value": {Max: bound(100)}},
			},
		},
	}})
	require.NoError(t, err)
	v := NewValidator(reg)

	assert.True(t, v.Validate(heartRate(500, "")).Valid)

	unknown := health.Point{Type: "HKQuantityTypeIdentifierBloodGlucose", Fields: map[string]any{"value": -1.0}}
	res := v.Validate(unknown)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestFallbackRulesWithoutRegistry(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(heartRate(72, "")).Valid)
	assert.False(t, v.Validate(heartRate(260, "")).Valid)

	res := v.Validate(workout("Running", 5000, 30))
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestSummaryResetAndConcurrency(t *testing.T) {
	v := NewValidator(catalog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Validate(heartRate(72, ""))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, v.Summary().TotalValidated)

	v.Reset()
	assert.Equal(t, Summary{}, v.Summary())
}
