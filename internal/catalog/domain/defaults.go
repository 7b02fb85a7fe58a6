package catalog

import "health-importer/internal/health/domain"

const (
	defaultBatchSize      = 1000
	defaultWindowHours    = 24
	defaultTimezone       = "UTC"
	defaultMaxRetries     = 3
	defaultRetryDelayBase = 2.0
)

// DefaultDocument returns the built-in vitals/activity/sleep categories.
func DefaultDocument() Document {
	return Document{
		Measurements: map[string]Category{
			"vitals": {
				Description:     "Heart rate samples",
				Types:           []string{"HKQuantityTypeIdentifierHeartRate"},
				MeasurementName: "heartrate_bpm",
				Fields:          map[string]string{"value": "heart_rate"},
				Tags:            []string{"device", "source", "motion_context"},
				Validation: Validation{
					Enabled: boolean(true),
					Rules: map[string]FieldRule{
						"value": {Min: float(30), Max: float(250), TypicalMin: float(40), TypicalMax: float(200)},
					},
				},
			},
			"activity": {
				Description: "Steps, energy, workouts and daily activity summaries",
				Types: []string{
					"HKQuantityTypeIdentifierStepCount",
					"HKQuantityTypeIdentifierActiveEnergyBurned",
					"HKQuantityTypeIdentifierBasalEnergyBurned",
					health.WorkoutType,
					health.ActivitySummaryType,
				},
				MeasurementName: "energy_kcal",
				Fields: map[string]string{
					"value":    "value",
					"duration": "duration",
					"distance": "distance",
					"energy":   "energy",
				},
				Tags: []string{"activity_type", "energy_type", "summary_type", "device", "source"},
				Validation: Validation{
					Enabled: boolean(true),
					Rules: map[string]FieldRule{
						"duration":    {Min: float(60), Max: float(43200), TypicalMin: float(300), TypicalMax: float(7200)},
						"distance":    {Min: float(0), Max: float(200000), TypicalMin: float(100), TypicalMax: float(50000)},
						"energy":      {Min: float(0), Max: float(8000), TypicalMin: float(0), TypicalMax: float(4000)},
						"energy_goal": {Min: float(0), Max: float(8000)},
					},
				},
			},
			"sleep": {
				Description:     "Sleep analysis intervals",
				Types:           []string{"HKCategoryTypeIdentifierSleepAnalysis"},
				MeasurementName: "sleep_duration_min",
				Fields:          map[string]string{"duration": "duration"},
				Tags:            []string{"state", "quality", "device", "source"},
				DurationUnit:    DurationMinutes,
				Validation: Validation{
					Enabled: boolean(true),
					Rules: map[string]FieldRule{
						"duration": {Min: float(0), Max: float(1440), TypicalMin: float(1), TypicalMax: float(720)},
					},
				},
			},
		},
		Global: DefaultSettings(),
	}
}

// DefaultSettings returns the global tunables used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:                 defaultBatchSize,
		DuplicateCheckWindowHours: defaultWindowHours,
		DefaultTimezone:           defaultTimezone,
		Validation:                ValidationSettings{StrictMode: false, LogWarnings: boolean(true)},
		Performance:               PerformanceSettings{MaxRetries: defaultMaxRetries, RetryDelayBase: defaultRetryDelayBase},
	}
}
