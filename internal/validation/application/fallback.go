package application

import (
	"sort"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
)

func bound(v float64) *float64 { return &v }

// Fallback ranges used when no category configuration is injected.
var fallbackRules = map[string]catalog.FieldRule{
	"heart_rate":       {Min: bound(30), Max: bound(250), TypicalMin: bound(40), TypicalMax: bound(200)},
	"active_calories":  {Min: bound(0), Max: bound(8000), TypicalMin: bound(0), TypicalMax: bound(4000)},
	"workout_duration": {Min: bound(60), Max: bound(43200), TypicalMin: bound(300), TypicalMax: bound(7200)},
	"workout_distance": {Min: bound(0), Max: bound(200000), TypicalMin: bound(100), TypicalMax: bound(50000)},
	"sleep_duration":   {Min: bound(30), Max: bound(1440), TypicalMin: bound(240), TypicalMax: bound(720)},
}

// fallbackFields maps a record type's point fields to fallback rule names.
var fallbackFields = map[string]map[string]string{
	heartRateType: {"value": "heart_rate"},
	health.WorkoutType: {
		"duration": "workout_duration",
		"distance": "workout_distance",
		"energy":   "active_calories",
	},
	health.ActivitySummaryType: {"energy": "active_calories"},
	sleepType:                  {"duration": "sleep_duration"},
}

func validateFallback(p health.Point) Result {
	var res Result
	mapping, ok := fallbackFields[p.Type]
	if !ok {
		return res
	}
	fields := make([]string, 0, len(mapping))
	for field := range mapping {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		value, ok := p.NumericField(field)
		if !ok {
			continue
		}
		rule := mapping[field]
		checkRule(&res, rule, value, fallbackRules[rule], p.Type)
	}
	checkContext(&res, p)
	return res
}
