package application

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
)

const (
	heartRateType = "HKQuantityTypeIdentifierHeartRate"
	sleepType     = "HKCategoryTypeIdentifierSleepAnalysis"

	maxHumanSpeedKmh   = 100.0
	maxRunningSpeedKmh = 30.0
	maxWalkingSpeedKmh = 12.0

	sedentaryHeartRateCeiling = 120.0
	activeHeartRateFloor      = 80.0

	daytimeStartHour = 6
	daytimeEndHour   = 18
)

// Result is the verdict for one point. CorrectedValue is reserved and never set.
type Result struct {
	Valid          bool
	Errors         []string
	Warnings       []string
	CorrectedValue *float64
}

// Summary counts verdicts since the last reset.
type Summary struct {
	TotalValidated int `json:"total_validated"`
	Errors         int `json:"errors"`
	Warnings       int `json:"warnings"`
	Corrected      int `json:"corrected"`
}

// Validator flags out-of-range and anomalous points. It never mutates them.
type Validator struct {
	registry *catalog.Registry

	mu    sync.Mutex
	stats Summary
}

// NewValidator returns a rule-driven validator. A nil registry selects the
// built-in per-type fallback rules.
func NewValidator(registry *catalog.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks p and updates the running summary.
func (v *Validator) Validate(p health.Point) Result {
	var res Result
	if v.registry != nil {
		res = v.validateConfigured(p)
	} else {
		res = validateFallback(p)
	}
	res.Valid = len(res.Errors) == 0

	v.mu.Lock()
	v.stats.TotalValidated++
	if len(res.Errors) > 0 {
		v.stats.Errors++
	}
	if len(res.Warnings) > 0 {
		v.stats.Warnings++
	}
	if res.CorrectedValue != nil {
		v.stats.Corrected++
	}
	v.mu.Unlock()
	return res
}

// Summary returns a copy of the running counters.
func (v *Validator) Summary() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Reset clears the running counters.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.stats = Summary{}
	v.mu.Unlock()
}

func (v *Validator) validateConfigured(p health.Point) Result {
	var res Result
	category, ok := v.registry.Resolve(p.Type)
	if !ok || !v.registry.IsValidationEnabled(category) {
		return res
	}
	rules := v.registry.ValidationRules(category)
	if len(rules) == 0 {
		return res
	}

	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		value, ok := p.NumericField(field)
		if !ok {
			continue
		}
		checkRule(&res, field, value, rules[field], p.Type)
	}
	checkContext(&res, p)
	return res
}

func checkRule(res *Result, field string, value float64, rule catalog.FieldRule, recordType string) {
	label := strings.ReplaceAll(field, "_", " ")
	if (rule.Min != nil && value < *rule.Min) || (rule.Max != nil && value > *rule.Max) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s %g is outside valid range (%s) for %s",
			label, value, formatRange(rule.Min, rule.Max), recordType))
		return
	}
	if (rule.TypicalMin != nil && value < *rule.TypicalMin) || (rule.TypicalMax != nil && value > *rule.TypicalMax) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s %g is outside typical range (%s) for %s",
			label, value, formatRange(rule.TypicalMin, rule.TypicalMax), recordType))
	}
}

func formatRange(lo, hi *float64) string {
	low, high := "-inf", "+inf"
	if lo != nil {
		low = fmt.Sprintf("%g", *lo)
	}
	if hi != nil {
		high = fmt.Sprintf("%g", *hi)
	}
	return low + "-" + high
}

// checkContext applies the cross-field checks for heart rate, workouts and sleep.
func checkContext(res *Result, p health.Point) {
	switch {
	case p.Type == heartRateType:
		value, ok := p.NumericField("value")
		if !ok {
			return
		}
		switch p.Tags["motion_context"] {
		case "sedentary":
			if value > sedentaryHeartRateCeiling {
				res.Warnings = append(res.Warnings, fmt.Sprintf("heart rate %g bpm is high for a sedentary context", value))
			}
		case "active":
			if value < activeHeartRateFloor {
				res.Warnings = append(res.Warnings, fmt.Sprintf("heart rate %g bpm is low for an active context", value))
			}
		}
	case p.Type == health.WorkoutType:
		distance, okDistance := p.NumericField("distance")
		duration, okDuration := p.NumericField("duration")
		if !okDistance || !okDuration || duration <= 0 {
			return
		}
		speed := distance / duration * 3.6
		activity := p.Tags["activity_type"]
		switch {
		case speed > maxHumanSpeedKmh:
			res.Errors = append(res.Errors, fmt.Sprintf("workout speed %.1f km/h is not humanly possible", speed))
		case strings.Contains(activity, "Running") && speed > maxRunningSpeedKmh:
			res.Warnings = append(res.Warnings, fmt.Sprintf("running speed %.1f km/h is unusually high", speed))
		case strings.Contains(activity, "Walking") && speed > maxWalkingSpeedKmh:
			res.Warnings = append(res.Warnings, fmt.Sprintf("walking speed %.1f km/h is unusually high", speed))
		}
	case p.Type == sleepType:
		if hour := p.Time.Hour(); hour >= daytimeStartHour && hour <= daytimeEndHour {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sleep starting at %02d:%02d is during daytime", hour, p.Time.Minute()))
		}
	}
}
