package application

import (
	"strconv"
	"strings"

	"health-importer/internal/health/domain"
)

const (
	metersPerKilometer = 1000.0
	metersPerMile      = 1609.344
	kilojoulesPerKcal  = 4.184
)

var distanceStatistics = map[string]bool{
	"HKQuantityTypeIdentifierDistanceWalkingRunning": true,
	"HKQuantityTypeIdentifierDistanceCycling":        true,
	"HKQuantityTypeIdentifierDistanceSwimming":       true,
	"HKQuantityTypeIdentifierDistanceWheelchair":     true,
}

func (p *Parser) parseWorkout(el health.Element) (Outcome, error) {
	activity := el.Attr("workoutActivityType")
	rawStart := el.Attr("startDate")
	if activity == "" || rawStart == "" {
		return rejected("missing activity type or start date"), nil
	}
	start, err := parseTimestamp(rawStart, p.location)
	if err != nil {
		return Outcome{}, err
	}

	fields := make(map[string]any, 3)

	if raw := el.Attr("duration"); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rejected("non-numeric duration"), nil
		}
		if el.Attr("durationUnit") == "min" {
			duration *= 60
		}
		fields["duration"] = duration
	}

	distance, distanceUnit := el.Attr("totalDistance"), el.Attr("totalDistanceUnit")
	energy, energyUnit := el.Attr("totalEnergyBurned"), el.Attr("totalEnergyBurnedUnit")
	for _, stat := range el.Statistics {
		switch {
		case distance == "" && distanceStatistics[stat.Type]:
			distance, distanceUnit = stat.Sum, stat.Unit
		case energy == "" && stat.Type == "HKQuantityTypeIdentifierActiveEnergyBurned":
			energy, energyUnit = stat.Sum, stat.Unit
		}
	}

	if distance != "" {
		value, err := strconv.ParseFloat(distance, 64)
		if err != nil {
			return rejected("non-numeric distance"), nil
		}
		fields["distance"] = toMeters(value, distanceUnit)
	}
	if energy != "" {
		value, err := strconv.ParseFloat(energy, 64)
		if err != nil {
			return rejected("non-numeric energy"), nil
		}
		if energyUnit == "kJ" {
			value /= kilojoulesPerKcal
		}
		fields["energy"] = value
	}

	for name, raw := range fields {
		if raw.(float64) < 0 {
			return rejected("negative workout " + name), nil
		}
	}

	tags := sourceTags(el)
	tags["activity_type"] = strings.TrimPrefix(activity, "HKWorkoutActivityType")

	return parsed(health.Point{
		Time:   start,
		Fields: fields,
		Tags:   tags,
	}), nil
}

// toMeters converts a distance; kilometers are assumed when no unit is given.
func toMeters(value float64, unit string) float64 {
	switch unit {
	case "m":
		return value
	case "mi":
		return value * metersPerMile
	default:
		return value * metersPerKilometer
	}
}
