package application

import (
	"strconv"

	"health-importer/internal/health/domain"
)

var summaryFields = []struct {
	attr  string
	field string
}{
	{"activeEnergyBurned", "energy"},
	{"activeEnergyBurnedGoal", "energy_goal"},
	{"appleMoveTime", "move_time"},
	{"appleExerciseTime", "exercise_time"},
	{"appleStandHours", "stand_hours"},
}

func (p *Parser) parseSummary(el health.Element) (Outcome, error) {
	rawDay := el.Attr("dateComponents")
	if rawDay == "" {
		return rejected("missing date components"), nil
	}
	day, err := parseDay(rawDay, p.location)
	if err != nil {
		return Outcome{}, err
	}

	fields := make(map[string]any, len(summaryFields))
	for _, f := range summaryFields {
		raw := el.Attr(f.attr)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rejected("non-numeric " + f.attr), nil
		}
		fields[f.field] = value
	}

	return parsed(health.Point{
		Time:   day,
		Fields: fields,
		Tags:   map[string]string{"summary_type": "daily"},
	}), nil
}
