package application

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"health-importer/internal/catalog/domain"
	"health-importer/internal/health/domain"
)

const motionContextKey = "HKMetadataKeyHeartRateMotionContext"

// heart rate upper bound applied in strict mode, in count/min.
const maxHeartRate = 400.0

var heartRateTypes = map[string]bool{
	"HKQuantityTypeIdentifierHeartRate":               true,
	"HKQuantityTypeIdentifierRestingHeartRate":        true,
	"HKQuantityTypeIdentifierWalkingHeartRateAverage": true,
}

// units whose values can never be negative.
var nonNegativeUnits = map[string]bool{
	"kcal": true, "Cal": true, "kJ": true,
	"m": true, "cm": true, "km": true, "mi": true, "ft": true,
	"s": true, "min": true, "hr": true,
	"count": true, "count/min": true,
}

var motionContexts = map[string]string{
	"0": "not_set",
	"1": "sedentary",
	"2": "active",
}

// Parser turns raw export elements into normalized points.
type Parser struct {
	registry *catalog.Registry
	location *time.Location
	strict   bool
	logger   logrus.FieldLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for rejected records.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLocation overrides the registry timezone.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithStrictBounds toggles type plausibility bounds; defaults to the registry strict mode.
func WithStrictBounds(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

// NewParser constructs a parser.
func NewParser(registry *catalog.Registry, opts ...Option) (*Parser, error) {
	if registry == nil {
		return nil, errors.New("parser: nil registry")
	}
	p := &Parser{
		registry: registry,
		location: registry.Location(),
		strict:   registry.StrictValidation(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse converts el according to its classification. The error is non-nil
// only when a timestamp is present but unparseable.
func (p *Parser) Parse(el health.Element, entry catalog.Entry) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	switch entry.Kind {
	case health.KindQuantity:
		if el.Kind != health.ElementRecord {
			return notApplicable("quantity entry on " + el.Kind.String()), nil
		}
		out, err = p.parseQuantity(el)
	case health.KindCategory:
		if el.Kind != health.ElementRecord {
			return notApplicable("category entry on " + el.Kind.String()), nil
		}
		out, err = p.parseInterval(el, entry.Category)
	case health.KindWorkout:
		if el.Kind != health.ElementWorkout {
			return notApplicable("workout entry on " + el.Kind.String()), nil
		}
		out, err = p.parseWorkout(el)
	case health.KindDailySummary:
		if el.Kind != health.ElementActivitySummary {
			return notApplicable("summary entry on " + el.Kind.String()), nil
		}
		out, err = p.parseSummary(el)
	default:
		return notApplicable("unknown record kind"), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	switch out.Status {
	case Parsed:
		out.Point.Type = el.Type()
		out.Point.Kind = entry.Kind
		out.Point.Category = entry.Category
		if cfg, ok := p.registry.ConfigFor(entry.Category); ok {
			out.Point.Measurement = cfg.MeasurementName
		}
	case Rejected:
		p.logger.WithFields(logrus.Fields{
			"type":   el.Type(),
			"reason": out.Reason,
		}).Warn("record rejected")
	}
	return out, nil
}

func (p *Parser) parseQuantity(el health.Element) (Outcome, error) {
	recordType := el.Type()
	rawValue := el.Attr("value")
	rawStart := el.Attr("startDate")
	if rawValue == "" || rawStart == "" {
		return rejected("missing value or start date"), nil
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return rejected("non-numeric value " + strconv.Quote(rawValue)), nil
	}
	start, err := parseTimestamp(rawStart, p.location)
	if err != nil {
		return Outcome{}, err
	}

	unit := el.Attr("unit")
	if value < 0 && nonNegativeUnits[unit] {
		return rejected("negative " + unit + " value"), nil
	}

	tags := sourceTags(el)
	if unit != "" {
		tags["unit"] = unit
	}

	if heartRateTypes[recordType] {
		if value <= 0 {
			return rejected("non-positive heart rate"), nil
		}
		if p.strict && value > maxHeartRate {
			return rejected("heart rate above plausible bound"), nil
		}
		if ctx, ok := motionContexts[el.Metadata[motionContextKey]]; ok {
			tags["motion_context"] = ctx
		}
	} else {
		addHeuristicTags(recordType, tags)
	}

	return parsed(health.Point{
		Time:   start,
		Fields: map[string]any{"value": value},
		Tags:   tags,
	}), nil
}

func (p *Parser) parseInterval(el health.Element, category string) (Outcome, error) {
	rawStart, rawEnd := el.Attr("startDate"), el.Attr("endDate")
	if rawStart == "" || rawEnd == "" {
		return rejected("missing start or end date"), nil
	}
	start, err := parseTimestamp(rawStart, p.location)
	if err != nil {
		return Outcome{}, err
	}
	end, err := parseTimestamp(rawEnd, p.location)
	if err != nil {
		return Outcome{}, err
	}
	if end.Before(start) {
		return rejected("end date before start date"), nil
	}

	duration := end.Sub(start).Seconds()
	if cfg, ok := p.registry.ConfigFor(category); ok && cfg.DurationUnit == catalog.DurationMinutes {
		duration /= 60
	}

	tags := sourceTags(el)
	suffix := strings.TrimPrefix(el.Type(), "HKCategoryTypeIdentifier")
	if value := el.Attr("value"); value != "" {
		state := strings.TrimPrefix(value, "HKCategoryValue"+suffix)
		if state == "" {
			state = value
		}
		tags["state"] = state
		if suffix == "SleepAnalysis" {
			if strings.HasPrefix(state, "Asleep") {
				tags["quality"] = "asleep"
			} else {
				tags["quality"] = "not_asleep"
			}
		}
	}

	return parsed(health.Point{
		Time:   start,
		Fields: map[string]any{"duration": duration},
		Tags:   tags,
	}), nil
}

func sourceTags(el health.Element) map[string]string {
	tags := make(map[string]string, 4)
	if source := el.Attr("sourceName"); source != "" {
		tags["source"] = source
	}
	if device := el.Attr("device"); device != "" {
		tags["device"] = device
	}
	return tags
}

// addHeuristicTags derives secondary tags from the identifier of types
// without a dedicated model.
func addHeuristicTags(recordType string, tags map[string]string) {
	name := strings.TrimPrefix(recordType, "HKQuantityTypeIdentifier")
	switch {
	case strings.Contains(name, "Energy"):
		if strings.Contains(name, "Basal") {
			tags["energy_type"] = "resting"
		} else {
			tags["energy_type"] = "active"
		}
	case strings.HasPrefix(name, "Distance"):
		tags["distance_type"] = toSnake(strings.TrimPrefix(name, "Distance"))
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
