package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"health-importer/internal/health/domain"
)

func TestPositionAdvance(t *testing.T) {
	var p Position
	p.Advance(health.ElementRecord)
	p.Advance(health.ElementRecord)
	p.Advance(health.ElementWorkout)
	p.Advance(health.ElementActivitySummary)

	assert.Equal(t, Position{Records: 2, Workouts: 1, Activities: 1}, p)
	assert.Equal(t, int64(4), p.Total())
	assert.Equal(t, int64(2), p.Of(health.ElementRecord))
	assert.Equal(t, int64(1), p.Of(health.ElementWorkout))
}

func TestRunStatsCloneIsDeep(t *testing.T) {
	s := RunStats{Categories: map[string]int{"vitals": 1}, ParseErrors: 1, ValidationErrors: 2, WriteErrors: 3}
	c := s.Clone()
	c.Categories["vitals"] = 9

	assert.Equal(t, 1, s.Categories["vitals"])
	assert.Equal(t, 6, s.Errors())
}

func TestObserveLatestKeepsNewest(t *testing.T) {
	night := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	morning := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	var s RunStats
	s.ObserveLatest(map[string]time.Time{"heartrate_bpm": night})
	s.ObserveLatest(map[string]time.Time{"heartrate_bpm": morning, "energy_kcal": morning})

	assert.Equal(t, night, s.Latest["heartrate_bpm"])
	assert.Equal(t, morning, s.Latest["energy_kcal"])

	c := s.Clone()
	c.Latest["heartrate_bpm"] = morning
	assert.Equal(t, night, s.Latest["heartrate_bpm"])
}
