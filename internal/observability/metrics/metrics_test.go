package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	if pointsTotal != nil {
		t.Skip("metrics already initialised")
	}
	assert.NotPanics(t, func() {
		IncElement("Record")
		AddPoints(PointsWritten, 3)
		ObserveBatchWrite(ResultSuccess, time.Millisecond)
	})
}

func TestInitRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
	require.NotNil(t, pointsTotal)

	before := testutil.ToFloat64(pointsTotal.WithLabelValues(PointsWritten))
	AddPoints(PointsWritten, 5)
	AddPoints(PointsWritten, 0)
	assert.Equal(t, before+5, testutil.ToFloat64(pointsTotal.WithLabelValues(PointsWritten)))

	IncOutcome("")
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomesTotal.WithLabelValues("unknown")))
}
