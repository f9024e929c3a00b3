package quantum

import (
	"context"
	"testing"

	"qvcs/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func counterTotal(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	collect := func() metricdata.ResourceMetrics {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		return rm
	}
	before := collect()

	r := New(WithDrawer(draws(0.1)))
	probs := map[string]float64{"main": 0.5, "dev": 0.5}
	mustRegister(t, r, []shared.FileChange{change("f", lm(1, 1))}, probs)
	mustRegister(t, r, []shared.FileChange{change("f", lm(1, 1))}, probs)
	_, err := r.Observe("main")
	require.NoError(t, err)

	after := collect()
	delta := func(name string) int64 {
		return counterTotal(after, name) - counterTotal(before, name)
	}
	assert.Equal(t, int64(2), delta("quantum_commits_registered_total"))
	assert.Equal(t, int64(1), delta("quantum_entanglements_total"))
	assert.GreaterOrEqual(t, delta("quantum_collapses_total"), int64(1))
}
