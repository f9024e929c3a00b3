package quantum

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("qvcs.quantum")

var (
	registeredTotal metric.Int64Counter
	entangledTotal  metric.Int64Counter
	collapsedTotal  metric.Int64Counter
	dampenedTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics registers the instruments once. Recording is skipped if that fails.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		registeredTotal, err = meter.Int64Counter(
			"quantum_commits_registered_total",
			metric.WithDescription("Superposed commits registered"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		entangledTotal, err = meter.Int64Counter(
			"quantum_entanglements_total",
			metric.WithDescription("Entanglement edges created at registration"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		collapsedTotal, err = meter.Int64Counter(
			"quantum_collapses_total",
			metric.WithDescription("Commits collapsed onto a branch"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		dampenedTotal, err = meter.Int64Counter(
			"quantum_dampenings_total",
			metric.WithDescription("Interference dampenings applied to entangled commits"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordRegister(entangled int) {
	if initMetrics() != nil {
		return
	}
	ctx := context.Background()
	registeredTotal.Add(ctx, 1)
	entangledTotal.Add(ctx, int64(entangled))
}

func recordCollapse(branch string) {
	if initMetrics() != nil {
		return
	}
	collapsedTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("branch", branch)))
}

func recordDampening(n int) {
	if n == 0 || initMetrics() != nil {
		return
	}
	dampenedTotal.Add(context.Background(), int64(n))
}
