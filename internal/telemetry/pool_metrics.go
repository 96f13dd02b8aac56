package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/reusable/pkg/pool"
)

const meterName = "github.com/coachpo/reusable/pool"

// Instrument names reported by ObservePools.
const (
	MetricPoolIdle        = "reusable_pool_idle"
	MetricPoolOutstanding = "reusable_pool_outstanding"
	MetricPoolCapacity    = "reusable_pool_capacity"
	MetricPoolSaturation  = "reusable_pool_saturation_total"
)

// ObservePools registers observable instruments that report every pool in
// registry on each collection. A nil provider uses the global one.
func ObservePools(mp metric.MeterProvider, environment string, registry *pool.Registry) error {
	if registry == nil {
		return nil
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	gauges := []struct {
		name        string
		description string
		value       func(pool.Stats) int64
	}{
		{MetricPoolIdle, "Idle objects ready for borrowing", func(s pool.Stats) int64 { return int64(s.Idle) }},
		{MetricPoolOutstanding, "Guards currently borrowed from the pool", func(s pool.Stats) int64 { return s.Outstanding }},
		{MetricPoolCapacity, "Objects created when the pool was filled", func(s pool.Stats) int64 { return int64(s.Capacity) }},
	}
	for _, g := range gauges {
		value := g.value
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.description),
			metric.WithUnit("{object}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				for _, stats := range registry.Snapshot() {
					observer.Observe(value(stats), metric.WithAttributes(PoolAttributes(environment, stats.Name)...))
				}
				return nil
			}),
		); err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}

	if _, err := meter.Int64ObservableCounter(MetricPoolSaturation,
		metric.WithDescription("Borrows that found the pool empty and created a fallback object"),
		metric.WithUnit("{event}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			for _, stats := range registry.Snapshot() {
				observer.Observe(int64(stats.FailCount), metric.WithAttributes(PoolAttributes(environment, stats.Name)...))
			}
			return nil
		}),
	); err != nil {
		return fmt.Errorf("register %s: %w", MetricPoolSaturation, err)
	}
	return nil
}
