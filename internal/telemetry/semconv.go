// Package telemetry wires OpenTelemetry metrics for pooled objects.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for pool telemetry.
const (
	// AttrPoolName labels pooled object metrics by logical pool.
	AttrPoolName = attribute.Key("pool.name")
	// AttrEnvironment specifies the deployment environment (dev/staging/prod) for every metric.
	AttrEnvironment = attribute.Key("environment")
)

// PoolAttributes returns the attribute set attached to every pool observation.
func PoolAttributes(environment, pool string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(pool),
	}
}
