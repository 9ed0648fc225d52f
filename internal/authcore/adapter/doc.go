// Package adapter contains implementations of the interfaces defined in app:
// Redis secret and rate-limit stores, the DynamoDB user store, audit sinks,
// SMS delivery channels and the signing-key loader.
package adapter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("authcore/adapter")

var rateLimitDegradedTotal metric.Int64Counter

func init() {
	m := otel.Meter("authcore/adapter")

	rateLimitDegradedTotal, _ = m.Int64Counter("security_ratelimit_degraded_total",
		metric.WithDescription("Rate limit checks admitted because the counter store was unreachable"))
}
