/*
Package observe provides the metrics and HTTP instrumentation of the tooldb
server.

Instruments are created through the OpenTelemetry Metrics API. InitProvider
wires them to a Prometheus exporter so they can be scraped on /metrics.
Tests should build Metrics from their own MeterProvider with NewMetrics.
*/
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every tooldb instrument.
const meterName = "github.com/khanglvm/tooldb"

// Metrics holds the instruments of the service. It satisfies matcher.Observer.
type Metrics struct {
	// Registrations counts accepted tool registrations.
	Registrations metric.Int64Counter

	// Fragments counts fragments inserted by registrations.
	Fragments metric.Int64Counter

	// Matches counts match queries. Use with attribute result.
	Matches metric.Int64Counter

	// HTTPRequestDuration tracks request processing time. Use with
	// attributes method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Registrations, err = m.Int64Counter("tooldb.registrations",
		metric.WithDescription("Number of accepted tool registrations."),
	); err != nil {
		return nil, err
	}
	if met.Fragments, err = m.Int64Counter("tooldb.fragments",
		metric.WithDescription("Number of fragments inserted into the collection."),
	); err != nil {
		return nil, err
	}
	if met.Matches, err = m.Int64Counter("tooldb.matches",
		metric.WithDescription("Number of match queries by result."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("tooldb.http.request.duration",
		metric.WithDescription("Latency of HTTP request processing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Registered records a registration of tool that inserted the given number
// of fragments.
func (m *Metrics) Registered(ctx context.Context, tool string, fragments int) {
	m.Registrations.Add(ctx, 1)
	m.Fragments.Add(ctx, int64(fragments))
}

// Matched records a match query with its result.
func (m *Metrics) Matched(ctx context.Context, result string) {
	m.Matches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
