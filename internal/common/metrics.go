package common

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// Metric results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultSuccess = "success"
	ResultError   = "error"
)

// CacheGetsTotalIncr counts a record cache lookup by key prefix and hit or miss.
var CacheGetsTotalIncr = func(ctx context.Context, keyPrefix, result string) {}

// ExtractionsTotalIncr counts a record extraction by result and record type.
var ExtractionsTotalIncr = func(ctx context.Context, result, recordType string) {}

// initMeters creates the addon counters on meter and points the Incr funcs at them.
func initMeters(meter metric.Meter, serviceVersion, serviceEnvironment string) error {
	base := []attribute.KeyValue{
		semconv.DeploymentEnvironmentName(serviceEnvironment),
		semconv.ServiceVersion(serviceVersion),
	}
	with := func(attrs ...attribute.KeyValue) metric.AddOption {
		return metric.WithAttributes(append(attrs, base...)...)
	}

	cacheGets, err := meter.Int64Counter("cache_gets_total",
		metric.WithDescription("Record cache lookups"))
	if err != nil {
		return fmt.Errorf("failed to create cache_gets_total: %w", err)
	}
	extractions, err := meter.Int64Counter("extractions_total",
		metric.WithDescription("URN-3 record extractions"))
	if err != nil {
		return fmt.Errorf("failed to create extractions_total: %w", err)
	}

	CacheGetsTotalIncr = func(ctx context.Context, keyPrefix, result string) {
		cacheGets.Add(ctx, 1, with(
			attribute.String("key.prefix", keyPrefix),
			attribute.String("result", result),
		))
	}
	ExtractionsTotalIncr = func(ctx context.Context, result, recordType string) {
		extractions.Add(ctx, 1, with(
			attribute.String("result", result),
			attribute.String("record.type", recordType),
		))
	}

	return nil
}
