package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Driving-time span attributes
const (
	OriginKeyKey        = attribute.Key("drivetime.origin_key")
	DestinationCountKey = attribute.Key("drivetime.destinations")
	BatchIndexKey       = attribute.Key("drivetime.batch.index")
	BatchSizeKey        = attribute.Key("drivetime.batch.size")
	CacheResultKey      = attribute.Key("drivetime.cache.result")
	ResolvedCountKey    = attribute.Key("drivetime.resolved")

	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
)

// TraceExternalAPI wraps a call to an upstream service in a client span
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("external.service", serviceName),
		attribute.String("external.operation", operation),
	)
	span.SetAttributes(attrs...)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// LocationAttributes describes a point
func LocationAttributes(latitude, longitude float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
}
