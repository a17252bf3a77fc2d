package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// InjectAttributes writes the current trace context into message attributes.
func InjectAttributes(ctx context.Context, attrs map[string]string) {
	if attrs == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))
}

// ExtractAttributes returns ctx with the remote span recorded in message attributes.
func ExtractAttributes(ctx context.Context, attrs map[string]string) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(attrs))
}

func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var piiKeys = []string{"email", "password", "token", "secret"}

// SafeAttributes drops attributes whose keys suggest personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitive(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range piiKeys {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
