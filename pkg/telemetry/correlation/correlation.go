package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

// correlationKey is an unexported type for context keys within this package.
type correlationKey struct{}

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// InjectInto copies the correlation and trace identifiers of ctx into metadata.
// Existing keys are left untouched.
func InjectInto(ctx context.Context, metadata map[string]any) {
	if metadata == nil {
		return
	}
	if _, ok := metadata["correlation_id"]; !ok {
		if cid := ExtractCorrelationID(ctx); cid != "" {
			metadata["correlation_id"] = cid
		}
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	if _, ok := metadata["trace_id"]; !ok {
		metadata["trace_id"] = sc.TraceID().String()
	}
	if _, ok := metadata["span_id"]; !ok {
		metadata["span_id"] = sc.SpanID().String()
	}
}
