package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "fixed")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "fixed", cid)
	assert.Equal(t, "fixed", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, cid)
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestInjectInto(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithCorrelationID(ctx, "cid-1")

	metadata := map[string]any{"span_id": "keep"}
	InjectInto(ctx, metadata)

	assert.Equal(t, "cid-1", metadata["correlation_id"])
	assert.Equal(t, traceID.String(), metadata["trace_id"])
	assert.Equal(t, "keep", metadata["span_id"])
}
