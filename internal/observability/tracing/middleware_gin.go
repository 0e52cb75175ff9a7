package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rentbook/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "rentbook/http"

// GinMiddleware opens a server span per API request. The span is renamed to
// the matched route once the handler chain has run.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(httpTracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		matched := c.FullPath()
		route := matched
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName(method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
			attribute.Int64("rentbook.duration_ms", time.Since(start).Milliseconds()),
		}
		if resource := resourceOf(matched); resource != "" {
			attrs = append(attrs, attribute.String("rentbook.resource", resource))
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("rentbook.resource_id", id))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status == http.StatusTooManyRequests:
			span.AddEvent("write_rate_limited")
		case status >= http.StatusInternalServerError:
			if last := c.Errors.Last(); last != nil {
				if safeErr := SafeError(last.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// resourceOf names the collection a route addresses: "/api/tenancies/:id/end"
// gives "tenancies" and "/api/dashboard/summary" gives "dashboard".
func resourceOf(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) > 0 && parts[0] == "api" {
		parts = parts[1:]
	}
	if len(parts) == 0 || strings.HasPrefix(parts[0], ":") {
		return ""
	}
	return parts[0]
}
