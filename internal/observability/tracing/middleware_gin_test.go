package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := gin.New()
	r.Use(GinMiddleware())
	return r, recorder
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.GET("/api/rent-records/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("store down\nSELECT * FROM rent_records"))
		c.Status(http.StatusServiceUnavailable)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rent-records/7", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/rent-records/:id", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("rentbook.resource", "rent-records"))
	assert.Contains(t, span.Attributes(), attribute.String("rentbook.resource_id", "7"))
	assert.Contains(t, span.Attributes(), attribute.Int("http.response.status_code", http.StatusServiceUnavailable))
	require.NotEmpty(t, span.Events())
	var message string
	for _, attr := range span.Events()[0].Attributes {
		if attr.Key == "exception.message" {
			message = attr.Value.AsString()
		}
	}
	assert.Equal(t, "store down", message)
}

func TestGinMiddlewareMarksRateLimitedWrites(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.POST("/api/tenancies", func(c *gin.Context) {
		c.Status(http.StatusTooManyRequests)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tenancies", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/tenancies", span.Name())
	assert.NotEqual(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "write_rate_limited", span.Events()[0].Name)
}

func TestResourceOf(t *testing.T) {
	cases := map[string]string{
		"/api/tenancies/:id/end": "tenancies",
		"/api/dashboard/summary": "dashboard",
		"/health":                "health",
		"/api/:id":               "",
		"":                       "",
	}
	for route, want := range cases {
		assert.Equal(t, want, resourceOf(route), route)
	}
}

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("tenant.phone", "555"),
		attribute.String("http.route", "/api/tenants/:id"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	err := SafeError(errors.New("insert failed\nINSERT INTO rent_records VALUES ('secret')"))
	assert.Equal(t, "insert failed", err.Error())
	assert.Nil(t, SafeError(nil))
}
