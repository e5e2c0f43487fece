package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mw, err := HTTPMetrics(provider.Meter("http"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(mw)
	router.GET("/api/v1/audio/*key", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/audio/a.mp3", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/audio/b.mp3", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total metricdata.Sum[int64]
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "http_server_request_total" {
				total, found = m.Data.(metricdata.Sum[int64])
			}
		}
	}
	require.True(t, found)

	byRoute := map[string]int64{}
	for _, dp := range total.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("http.route"))
		byRoute[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), byRoute["/api/v1/audio/*key"])
	assert.Equal(t, int64(1), byRoute["unmatched"])
}
