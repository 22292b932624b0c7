package observability

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Black-And-White-Club/raffle-bot/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMetricsHandler(t *testing.T) {
	obs := New(config.ObservabilityConfig{LogLevel: "error"})
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_test_total", Help: "test"})
	obs.Registry.MustRegister(counter)
	counter.Inc()

	rec := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "raffle_test_total 1")
}
