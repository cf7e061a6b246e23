package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_Record(t *testing.T) {
	c := New()

	c.ObserveDispatch("interact", "success", 20*time.Millisecond)
	c.ObserveDispatch("interact", "success", 30*time.Millisecond)
	c.ObserveDispatch("collect", "failure", time.Millisecond)
	c.ServerWarning()
	c.GateQueueDepth(3)
	c.BootstrapAttempt()
	c.CookiesSwept(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.dispatches.WithLabelValues("interact", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("collect", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.serverWarnings))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.gateQueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bootstrapAttempts))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.cookiesSwept))
}

func TestCollectors_NilIsSafe(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveDispatch("interact", "success", time.Second)
		c.ServerWarning()
		c.GateQueueDepth(1)
		c.BootstrapAttempt()
		c.CookiesSwept(1)
		c.HTTPRequest("/v1/events", http.StatusOK)
	})
}

func TestCollectors_Handler(t *testing.T) {
	c := New()
	c.BootstrapAttempt()
	c.HTTPRequest("/v1/events", http.StatusOK)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "edge_collector_identity_bootstrap_attempts_total 1")
	assert.Contains(t, string(body), `edge_collector_http_requests_total{route="/v1/events",status="200"} 1`)
}
