package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.ProxyRequests.WithLabelValues("claude", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ProxyRequests.WithLabelValues("claude", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProxyRequests.WithLabelValues("claude", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AuthFailures.WithLabelValues("invalid").Add(2)
	m.UpstreamDuration.WithLabelValues("openai").Observe(0.3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `llm_proxy_auth_failures_total{reason="invalid"} 2`), text)
	assert.Contains(t, text, `llm_proxy_upstream_duration_seconds_count{vendor="openai"} 1`)
}
