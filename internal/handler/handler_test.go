package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"llm-proxy/internal/config"
	"llm-proxy/internal/metrics"
	"llm-proxy/internal/types"
	"llm-proxy/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type forwardCall struct {
	vendor string
	apiKey string
	body   string
}

type fakeForwarder struct {
	mu    sync.Mutex
	calls []forwardCall
	resp  *upstream.Response
	err   error
}

func (f *fakeForwarder) Forward(_ context.Context, v upstream.Vendor, apiKey string, body []byte) (*upstream.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, forwardCall{vendor: v.Name, apiKey: apiKey, body: string(body)})
	return f.resp, f.err
}

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Vendors.Claude.APIKey = "sk-ant"
	cfg.Vendors.OpenAI.APIKey = "sk-openai"
	return cfg
}

func newProxyRouter(cfg *config.Config, f Forwarder, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	NewProxyHandler(cfg, f, zap.NewNop(), m).RegisterRoutes(r.Group("/api"))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProxyRelaysUpstreamResponse(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError, 529}

	for _, status := range statuses {
		for _, path := range []string{"/api/claude", "/api/openai"} {
			t.Run(fmt.Sprintf("%s %d", path, status), func(t *testing.T) {
				upstreamBody := fmt.Sprintf(`{"status":%d,"detail":{"nested":[1,2,3]}}`, status)
				f := &fakeForwarder{resp: &upstream.Response{StatusCode: status, Body: []byte(upstreamBody)}}
				r := newProxyRouter(testConfig(), f, metrics.New())

				rec := post(r, path, `{"model":"x"}`)

				assert.Equal(t, status, rec.Code)
				assert.Equal(t, upstreamBody, rec.Body.String())
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				require.Len(t, f.calls, 1)
				assert.Equal(t, `{"model":"x"}`, f.calls[0].body)
			})
		}
	}
}

func TestProxyAttachesVendorKey(t *testing.T) {
	f := &fakeForwarder{resp: &upstream.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}}
	r := newProxyRouter(testConfig(), f, metrics.New())

	post(r, "/api/claude", `{}`)
	post(r, "/api/openai", `{}`)

	require.Len(t, f.calls, 2)
	assert.Equal(t, forwardCall{vendor: "claude", apiKey: "sk-ant", body: `{}`}, f.calls[0])
	assert.Equal(t, forwardCall{vendor: "openai", apiKey: "sk-openai", body: `{}`}, f.calls[1])
}

func TestProxyVendorKeyUnset(t *testing.T) {
	tests := []struct {
		path    string
		unset   func(*config.Config)
		message string
	}{
		{path: "/api/claude", unset: func(c *config.Config) { c.Vendors.Claude.APIKey = "" }, message: "Claude API key not configured"},
		{path: "/api/openai", unset: func(c *config.Config) { c.Vendors.OpenAI.APIKey = "" }, message: "OpenAI API key not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cfg := testConfig()
			tt.unset(cfg)
			f := &fakeForwarder{}
			r := newProxyRouter(cfg, f, metrics.New())

			rec := post(r, tt.path, `{"model":"x"}`)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var body types.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
			assert.Empty(t, f.calls)
		})
	}
}

func TestProxyTransportError(t *testing.T) {
	f := &fakeForwarder{err: fmt.Errorf("%w: dial tcp: i/o timeout", upstream.ErrTransport)}
	m := metrics.New()
	r := newProxyRouter(testConfig(), f, m)

	rec := post(r, "/api/openai", `{"messages":[]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "timeout")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues("openai", "transport_error")))
}

func TestProxyUnexpectedErrorIsFlattened(t *testing.T) {
	f := &fakeForwarder{err: errors.New("build request: secret detail")}
	r := newProxyRouter(testConfig(), f, metrics.New())

	rec := post(r, "/api/claude", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestProxyRejectsBadBodies(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.MaxBodyBytes = 16

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "too large", body: `{"model":"` + strings.Repeat("x", 32) + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantError: types.MsgBodyTooLarge},
		{name: "not json", body: `model=x`, wantStatus: http.StatusBadRequest, wantError: types.MsgInvalidJSONBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeForwarder{}
			r := newProxyRouter(cfg, f, metrics.New())

			rec := post(r, "/api/claude", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantError), rec.Body.String())
			assert.Empty(t, f.calls)
		})
	}
}

func TestProxyForwardsEmptyBodyAsEmptyObject(t *testing.T) {
	for _, body := range []string{"", "  \n"} {
		f := &fakeForwarder{resp: &upstream.Response{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":"model required"}`)}}
		r := newProxyRouter(testConfig(), f, metrics.New())

		rec := post(r, "/api/openai", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"model required"}`, rec.Body.String())
		require.Len(t, f.calls, 1)
		assert.Equal(t, `{}`, f.calls[0].body)
	}
}

func TestHealth(t *testing.T) {
	h := NewSystemHandler("1.2.3")
	r := gin.New()
	h.RegisterRoutes(r)

	var last float64
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body types.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.GreaterOrEqual(t, body.Uptime, 0.0)
		assert.GreaterOrEqual(t, body.Uptime, last)
		_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
		assert.NoError(t, err)
		last = body.Uptime
	}
}

func TestHealthUptimeUsesClock(t *testing.T) {
	h := NewSystemHandler("dev")
	h.now = func() time.Time { return h.startedAt.Add(90 * time.Second) }
	r := gin.New()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body types.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 90.0, body.Uptime, 0.001)
}

func TestRoot(t *testing.T) {
	r := gin.New()
	NewSystemHandler("1.2.3").RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body types.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body.Version)
	assert.Contains(t, body.Endpoints, "/api/claude")
	assert.Contains(t, body.Endpoints, "/api/openai")
	assert.Contains(t, body.Endpoints, "/health")
}
