// Package metrics содержит Prometheus коллекторы прокси и отдельный листенер /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "llm_proxy"

// Metrics передается компонентам, которые пишут метрики
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	ProxyRequests    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	AuthFailures     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New создает и регистрирует метрики в собственном реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		HTTPRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests handled, by route and status",
			},
			[]string{"method", "route", "status"},
		),
		ProxyRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total proxied vendor requests, by outcome status",
			},
			[]string{"vendor", "status"},
		),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of outbound vendor calls",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"vendor"},
		),
		AuthFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Rejected access-key checks",
			},
			[]string{"reason"}, // reason=missing/invalid
		),
		registry: reg,
	}
}

// Registry нужен тестам и промхендлеру
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler отдает метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server - листенер /metrics на отдельном адресе,
// чтобы публичная поверхность прокси оставалась неизменной.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("metrics"),
	}
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	s.logger.Info("Starting metrics listener", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
