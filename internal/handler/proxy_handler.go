package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"llm-proxy/internal/config"
	"llm-proxy/internal/metrics"
	"llm-proxy/internal/middleware"
	"llm-proxy/internal/types"
	"llm-proxy/internal/upstream"
)

// Forwarder выполняет исходящий вызов к вендору
type Forwarder interface {
	Forward(ctx context.Context, v upstream.Vendor, apiKey string, body []byte) (*upstream.Response, error)
}

// ProxyHandler пробрасывает тело запроса вендору и отдает его ответ без изменений
type ProxyHandler struct {
	logger       *zap.Logger
	client       Forwarder
	metrics      *metrics.Metrics
	maxBodyBytes int64
	claudeKey    string
	openAIKey    string
}

// NewProxyHandler создает новый хендлер
func NewProxyHandler(cfg *config.Config, client Forwarder, logger *zap.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		logger:       logger.Named("proxy"),
		client:       client,
		metrics:      m,
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
		claudeKey:    cfg.Vendors.Claude.APIKey,
		openAIKey:    cfg.Vendors.OpenAI.APIKey,
	}
}

// RegisterRoutes регистрирует маршруты внутри группы /api
func (h *ProxyHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/claude", h.Forward(upstream.Claude(), h.claudeKey))
	router.POST("/openai", h.Forward(upstream.OpenAI(), h.openAIKey))
}

// Forward возвращает хендлер для конкретного вендора
func (h *ProxyHandler) Forward(v upstream.Vendor, apiKey string) gin.HandlerFunc {
	logger := h.logger.With(zap.String("vendor", v.Name))

	return func(c *gin.Context) {
		reqLogger := logger.With(zap.String("request_id", middleware.GetRequestID(c)))
		reqLogger.Info("API request received")

		if apiKey == "" {
			reqLogger.Error("API key not configured")
			h.metrics.ProxyRequests.WithLabelValues(v.Name, "unconfigured").Inc()
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: v.DisplayName + " API key not configured"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reqLogger.Warn("Request body too large", zap.Int64("limit", tooLarge.Limit))
				c.JSON(http.StatusRequestEntityTooLarge, types.ErrorResponse{Error: types.MsgBodyTooLarge})
				return
			}
			reqLogger.Error("Failed to read request body", zap.Error(err))
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgInternalError})
			return
		}
		// пустое тело уходит вендору как пустой JSON объект
		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("{}")
		}
		if !json.Valid(body) {
			reqLogger.Warn("Invalid JSON body", zap.Int("bytes", len(body)))
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: types.MsgInvalidJSONBody})
			return
		}

		start := time.Now()
		resp, err := h.client.Forward(c.Request.Context(), v, apiKey, body)
		h.metrics.UpstreamDuration.WithLabelValues(v.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			reqLogger.Error("Proxy error", zap.Error(err))
			h.metrics.ProxyRequests.WithLabelValues(v.Name, "transport_error").Inc()
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: types.MsgInternalError})
			return
		}

		h.metrics.ProxyRequests.WithLabelValues(v.Name, strconv.Itoa(resp.StatusCode)).Inc()
		if !resp.OK() {
			reqLogger.Warn("API error",
				zap.Int("status", resp.StatusCode),
				zap.ByteString("upstream_body", truncate(resp.Body, 4096)))
		} else {
			reqLogger.Info("API request successful", zap.Int("status", resp.StatusCode))
		}

		c.Data(resp.StatusCode, "application/json", resp.Body)
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
