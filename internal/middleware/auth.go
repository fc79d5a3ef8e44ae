package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"llm-proxy/internal/config"
	"llm-proxy/internal/metrics"
	"llm-proxy/internal/types"
)

// AccessKey проверяет общий секрет в заголовке (по умолчанию X-API-Key)
// перед выполнением /api/* маршрутов. Без блокировок и лимитов попыток.
func AccessKey(cfg config.AuthConfig, logger *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	logger = logger.Named("auth")
	expected := cfg.AccessKey

	equal := func(got string) bool { return got == expected }
	if cfg.ConstantTime {
		equal = func(got string) bool {
			return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
		}
	}

	return func(c *gin.Context) {
		provided := c.GetHeader(cfg.Header)

		if provided == "" {
			m.AuthFailures.WithLabelValues("missing").Inc()
			logger.Warn("Missing API key",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.String("remote_addr", c.Request.RemoteAddr))
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Error: types.MsgAPIKeyRequired})
			return
		}

		if !equal(provided) {
			m.AuthFailures.WithLabelValues("invalid").Inc()
			logger.Warn("Invalid API key attempt",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.String("remote_addr", c.Request.RemoteAddr))
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Error: types.MsgInvalidAPIKey})
			return
		}

		c.Next()
	}
}
