package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"llm-proxy/internal/config"
	"llm-proxy/internal/handler"
	"llm-proxy/internal/metrics"
	"llm-proxy/internal/middleware"
	"llm-proxy/internal/types"
)

// NewRouter создает роутер с маршрутами и цепочкой middleware.
// Снаружи: security headers -> CORS -> gin.
func NewRouter(
	cfg *config.Config,
	systemHandler *handler.SystemHandler,
	proxyHandler *handler.ProxyHandler,
	logger *zap.Logger,
	m *metrics.Metrics,
) (http.Handler, error) {
	engine, err := newEngine(cfg, systemHandler, proxyHandler, logger, m)
	if err != nil {
		return nil, err
	}
	return middleware.SecurityHeaders(middleware.CORS(cfg.CORS, engine)), nil
}

func newEngine(
	cfg *config.Config,
	systemHandler *handler.SystemHandler,
	proxyHandler *handler.ProxyHandler,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*gin.Engine, error) {
	router := gin.New()

	// nil: X-Forwarded-For игнорируется, ClientIP = адрес соединения
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Только точные пути: /health/ и /HEALTH - это 404, а не редирект
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger, m))
	router.Use(middleware.Recovery(logger))

	systemHandler.RegisterRoutes(router)

	api := router.Group("/api")
	if cfg.Auth.Required {
		api.Use(middleware.AccessKey(cfg.Auth, logger, m))
	}
	proxyHandler.RegisterRoutes(api)

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: types.MsgNotFound})
	})

	return router, nil
}
