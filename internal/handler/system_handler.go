package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llm-proxy/internal/types"
)

// SystemHandler обслуживает маршруты без авторизации: / и /health
type SystemHandler struct {
	version   string
	startedAt time.Time
	now       func() time.Time
}

// NewSystemHandler фиксирует момент старта для расчета uptime
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// RegisterRoutes регистрирует маршруты
func (h *SystemHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
}

// Health - проверка живости
func (h *SystemHandler) Health(c *gin.Context) {
	now := h.now()
	uptime := now.Sub(h.startedAt).Seconds()
	if uptime < 0 {
		uptime = 0
	}
	c.JSON(http.StatusOK, types.HealthResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    uptime,
	})
}

// Root - описание доступных маршрутов
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, types.ServiceInfo{
		Service: "LLM Proxy",
		Version: h.version,
		Endpoints: map[string]string{
			"/api/claude": "Proxy to Claude API",
			"/api/openai": "Proxy to OpenAI API",
			"/health":     "Health check",
		},
		Usage: "POST to /api/claude or /api/openai with appropriate request body",
	})
}
