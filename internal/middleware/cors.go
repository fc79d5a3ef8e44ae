package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"llm-proxy/internal/config"
)

// CORS ограничивает кросс-доменные запросы списком origin из конфигурации.
// Preflight обрабатывается здесь и до роутера не доходит.
func CORS(cfg config.CORSConfig, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: false,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler(next)
}
