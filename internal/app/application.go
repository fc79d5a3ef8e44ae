package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"llm-proxy/internal/config"
	"llm-proxy/internal/handler"
	"llm-proxy/internal/metrics"
	"llm-proxy/internal/upstream"
)

// Application - основное приложение
type Application struct {
	config        *config.Config
	logger        *zap.Logger
	router        http.Handler
	server        *http.Server
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
}

// Option настраивает приложение при создании
type Option func(*options)

type options struct {
	httpClient *http.Client
	version    string
}

// WithHTTPClient подменяет клиент для исходящих вызовов (тесты, прокси)
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithVersion задает версию для GET /
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// NewApplicationWithConfig создает новое приложение с конфигурацией.
// Невалидная конфигурация возвращает ошибку до открытия сокета.
func NewApplicationWithConfig(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.New()
	client := upstream.NewClient(o.httpClient, cfg.Upstream.Timeout, logger)

	// Создаем хендлеры
	systemHandler := handler.NewSystemHandler(o.version)
	proxyHandler := handler.NewProxyHandler(cfg, client, logger, m)

	// Создаем роутер
	router, err := NewRouter(cfg, systemHandler, proxyHandler, logger, m)
	if err != nil {
		return nil, err
	}

	// Настраиваем HTTP сервер
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.EffectiveWriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	application := &Application{
		config:  cfg,
		logger:  logger,
		router:  router,
		server:  server,
		metrics: m,
	}
	if cfg.Metrics.Addr != "" {
		application.metricsServer = metrics.NewServer(cfg.Metrics.Addr, m, logger)
	}

	return application, nil
}

// Start запускает приложение и блокируется до Shutdown.
// http.ErrServerClosed ошибкой не считается.
func (app *Application) Start() error {
	app.logger.Info("LLM Proxy running",
		zap.String("address", app.server.Addr),
		zap.String("environment", app.config.Environment),
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", app.config.Port)),
		zap.Bool("auth_required", app.config.Auth.Required),
		zap.Bool("claude_configured", app.config.Vendors.Claude.APIKey != ""),
		zap.Bool("openai_configured", app.config.Vendors.OpenAI.APIKey != ""))

	if app.metricsServer != nil {
		go func() {
			if err := app.metricsServer.Start(); err != nil {
				app.logger.Error("Metrics listener failed", zap.Error(err))
			}
		}()
	}

	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает приложение, дожидаясь активных запросов
func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("Stopping application")

	var errs []error
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics listener: %w", err))
		}
	}
	if err := app.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
		if closeErr := app.server.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	return errors.Join(errs...)
}

// GetRouter возвращает роутер
func (app *Application) GetRouter() http.Handler {
	return app.router
}

// GetConfig возвращает конфигурацию
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Metrics возвращает коллекторы приложения
func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}
