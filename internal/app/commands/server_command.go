package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"llm-proxy/internal/app"
)

// GetServerCommand возвращает команду для запуска сервера
func GetServerCommand(info BuildInfo) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Start LLM proxy server",
		Description: `Start the proxy that forwards /api/claude and /api/openai
to the vendor APIs with server-held keys.

Examples:
  llm-proxy server --port 8080
  PROXY_API_KEY=secret CLAUDE_API_KEY=sk-ant-... llm-proxy server`,
		Flags:  ConfigFlags(),
		Action: func(c *cli.Context) error { return runServer(c, info) },
	}
}

func runServer(c *cli.Context, info BuildInfo) error {
	ctx, err := NewCommandContext(c)
	if err != nil {
		return err
	}
	defer ctx.Logger.Sync()

	if ctx.Config.Logging.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Конфигурация проверяется здесь, до открытия сокета
	application, err := app.NewApplicationWithConfig(ctx.Config, ctx.Logger, app.WithVersion(info.Version))
	if err != nil {
		ctx.Logger.Error("Refusing to start", zap.Error(err))
		return err
	}

	// Graceful shutdown контекст
	sigCtx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Start()
	}()

	select {
	case <-sigCtx.Done():
		ctx.Logger.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			ctx.Logger.Error("HTTP server failed", zap.Error(err))
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		ctx.Logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}

	ctx.Logger.Info("Proxy stopped")
	return nil
}
