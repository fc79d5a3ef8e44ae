package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"llm-proxy/internal/config"
)

// CommandContext содержит общий контекст для всех команд
type CommandContext struct {
	Logger *zap.Logger
	Config *config.Config
}

// ConfigFlags - флаги, общие для server и check-config
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "./config/config.yaml",
			Usage:   "Path to YAML config file (optional)",
			EnvVars: []string{"CONFIG_PATH"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Value: ".env",
			Usage: "Path to .env file (optional)",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "Server host (overrides config and HOST)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Server port (overrides config and PORT)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug mode (development logger)",
		},
	}
}

// NewCommandContext загружает конфигурацию и настраивает логгер
func NewCommandContext(c *cli.Context) (*CommandContext, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger, err := createLogger(cfg.Logging.Level, cfg.Logging.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &CommandContext{
		Logger: logger,
		Config: cfg,
	}, nil
}

// createLogger создает логгер
func createLogger(level string, debug bool) (*zap.Logger, error) {
	var logLevel zapcore.Level
	switch level {
	case "debug":
		logLevel = zap.DebugLevel
	case "warn":
		logLevel = zap.WarnLevel
	case "error":
		logLevel = zap.ErrorLevel
	default:
		logLevel = zap.InfoLevel
	}

	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(logLevel)

	return config.Build()
}

// loadConfig загружает конфигурацию; флаги CLI имеют наивысший приоритет
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.Bool("debug") {
		cfg.Logging.Debug = true
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
