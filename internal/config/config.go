package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingAccessKey - шлюз доступа включен, но секрет не задан
	ErrMissingAccessKey = errors.New("access key is required when auth is enabled")
	// ErrInvalidPort - порт вне диапазона 1..65535
	ErrInvalidPort = errors.New("invalid port")
)

// Переменные окружения
const (
	envHost            = "HOST"
	envPort            = "PORT"
	envEnvironment     = "ENVIRONMENT"
	envClaudeKey       = "CLAUDE_API_KEY"
	envOpenAIKey       = "OPENAI_API_KEY"
	envAccessKey       = "PROXY_API_KEY"
	envRequireKey      = "REQUIRE_API_KEY"
	envLogLevel        = "LOG_LEVEL"
	envUpstreamTimeout = "UPSTREAM_TIMEOUT"
	envAllowedOrigins  = "ALLOWED_ORIGINS"
	envMetricsAddr     = "METRICS_ADDR"
	envTrustedProxies  = "TRUSTED_PROXIES"
)

// Config представляет конфигурацию прокси.
// Создается один раз при старте и после Validate не изменяется.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`

	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Vendors  VendorsConfig  `yaml:"vendors"`
	Upstream UpstreamConfig `yaml:"upstream"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// writeTimeoutMargin - запас на чтение тела запроса и запись ответа
// сверх дедлайна вызова вендора
const writeTimeoutMargin = 30 * time.Second

// ServerConfig - таймауты HTTP сервера
type ServerConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies - адреса или CIDR, которым доверяется X-Forwarded-For.
	// Пусто: client_ip берется из адреса соединения.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// AuthConfig - проверка общего секрета для /api/*
type AuthConfig struct {
	Required     bool   `yaml:"required"`
	AccessKey    string `yaml:"access_key"`
	Header       string `yaml:"header"`
	ConstantTime bool   `yaml:"constant_time"`
}

// VendorsConfig - ключи вендоров, которые хранятся только на сервере
type VendorsConfig struct {
	Claude VendorConfig `yaml:"claude"`
	OpenAI VendorConfig `yaml:"openai"`
}

type VendorConfig struct {
	APIKey string `yaml:"api_key"`
}

// UpstreamConfig - параметры исходящих запросов
type UpstreamConfig struct {
	// Timeout 0 отключает дедлайн
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// MetricsConfig - отдельный листенер для /metrics. Пустой Addr отключает его.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// GetDefaultConfig возвращает конфигурацию по умолчанию
func GetDefaultConfig() *Config {
	return &Config{
		Host:        "0.0.0.0",
		Port:        3000,
		Environment: "development",
		Server: ServerConfig{
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      150 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Auth: AuthConfig{
			Required: true,
			Header:   "X-API-Key",
		},
		Upstream: UpstreamConfig{
			Timeout:      120 * time.Second,
			MaxBodyBytes: 10 * 1024 * 1024, // 10MB
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:4173",
				"http://localhost:5173",
				"https://satlingo.web.app",
				"https://satlingo.firebaseapp.com",
			},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig загружает конфигурацию из YAML файла поверх значений по умолчанию
func LoadConfig(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Load собирает конфигурацию: defaults -> YAML (если указан) -> .env -> окружение.
// Отсутствующий .env файл не считается ошибкой.
func Load(path, envFile string) (*Config, error) {
	cfg := GetDefaultConfig()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, os.ErrNotExist):
			// файл конфигурации опционален
		default:
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv переопределяет значения из переменных окружения.
// lookup передается явно, чтобы тесты не трогали окружение процесса.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		val, ok := lookup(key)
		if !ok {
			return "", false
		}
		val = strings.TrimSpace(val)
		return val, val != ""
	}

	if v, ok := get(envHost); ok {
		c.Host = v
	}
	if v, ok := get(envPort); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidPort, envPort, v)
		}
		c.Port = p
	}
	if v, ok := get(envEnvironment); ok {
		c.Environment = v
	}
	if v, ok := get(envClaudeKey); ok {
		c.Vendors.Claude.APIKey = v
	}
	if v, ok := get(envOpenAIKey); ok {
		c.Vendors.OpenAI.APIKey = v
	}
	if v, ok := get(envAccessKey); ok {
		c.Auth.AccessKey = v
	}
	if v, ok := get(envRequireKey); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", envRequireKey, v, err)
		}
		c.Auth.Required = b
	}
	if v, ok := get(envLogLevel); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get(envUpstreamTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", envUpstreamTimeout, v, err)
		}
		c.Upstream.Timeout = d
	}
	if v, ok := get(envAllowedOrigins); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v, ok := get(envMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	if v, ok := get(envTrustedProxies); ok {
		c.Server.TrustedProxies = splitList(v)
	}

	return nil
}

// Validate проверяет инварианты, без которых процесс не должен стартовать
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Auth.Required && c.Auth.AccessKey == "" {
		return fmt.Errorf("%w (set %s)", ErrMissingAccessKey, envAccessKey)
	}
	if c.Auth.Header == "" {
		return errors.New("auth header name must not be empty")
	}
	if c.Upstream.Timeout < 0 {
		return errors.New("upstream timeout must not be negative")
	}
	if c.Upstream.MaxBodyBytes <= 0 {
		return errors.New("upstream max body bytes must be positive")
	}
	if c.Server.WriteTimeout < 0 {
		return errors.New("server write timeout must not be negative")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return fmt.Errorf("invalid trusted proxy %q", p)
		}
	}
	return nil
}

// EffectiveWriteTimeout возвращает WriteTimeout для http.Server.
// Он не может оборвать ответ раньше дедлайна вендора: при Upstream.Timeout 0
// таймаут записи тоже отключается, иначе он не меньше Upstream.Timeout + запас.
func (c *Config) EffectiveWriteTimeout() time.Duration {
	if c.Upstream.Timeout == 0 || c.Server.WriteTimeout == 0 {
		return 0
	}
	if floor := c.Upstream.Timeout + writeTimeoutMargin; c.Server.WriteTimeout < floor {
		return floor
	}
	return c.Server.WriteTimeout
}

// Addr возвращает адрес для http.Server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redacted возвращает копию без секретов, пригодную для вывода в лог
func (c *Config) Redacted() Config {
	out := *c
	out.Auth.AccessKey = mask(c.Auth.AccessKey)
	out.Vendors.Claude.APIKey = mask(c.Vendors.Claude.APIKey)
	out.Vendors.OpenAI.APIKey = mask(c.Vendors.OpenAI.APIKey)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
