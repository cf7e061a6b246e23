package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const (
	envPrefix     = "COLLECTOR_"
	configFileEnv = "COLLECTOR_CONFIG_FILE"
)

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Edge      EdgeConfig      `koanf:"edge"`
	Transport TransportConfig `koanf:"transport"`
	Retry     RetryConfig     `koanf:"retry"`
	Cookies   CookieConfig    `koanf:"cookies"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Logger    LoggerConfig    `koanf:"logger"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// EdgeConfig addresses the collection endpoint.
type EdgeConfig struct {
	Scheme                   string `koanf:"scheme" validate:"required,oneof=http https"`
	Domain                   string `koanf:"domain" validate:"required"`
	BasePath                 string `koanf:"base_path" validate:"required"`
	APIVersion               string `koanf:"api_version" validate:"required"`
	ConfigID                 string `koanf:"config_id" validate:"required"`
	OrgID                    string `koanf:"org_id" validate:"required"`
	CookieDomain             string `koanf:"cookie_domain"`
	IDThirdPartyDomain       string `koanf:"id_third_party_domain" validate:"required"`
	ThirdPartyCookiesEnabled bool   `koanf:"third_party_cookies_enabled"`
}

type TransportConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type CookieConfig struct {
	Backend       string        `koanf:"backend" validate:"required,oneof=memory postgres sqlite"`
	SQLitePath    string        `koanf:"sqlite_path"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RateLimitRPS   float64       `koanf:"rate_limit_rps"`
	RateLimitBurst int           `koanf:"rate_limit_burst"`
	// peers allowed to set X-Forwarded-For, as CIDRs or addresses
	TrustedProxies []string `koanf:"trusted_proxies" validate:"omitempty,dive,cidr|ip"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":                      "development",
		"edge.scheme":                      "https",
		"edge.base_path":                   "ee",
		"edge.api_version":                 "v1",
		"edge.id_third_party_domain":       "adobedc.demdex.net",
		"edge.third_party_cookies_enabled": true,
		"transport.timeout":                "10s",
		"retry.base_delay":                 "200ms",
		"retry.max_retries":                3,
		"cookies.backend":                  "memory",
		"cookies.sqlite_path":              "collector.db",
		"cookies.sweep_interval":           "1m",
		"database.ssl_mode":                "disable",
		"database.max_open_conns":          10,
		"database.max_idle_conns":          2,
		"database.conn_max_lifetime":       "1h",
		"database.conn_max_idle_time":      "30m",
		"server.port":                      "8080",
		"server.read_timeout":              "10s",
		"server.write_timeout":             "15s",
		"server.idle_timeout":              "60s",
		"server.rate_limit_rps":            50,
		"server.rate_limit_burst":          100,
		"logger.level":                     "info",
		"telemetry.service_name":           "edge-collector",
	}
}

// LoadConfig layers defaults, an optional YAML file and COLLECTOR_*
// environment variables, then validates the result.
func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			logger.Error("failed to load config file", "path", path, "error", err)
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if mainConfig.Cookies.Backend == "postgres" {
		if err := mainConfig.Database.requireForPostgres(); err != nil {
			logger.Error("database config validation failed", "error", err)
			return nil, err
		}
	}

	if mainConfig.Edge.CookieDomain == "" {
		mainConfig.Edge.CookieDomain = apexDomain(mainConfig.Edge.Domain)
	}

	return mainConfig, nil
}

// NewLogger builds the process logger from the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// apexDomain keeps the last two labels of host.
func apexDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
