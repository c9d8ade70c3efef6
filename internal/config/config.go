package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Orders   OrdersConfig
	Events   EventsConfig
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr     string
	ShopName string
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	UseMock         bool
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level string
}

// AuthConfig groups browser session and API token settings.
type AuthConfig struct {
	Session SessionConfig
	Token   TokenConfig
}

// SessionConfig controls the cookie session used by browser clients.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// TokenConfig holds the signing material for bearer tokens.
type TokenConfig struct {
	Secret   string
	Lifetime time.Duration
}

// OrdersConfig bounds how the order engine retries and waits on locks.
type OrdersConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	LockTimeout  time.Duration
}

// EventsConfig configures the stock event publisher. An empty RedisURL disables publishing.
type EventsConfig struct {
	RedisURL string
	Channel  string
}

// Load inspects the environment and builds a Config value.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Server = ServerConfig{
		Addr: firstNonEmpty(
			os.Getenv("SERVER_ADDR"),
			os.Getenv("ADDR"),
			":8080",
		),
		ShopName: firstNonEmpty(os.Getenv("SHOP_NAME"), "Café"),
	}

	cfg.Database = DatabaseConfig{
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), 0),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), 0),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), 0),
		ConnMaxIdleTime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), 0),
		UseMock:         parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), false),
	}

	cfg.Logging = LoggingConfig{
		Level: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
	}

	cfg.Auth = AuthConfig{
		Session: SessionConfig{
			Lifetime:     parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), 12*time.Hour),
			CookieName:   firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), "cafepos_session"),
			CookieDomain: strings.TrimSpace(os.Getenv("SESSION_COOKIE_DOMAIN")),
			CookieSecure: parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), true),
		},
		Token: TokenConfig{
			Secret:   strings.TrimSpace(os.Getenv("AUTH_TOKEN_SECRET")),
			Lifetime: parseDurationWithDefault(os.Getenv("AUTH_TOKEN_TTL"), 12*time.Hour),
		},
	}

	cfg.Orders = OrdersConfig{
		MaxAttempts:  parseIntWithDefault(os.Getenv("ORDER_MAX_ATTEMPTS"), 3),
		RetryBackoff: parseDurationWithDefault(os.Getenv("ORDER_RETRY_BACKOFF"), 25*time.Millisecond),
		LockTimeout:  parseDurationWithDefault(os.Getenv("ORDER_LOCK_TIMEOUT"), 5*time.Second),
	}

	cfg.Events = EventsConfig{
		RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		Channel:  firstNonEmpty(os.Getenv("EVENTS_CHANNEL"), "stock:update"),
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}
	if cfg.Orders.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("order max attempts must be at least 1")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}
