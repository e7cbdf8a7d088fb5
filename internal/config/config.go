package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
)

// Config carries everything the watcher reads from the environment. A
// .env file in the working directory is honored when present.
type Config struct {
	LogPath    string
	FormatFile string

	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookRetries int

	PrimaryPool        accesslog.Pool
	ErrorRateThreshold float64
	WindowSize         int
	AlertCooldown      time.Duration
	Maintenance        bool

	PollInterval   time.Duration
	LogOpenRetries int

	HTTPAddr   string
	JWTSecret  string
	NATSURL    string
	HistoryDSN string

	LogLevel slog.Level
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	threshold, err := strconv.ParseFloat(getEnv("ERROR_RATE_THRESHOLD", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ERROR_RATE_THRESHOLD: %w", err)
	}

	windowSize, err := strconv.Atoi(getEnv("WINDOW_SIZE", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_SIZE: %w", err)
	}

	cooldown, err := parseCooldown(getEnv("ALERT_COOLDOWN", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_COOLDOWN: %w", err)
	}

	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "100ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	openRetries, err := strconv.Atoi(getEnv("LOG_OPEN_RETRIES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_OPEN_RETRIES: %w", err)
	}

	webhookTimeout, err := time.ParseDuration(getEnv("WEBHOOK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	webhookRetries, err := strconv.Atoi(getEnv("WEBHOOK_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_RETRIES: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		LogPath:    getEnv("NGINX_LOG_PATH", "/var/log/nginx/access.log"),
		FormatFile: getEnv("FORMAT_FILE", ""),

		WebhookURL:     getEnv("SLACK_WEBHOOK_URL", ""),
		WebhookTimeout: webhookTimeout,
		WebhookRetries: webhookRetries,

		ErrorRateThreshold: threshold,
		WindowSize:         windowSize,
		AlertCooldown:      cooldown,
		Maintenance:        getEnvBool("MAINTENANCE_MODE", false),

		PollInterval:   pollInterval,
		LogOpenRetries: openRetries,

		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		NATSURL:    getEnv("NATS_URL", ""),
		HistoryDSN: getEnv("HISTORY_DSN", ""),

		LogLevel: level,
	}

	primary := getEnv("PRIMARY_POOL", "blue")
	if primary != "blue" && primary != "green" {
		return nil, fmt.Errorf("PRIMARY_POOL must be blue or green, got %q", primary)
	}
	cfg.PrimaryPool = accesslog.Pool(primary)

	if cfg.LogPath == "" {
		return nil, fmt.Errorf("NGINX_LOG_PATH must not be empty")
	}
	if cfg.ErrorRateThreshold <= 0 || cfg.ErrorRateThreshold > 1 {
		return nil, fmt.Errorf("ERROR_RATE_THRESHOLD must be in (0, 1], got %g", cfg.ErrorRateThreshold)
	}
	if cfg.WindowSize < 1 {
		return nil, fmt.Errorf("WINDOW_SIZE must be at least 1, got %d", cfg.WindowSize)
	}
	if cfg.AlertCooldown < 0 {
		return nil, fmt.Errorf("ALERT_COOLDOWN must not be negative, got %s", cfg.AlertCooldown)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.LogOpenRetries < 1 {
		return nil, fmt.Errorf("LOG_OPEN_RETRIES must be at least 1, got %d", cfg.LogOpenRetries)
	}
	if cfg.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", cfg.WebhookTimeout)
	}
	if cfg.WebhookRetries < 1 {
		return nil, fmt.Errorf("WEBHOOK_RETRIES must be at least 1, got %d", cfg.WebhookRetries)
	}

	return cfg, nil
}

// parseCooldown accepts a Go duration string or a bare number of seconds,
// so values like "300" keep working alongside "5m".
func parseCooldown(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor whole seconds", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
