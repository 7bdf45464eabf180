package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Backend       BackendConfig
	App           AppConfig
	Session       SessionConfig
	Stream        StreamConfig
	Presence      PresenceConfig
	Notifications NotificationsConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Retry         RetryConfig
	Breaker       BreakerConfig
	Observability ObservabilityConfig
	Prefs         PrefsConfig
}

type BackendConfig struct {
	Endpoint     string
	Project      string
	Database     string
	AvatarBucket string
	Timeout      time.Duration
}

type AppConfig struct {
	BaseURL                string
	WorkspaceID            string
	HistoryPages           int
	MemberFetchConcurrency int
}

type SessionConfig struct {
	Cookie   string
	JWT      string
	UserID   string
	UserName string
}

type StreamConfig struct {
	ReinitGrace        time.Duration
	ChannelCreateDelay time.Duration
	PingInterval       time.Duration
	HandshakeTimeout   time.Duration
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration
	FreshnessWindow   time.Duration
}

type NotificationsConfig struct {
	Limit int
}

type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	EnableFile bool
	FilePath   string
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	Enabled   bool
	MemberTTL time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

type BreakerConfig struct {
	MaxFailures int
	Timeout     time.Duration
}

type ObservabilityConfig struct {
	DebugPort      int
	AllowedOrigins []string
}

type PrefsConfig struct {
	Path string
}

func Load() (*Config, error) {
	cfg := &Config{
		Backend: BackendConfig{
			Endpoint:     getEnv("BACKEND_ENDPOINT", "http://localhost/v1"),
			Project:      getEnv("BACKEND_PROJECT", ""),
			Database:     getEnv("BACKEND_DATABASE", "main"),
			AvatarBucket: getEnv("BACKEND_AVATAR_BUCKET", "avatars"),
			Timeout:      getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		App: AppConfig{
			BaseURL:                getEnv("APP_BASE_URL", "http://localhost:5173"),
			WorkspaceID:            getEnv("APP_WORKSPACE_ID", ""),
			HistoryPages:           getEnvInt("APP_HISTORY_PAGES", 2),
			MemberFetchConcurrency: getEnvInt("APP_MEMBER_FETCH_CONCURRENCY", 8),
		},
		Session: SessionConfig{
			Cookie:   getEnv("SESSION_COOKIE", ""),
			JWT:      getEnv("SESSION_JWT", ""),
			UserID:   getEnv("SESSION_USER_ID", ""),
			UserName: getEnv("SESSION_USER_NAME", ""),
		},
		Stream: StreamConfig{
			ReinitGrace:        getEnvDuration("STREAM_REINIT_GRACE", 100*time.Millisecond),
			ChannelCreateDelay: getEnvDuration("STREAM_CHANNEL_CREATE_DELAY", 500*time.Millisecond),
			PingInterval:       getEnvDuration("STREAM_PING_INTERVAL", 20*time.Second),
			HandshakeTimeout:   getEnvDuration("STREAM_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		Presence: PresenceConfig{
			HeartbeatInterval: getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 10*time.Second),
			FreshnessWindow:   getEnvDuration("PRESENCE_FRESHNESS_WINDOW", 30*time.Second),
		},
		Notifications: NotificationsConfig{
			Limit: getEnvInt("NOTIFICATIONS_LIMIT", 50),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			EnableFile: getEnvBool("LOG_ENABLE_FILE", false),
			FilePath:   getEnv("LOG_FILE_PATH", "./chattie.log"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnvInt("REDIS_PORT", 6379),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			MemberTTL: getEnvDuration("REDIS_MEMBER_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_REQUESTS_PER_SECOND", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialWait: getEnvDuration("RETRY_INITIAL_WAIT", 100*time.Millisecond),
			MaxWait:     getEnvDuration("RETRY_MAX_WAIT", 2*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
			Timeout:     getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			DebugPort:      getEnvInt("DEBUG_PORT", 9464),
			AllowedOrigins: getEnvList("DEBUG_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Prefs: PrefsConfig{
			Path: getEnv("PREFS_PATH", "./chattie-prefs.yaml"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Backend.Endpoint == "" {
		return fmt.Errorf("BACKEND_ENDPOINT is required")
	}
	if c.Backend.Database == "" {
		return fmt.Errorf("BACKEND_DATABASE is required")
	}
	if c.Notifications.Limit <= 0 {
		return fmt.Errorf("NOTIFICATIONS_LIMIT must be positive, got %d", c.Notifications.Limit)
	}
	if c.Presence.HeartbeatInterval <= 0 {
		return fmt.Errorf("PRESENCE_HEARTBEAT_INTERVAL must be positive")
	}
	if c.App.MemberFetchConcurrency <= 0 {
		c.App.MemberFetchConcurrency = 1
	}
	if c.App.HistoryPages <= 0 {
		c.App.HistoryPages = 1
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
