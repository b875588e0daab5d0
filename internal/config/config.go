// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database path, collaborator service URLs, delivery tuning, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CollaboratorConfig holds base URLs and the shared timeout for the sibling
// services the bot talks to.
type CollaboratorConfig struct {
	GiveawayURL    string        // GIVEAWAY_SERVICE_URL
	ParticipantURL string        // PARTICIPANT_SERVICE_URL
	ChannelURL     string        // CHANNEL_SERVICE_URL
	Timeout        time.Duration // COLLABORATOR_TIMEOUT
}

// DeliveryConfig tunes the outbound delivery pipeline.
type DeliveryConfig struct {
	BatchSize    int           // BROADCAST_BATCH_SIZE, recipients per paced batch
	RetryBatch   int           // RETRY_BATCH, rows per retry sweep
	RetrySpec    string        // RETRY_CRON, cron spec for the retry sweep
	CleanupSpec  string        // CLEANUP_CRON, cron spec for session cleanup
	SendTimeout  time.Duration // SEND_TIMEOUT, per sendMessage call
	StateTTL     time.Duration // STATE_TTL, interaction session lifetime
	CaptchaTries int           // CAPTCHA_MAX_ATTEMPTS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Platform
	BotToken   string // BOT_TOKEN, also the secret webhook path segment
	BotAPIBase string // BOT_API_BASE, override for tests/local emulators

	// Admin API
	AdminToken string // ADMIN_TOKEN, shared secret; empty disables the admin API

	// App
	DBPath string // SQLite path

	Collaborators CollaboratorConfig
	Delivery      DeliveryConfig

	// Rate limiting (admin API only)
	RateRPS   float64
	RateBurst int

	Security SecurityConfig
	OTEL     OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Platform
		BotToken:   getenv("BOT_TOKEN", ""),
		BotAPIBase: getenv("BOT_API_BASE", ""),

		// Admin API
		AdminToken: getenv("ADMIN_TOKEN", ""),

		// App
		DBPath: getenv("DB_PATH", "bot.db"),

		Collaborators: CollaboratorConfig{
			GiveawayURL:    getenv("GIVEAWAY_SERVICE_URL", "http://giveaway-service:8080"),
			ParticipantURL: getenv("PARTICIPANT_SERVICE_URL", "http://participant-service:8080"),
			ChannelURL:     getenv("CHANNEL_SERVICE_URL", "http://channel-service:8080"),
			Timeout:        getdur("COLLABORATOR_TIMEOUT", 5*time.Second),
		},

		Delivery: DeliveryConfig{
			BatchSize:    getint("BROADCAST_BATCH_SIZE", 30),
			RetryBatch:   getint("RETRY_BATCH", 100),
			RetrySpec:    getenv("RETRY_CRON", "@every 5m"),
			CleanupSpec:  getenv("CLEANUP_CRON", "@every 10m"),
			SendTimeout:  getdur("SEND_TIMEOUT", 10*time.Second),
			StateTTL:     getdur("STATE_TTL", time.Hour),
			CaptchaTries: getint("CAPTCHA_MAX_ATTEMPTS", 3),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "bot-service"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Collaborators.Timeout <= 0 {
		return cfg, errors.New("COLLABORATOR_TIMEOUT must be > 0")
	}
	if cfg.Delivery.BatchSize < 1 {
		return cfg, errors.New("BROADCAST_BATCH_SIZE must be >= 1")
	}
	if cfg.Delivery.RetryBatch < 0 {
		return cfg, errors.New("RETRY_BATCH must be >= 0")
	}
	if cfg.Delivery.StateTTL <= 0 {
		return cfg, errors.New("STATE_TTL must be > 0")
	}
	if cfg.Delivery.CaptchaTries < 1 {
		return cfg, errors.New("CAPTCHA_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
