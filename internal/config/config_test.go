package config

import (
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// Platform / admin
	t.Setenv("BOT_TOKEN", "123456:secret")
	t.Setenv("BOT_API_BASE", "http://localhost:8081")
	t.Setenv("ADMIN_TOKEN", "hunter2")

	// App
	t.Setenv("DB_PATH", "db.sqlite")

	// Collaborators
	t.Setenv("GIVEAWAY_SERVICE_URL", "http://giveaways:9000")
	t.Setenv("PARTICIPANT_SERVICE_URL", "http://participants:9000")
	t.Setenv("CHANNEL_SERVICE_URL", "http://channels:9000")
	t.Setenv("COLLABORATOR_TIMEOUT", "7s")

	// Delivery
	t.Setenv("BROADCAST_BATCH_SIZE", "10")
	t.Setenv("RETRY_BATCH", "50")
	t.Setenv("RETRY_CRON", "@every 1m")
	t.Setenv("CLEANUP_CRON", "@every 2m")
	t.Setenv("SEND_TIMEOUT", "8s")
	t.Setenv("STATE_TTL", "30m")
	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "5")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Security
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Platform / admin / app
	if cfg.BotToken != "123456:secret" || cfg.BotAPIBase != "http://localhost:8081" ||
		cfg.AdminToken != "hunter2" || cfg.DBPath != "db.sqlite" {
		t.Fatalf("platform fields unexpected: %+v", cfg)
	}

	// Collaborators
	co := cfg.Collaborators
	if co.GiveawayURL != "http://giveaways:9000" ||
		co.ParticipantURL != "http://participants:9000" ||
		co.ChannelURL != "http://channels:9000" ||
		co.Timeout != 7*time.Second {
		t.Fatalf("collaborators unexpected: %+v", co)
	}

	// Delivery
	d := cfg.Delivery
	if d.BatchSize != 10 || d.RetryBatch != 50 ||
		d.RetrySpec != "@every 1m" || d.CleanupSpec != "@every 2m" ||
		d.SendTimeout != 8*time.Second || d.StateTTL != 30*time.Minute ||
		d.CaptchaTries != 5 {
		t.Fatalf("delivery unexpected: %+v", d)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Security
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	setValid := func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "123456:secret")
	}

	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		setValid(t)
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("empty PORT via spaces", func(t *testing.T) {
		setValid(t)
		t.Setenv("PORT", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "PORT must not be empty") {
			t.Fatalf("expected port validation error, got: %v", err)
		}
	})
	t.Run("non-positive timeouts", func(t *testing.T) {
		setValid(t)
		t.Setenv("READ_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "timeouts must be positive") {
			t.Fatalf("expected timeouts validation error, got: %v", err)
		}
	})
	t.Run("missing BOT_TOKEN", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "BOT_TOKEN") {
			t.Fatalf("expected bot token validation error, got: %v", err)
		}
	})
	t.Run("empty DB_PATH", func(t *testing.T) {
		setValid(t)
		t.Setenv("DB_PATH", "  ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH") {
			t.Fatalf("expected db path validation error, got: %v", err)
		}
	})
	t.Run("batch size below one", func(t *testing.T) {
		setValid(t)
		t.Setenv("BROADCAST_BATCH_SIZE", "0")
		if _, err := Load(); err == nil || !containsErr(err, "BROADCAST_BATCH_SIZE") {
			t.Fatalf("expected batch size validation error, got: %v", err)
		}
	})
	t.Run("captcha attempts below one", func(t *testing.T) {
		setValid(t)
		t.Setenv("CAPTCHA_MAX_ATTEMPTS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "CAPTCHA_MAX_ATTEMPTS") {
			t.Fatalf("expected captcha attempts validation error, got: %v", err)
		}
	})
	t.Run("sample ratio out of range", func(t *testing.T) {
		setValid(t)
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected sample ratio validation error, got: %v", err)
		}
	})
}

// --- GinMode normalization ---

func TestLoad_GinModeAccepted(t *testing.T) {
	for _, mode := range []string{"debug", "release", "test"} {
		t.Run(mode, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "123456:secret")
			t.Setenv("GIN_MODE", mode)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.GinMode != mode {
				t.Fatalf("GinMode = %q; want %q", cfg.GinMode, mode)
			}
		})
	}
}

func containsErr(err error, sub string) bool {
	return err != nil && strings.Contains(err.Error(), sub)
}
