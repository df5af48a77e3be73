package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "MOVEMENT_EVENT_EXCHANGE")
	unsetEnvWithCleanup(t, "BATCH_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "REJECTION_MOVEMENTS_ENABLED")
	unsetEnvWithCleanup(t, "CODE_RETRY_ATTEMPTS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default ServerPort 8080, got %q", cfg.ServerPort)
	}
	if cfg.MovementEventExchange != "validation_service.movements" {
		t.Fatalf("unexpected default exchange %q", cfg.MovementEventExchange)
	}
	if cfg.BatchRateLimitPerMinute != 30 {
		t.Fatalf("expected default batch rate limit 30, got %d", cfg.BatchRateLimitPerMinute)
	}
	if cfg.RejectionMovements {
		t.Fatal("expected rejection movements disabled by default")
	}
	if cfg.CodeRetryAttempts != 3 {
		t.Fatalf("expected default retry attempts 3, got %d", cfg.CodeRetryAttempts)
	}
	if cfg.RedisRateLimitPrefix != "gestionqp:rate_limit" {
		t.Fatalf("unexpected default rate limit prefix %q", cfg.RedisRateLimitPrefix)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_RejectionMovementsToggle(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "REJECTION_MOVEMENTS_ENABLED", "true")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.RejectionMovements {
		t.Fatal("expected rejection movements to be enabled")
	}
}

func TestLoadConfig_CoercesBadNumericValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "BATCH_RATE_LIMIT_PER_MINUTE", "-5")
	setEnvWithCleanup(t, "CODE_RETRY_ATTEMPTS", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BatchRateLimitPerMinute != 0 {
		t.Fatalf("expected negative batch limit coerced to 0, got %d", cfg.BatchRateLimitPerMinute)
	}
	if cfg.CodeRetryAttempts != 3 {
		t.Fatalf("expected zero retry attempts coerced to 3, got %d", cfg.CodeRetryAttempts)
	}
}

func TestLoadConfig_TrimsSecrets(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "AUTH_JWT_SECRET", "  topsecret  ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AuthJWTSecret != "topsecret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.AuthJWTSecret)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
