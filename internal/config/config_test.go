package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port: want 8080, got %d", cfg.Port)
	}
	if cfg.Compliance.ErrorWeight != 20 {
		t.Errorf("ErrorWeight: want 20, got %d", cfg.Compliance.ErrorWeight)
	}
	if cfg.Compliance.WarningWeight != 5 {
		t.Errorf("WarningWeight: want 5, got %d", cfg.Compliance.WarningWeight)
	}
	if cfg.Compliance.InfoWeight != 0 {
		t.Errorf("InfoWeight: want 0, got %d", cfg.Compliance.InfoWeight)
	}
	if !cfg.Compliance.RevalidateEnabled {
		t.Error("RevalidateEnabled: want true by default")
	}
	if cfg.Compliance.RevalidateWorkers != 4 {
		t.Errorf("RevalidateWorkers: want 4, got %d", cfg.Compliance.RevalidateWorkers)
	}
	if cfg.Compliance.RevalidateTimeout != 10*time.Minute {
		t.Errorf("RevalidateTimeout: want 10m, got %s", cfg.Compliance.RevalidateTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COMPLIANCE_ERROR_WEIGHT", "25")
	t.Setenv("REVALIDATE_ENABLED", "false")
	t.Setenv("REVALIDATE_INTERVAL", "6h")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port: want 9090, got %d", cfg.Port)
	}
	if cfg.Compliance.ErrorWeight != 25 {
		t.Errorf("ErrorWeight: want 25, got %d", cfg.Compliance.ErrorWeight)
	}
	if cfg.Compliance.RevalidateEnabled {
		t.Error("RevalidateEnabled: want false")
	}
	if cfg.Compliance.RevalidateInterval != 6*time.Hour {
		t.Errorf("RevalidateInterval: want 6h, got %s", cfg.Compliance.RevalidateInterval)
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Errorf("RateLimitPerSecond: want 2.5, got %v", cfg.RateLimitPerSecond)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("REVALIDATE_ENABLED", "maybe")
	t.Setenv("REVALIDATE_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port: want fallback 8080, got %d", cfg.Port)
	}
	if !cfg.Compliance.RevalidateEnabled {
		t.Error("RevalidateEnabled: want fallback true")
	}
	if cfg.Compliance.RevalidateTimeout != 10*time.Minute {
		t.Errorf("RevalidateTimeout: want fallback 10m, got %s", cfg.Compliance.RevalidateTimeout)
	}
}
