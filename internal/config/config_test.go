package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Set required JWT_SECRET
	os.Setenv("JWT_SECRET", "test-secret-key")
	defer os.Unsetenv("JWT_SECRET")

	// Clear any other env vars that might interfere
	envVars := []string{"SERVER_ADDR", "SERVER_PORT", "DB_HOST", "DB_PORT", "DRY_AFTER", "TICK_INTERVAL", "RATE_LIMIT_ENABLED"}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.DryAfter != 3*time.Hour {
		t.Errorf("DryAfter = %v, want %v", cfg.DryAfter, 3*time.Hour)
	}
	if cfg.TickInterval != time.Minute {
		t.Errorf("TickInterval = %v, want %v", cfg.TickInterval, time.Minute)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 15*time.Minute)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want %v", cfg.RefreshTokenTTL, 7*24*time.Hour)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled should default to true")
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "custom-secret")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("DRY_AFTER", "90m")
	os.Setenv("TICK_INTERVAL", "10s")
	defer func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("DRY_AFTER")
		os.Unsetenv("TICK_INTERVAL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.DryAfter != 90*time.Minute {
		t.Errorf("DryAfter = %v, want %v", cfg.DryAfter, 90*time.Minute)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Errorf("TickInterval = %v, want %v", cfg.TickInterval, 10*time.Second)
	}
}

func TestHasSMTP(t *testing.T) {
	cfg := &Config{}
	if cfg.HasSMTP() {
		t.Error("HasSMTP should be false with no SMTP config")
	}
	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPFrom = "noreply@example.com"
	if !cfg.HasSMTP() {
		t.Error("HasSMTP should be true with host and from set")
	}
}
