package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SESSION_BACKEND", "SESSION_TTL", "ADMIN_NUMBERS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_BACKEND", "sqlite")
	t.Setenv("SESSION_TTL", "72h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ADMIN_NUMBERS", "+263 77 000 0000, ,263771111111")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 72*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if len(cfg.AdminNumbers) != 2 {
		t.Errorf("AdminNumbers = %q", cfg.AdminNumbers)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_BACKEND", "memcached")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error")
	}
}

func TestGetEnvDurationAcceptsHours(t *testing.T) {
	t.Setenv("SUNDAYBOT_TEST_TTL", "48")
	if got := getEnvDuration("SUNDAYBOT_TEST_TTL", time.Hour); got != 48*time.Hour {
		t.Errorf("got %v", got)
	}
	t.Setenv("SUNDAYBOT_TEST_TTL", "soon")
	if got := getEnvDuration("SUNDAYBOT_TEST_TTL", time.Hour); got != time.Hour {
		t.Errorf("got %v", got)
	}
}

func TestWhatsAppConfigured(t *testing.T) {
	c := &Config{}
	if c.WhatsAppConfigured() {
		t.Error("empty config reported as configured")
	}
	c.WhatsApp.Token, c.WhatsApp.PhoneNumberID = "token", "123"
	if !c.WhatsAppConfigured() {
		t.Error("credentials ignored")
	}
}
