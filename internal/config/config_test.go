package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"https://a.test", []string{"https://a.test"}},
		{" https://a.test , https://b.test ,", []string{"https://a.test", "https://b.test"}},
		{",,", []string{}},
	}
	for _, tt := range tests {
		if got := parseOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseOrigins(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "notanumber")
	t.Setenv("CFG_TEST_FLOAT", "2.5")

	if got := getEnvInt("CFG_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt invalid = %d, want fallback 7", got)
	}
	if got := getEnvInt("CFG_TEST_MISSING", 3); got != 3 {
		t.Errorf("getEnvInt missing = %d, want 3", got)
	}
	if got := getEnvFloat("CFG_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloat = %v, want 2.5", got)
	}
	if got := getEnv("CFG_TEST_MISSING", "x"); got != "x" {
		t.Errorf("getEnv missing = %q, want x", got)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("ATTEMPT_CACHE_TTL_SECONDS", "30")
	t.Setenv("RATE_LIMIT_RPS", "5.5")
	t.Setenv("MAX_BATCH_SIZE", "10")
	t.Setenv("ALLOWED_ORIGINS", "https://cbt.test")

	cfg := Load()

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.JWTExpiry != 2*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.AttemptCacheTTL != 30*time.Second {
		t.Errorf("AttemptCacheTTL = %v", cfg.AttemptCacheTTL)
	}
	if cfg.RateLimitRPS != 5.5 || cfg.MaxBatchSize != 10 {
		t.Errorf("RateLimitRPS = %v MaxBatchSize = %d", cfg.RateLimitRPS, cfg.MaxBatchSize)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://cbt.test"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}
