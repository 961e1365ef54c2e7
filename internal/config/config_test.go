package config

import (
	"testing"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 for non-integer value, got %d", v)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", 0); v != 0 {
		t.Fatalf("expected fallback 0 for invalid duration, got %s", v)
	}
}

func TestLoadSucceedsWithStubProvider(t *testing.T) {
	t.Setenv("TOKKYO_AGENT_PROVIDER", "stub")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("TOKKYO_AGENT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail without OPENAI_API_KEY")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("TOKKYO_AGENT_PROVIDER", "parrot")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with unknown provider")
	}
}
