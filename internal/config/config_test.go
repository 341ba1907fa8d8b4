package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_PROVIDER", "API_KEY", "GEMINI_API_KEY", "AI_REQUEST_TIMEOUT", "SESSION_IDLE_TTL", "CONTACT_RESET_AFTER", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Fatalf("expected gemini provider, got %s", cfg.AI.Provider)
	}
	if cfg.AI.Model() != "gemini-3-flash-preview" {
		t.Fatalf("unexpected model: %s", cfg.AI.Model())
	}
	if cfg.AI.HasCredential() {
		t.Fatal("expected no credential")
	}
	if cfg.AI.RequestTimeout != 0 {
		t.Fatalf("expected no request timeout, got %s", cfg.AI.RequestTimeout)
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected idle ttl: %s", cfg.Session.IdleTTL)
	}
	if cfg.Contact.ResetAfter != 5*time.Second {
		t.Fatalf("unexpected reset: %s", cfg.Contact.ResetAfter)
	}
}

func TestLoadGeminiKeyFromLegacyVariable(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Gemini.APIKey != "legacy-key" {
		t.Fatalf("expected legacy key, got %q", cfg.AI.Gemini.APIKey)
	}
	if !cfg.AI.HasCredential() {
		t.Fatal("expected credential")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "llama")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("X_DURATION", "45")
	got, err := parseDurationEnv("X_DURATION", time.Second)
	if err != nil || got != 45*time.Second {
		t.Fatalf("seconds form: got %s err %v", got, err)
	}

	t.Setenv("X_DURATION", "250ms")
	got, err = parseDurationEnv("X_DURATION", time.Second)
	if err != nil || got != 250*time.Millisecond {
		t.Fatalf("duration form: got %s err %v", got, err)
	}

	t.Setenv("X_DURATION", "-1s")
	if _, err := parseDurationEnv("X_DURATION", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadServerConfigHostPort(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://agromic.in, http://localhost:3000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}
