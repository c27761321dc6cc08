package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESS_SECRET", "test-access-secret-0123456789abcdef")
	t.Setenv("REFRESH_SECRET", "test-refresh-secret-0123456789abcdef")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("VECTOR_PROVIDER", "chromem")
}

func TestLoadConfigLLMRateDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLMRequestsPerMinute != 9 {
		t.Errorf("expected default 9 requests per minute, got %v", cfg.LLMRequestsPerMinute)
	}
	if cfg.LLMBurst != 2 {
		t.Errorf("expected default burst 2, got %d", cfg.LLMBurst)
	}
}

func TestLoadConfigLLMRateOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_REQUESTS_PER_MINUTE", "120.5")
	t.Setenv("LLM_BURST", "10")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLMRequestsPerMinute != 120.5 {
		t.Errorf("expected 120.5 requests per minute, got %v", cfg.LLMRequestsPerMinute)
	}
	if cfg.LLMBurst != 10 {
		t.Errorf("expected burst 10, got %d", cfg.LLMBurst)
	}
}

func TestLoadConfigRejectsOversizedOverlap(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when overlap is not smaller than chunk size")
	}
}
