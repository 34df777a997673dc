package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENGINE_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %q", cfg.Port)
	}
	if cfg.MinRequirementsLength != 50 {
		t.Errorf("Expected min requirements length 50, got %d", cfg.MinRequirementsLength)
	}
	if !cfg.Engine.EnableIndexing {
		t.Error("Expected indexing enabled by default")
	}
	if cfg.EngineMode() != "offline" {
		t.Errorf("Expected offline engine mode, got %q", cfg.EngineMode())
	}
}

func TestLoadParsesDurationsAndBools(t *testing.T) {
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("ENGINE_PLAN_TIMEOUT", "30s")
	t.Setenv("ENGINE_ENABLE_INDEXING", "off")
	t.Setenv("ENGINE_ADDR", "engine:50051")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("Expected 15m TTL, got %v", cfg.SessionTTL)
	}
	if cfg.Engine.PlanTimeout != 30*time.Second {
		t.Errorf("Expected 30s plan timeout, got %v", cfg.Engine.PlanTimeout)
	}
	if cfg.Engine.EnableIndexing {
		t.Error("Expected indexing disabled")
	}
	if cfg.EngineMode() != "grpc" {
		t.Errorf("Expected grpc engine mode, got %q", cfg.EngineMode())
	}
}

func TestLoadFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("MIN_REQUIREMENTS_LENGTH", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("Expected default TTL, got %v", cfg.SessionTTL)
	}
	if cfg.MinRequirementsLength != 50 {
		t.Errorf("Expected default min length, got %d", cfg.MinRequirementsLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty archive dir", func(c *Config) { c.ArchiveDir = "" }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"zero min requirements length", func(c *Config) { c.MinRequirementsLength = 0 }},
		{"zero pipeline timeout", func(c *Config) { c.Engine.PipelineTimeout = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }},
		{"zero queue", func(c *Config) { c.ConversationLog.QueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := map[string]bool{
		"":                       true,
		"http://localhost:5173":  true,
		"http://127.0.0.1:8080":  true,
		"https://deepcode.local": false,
	}
	for url, want := range cases {
		c := &Config{FrontendURL: url}
		if got := c.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", url, got, want)
		}
	}
}
