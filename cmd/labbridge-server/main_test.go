package main

import (
	"testing"

	"github.com/labbridge/labbridge/internal/config"
)

func TestNewCompleterProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai"},
		{"gemini", "gemini"},
		{"", "openai"},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"->"+tt.want, func(t *testing.T) {
			cfg := &config.Config{LLMProvider: tt.provider, OpenAIAPIKey: "k", GeminiAPIKey: "k"}
			c := newCompleter(cfg)
			if c.Provider() != tt.want {
				t.Errorf("Provider() = %q, want %q", c.Provider(), tt.want)
			}
			if !c.Configured() {
				t.Error("expected configured client when key present")
			}
		})
	}
}

func TestNewCompleterUnconfigured(t *testing.T) {
	c := newCompleter(&config.Config{LLMProvider: "openai"})
	if c.Configured() {
		t.Error("client without key must report unconfigured")
	}
}

func TestLoadConfigRejectsUnsafeValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	t.Run("valid", func(t *testing.T) {
		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.TransitionPolicy != "permissive" {
			t.Errorf("TransitionPolicy = %q, want default permissive", cfg.TransitionPolicy)
		}
	})

	t.Run("misspelled transition policy", func(t *testing.T) {
		t.Setenv("TRANSITION_POLICY", "strcit")
		if _, err := loadConfig(); err == nil {
			t.Fatal("expected startup to fail on TRANSITION_POLICY typo")
		}
	})

	t.Run("unknown llm provider", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "claude")
		if _, err := loadConfig(); err == nil {
			t.Fatal("expected startup to fail on unknown LLM_PROVIDER")
		}
	})
}
