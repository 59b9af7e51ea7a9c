package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Language-model providers for the command interpreter.
	LLMProvider  string `mapstructure:"LLM_PROVIDER"`
	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`

	// Practice-management (OpenDental) API.
	OpenDentalBaseURL string `mapstructure:"OPENDENTAL_BASE_URL"`
	OpenDentalAPIKey  string `mapstructure:"OPENDENTAL_API_KEY"`

	// Work-order behavior.
	DocumentDir              string  `mapstructure:"DOCUMENT_DIR"`
	DefaultPriority          string  `mapstructure:"DEFAULT_PRIORITY"`
	DueDateLeadDays          int     `mapstructure:"DUE_DATE_LEAD_DAYS"`
	TransitionPolicy         string  `mapstructure:"TRANSITION_POLICY"`
	AgentConfidenceThreshold float64 `mapstructure:"AGENT_CONFIDENCE_THRESHOLD"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("DOCUMENT_DIR", "./documents")
	v.SetDefault("DEFAULT_PRIORITY", "routine")
	v.SetDefault("DUE_DATE_LEAD_DAYS", 14)
	v.SetDefault("TRANSITION_POLICY", "permissive")
	v.SetDefault("AGENT_CONFIDENCE_THRESHOLD", 0.6)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("LLM_PROVIDER")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("GEMINI_API_KEY")
	v.BindEnv("OPENDENTAL_BASE_URL")
	v.BindEnv("OPENDENTAL_API_KEY")
	v.BindEnv("DOCUMENT_DIR")
	v.BindEnv("DEFAULT_PRIORITY")
	v.BindEnv("DUE_DATE_LEAD_DAYS")
	v.BindEnv("TRANSITION_POLICY")
	v.BindEnv("AGENT_CONFIDENCE_THRESHOLD")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LLMAPIKey returns the credential for the configured language-model
// provider, or "" when that provider has no key set.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	switch c.DefaultPriority {
	case "routine", "urgent", "asap":
	default:
		return fmt.Errorf("DEFAULT_PRIORITY must be \"routine\", \"urgent\", or \"asap\", got %q", c.DefaultPriority)
	}
	switch c.TransitionPolicy {
	case "permissive", "strict":
	default:
		return fmt.Errorf("TRANSITION_POLICY must be \"permissive\" or \"strict\", got %q", c.TransitionPolicy)
	}
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("LLM_PROVIDER must be \"openai\" or \"gemini\", got %q", c.LLMProvider)
	}
	if c.AgentConfidenceThreshold < 0 || c.AgentConfidenceThreshold > 1 {
		return fmt.Errorf("AGENT_CONFIDENCE_THRESHOLD must be between 0 and 1, got %v", c.AgentConfidenceThreshold)
	}
	if c.DueDateLeadDays <= 0 {
		return fmt.Errorf("DUE_DATE_LEAD_DAYS must be positive, got %d", c.DueDateLeadDays)
	}
	return nil
}
