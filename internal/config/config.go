// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	PlanTimeout time.Duration
	// RequestRetention bounds how long platform requests are kept; 0 keeps them.
	RequestRetention time.Duration
	Agent            AgentConfig
	Speech           SpeechConfig
	RateLimit        RateLimitConfig
	SSE              SSEConfig
}

// AgentConfig controls the research and planning agents.
type AgentConfig struct {
	ChatModel      string
	OpenAIBaseURL  string
	SearchBaseURL  string
	SearchTimeout  time.Duration
	HistoryDepth   int
	ResearchLimit  int
	SearchTerms    int
	MaxToolTurns   int
	ResultsPerTerm int
}

// SpeechConfig controls voice capture and transcription.
type SpeechConfig struct {
	TranscriptionModel string
	WaitTimeout        time.Duration
	MaxPhrase          time.Duration
	EnergyThreshold    int
	MaxClipBytes       int64
}

// RateLimitConfig controls per-session request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// SSEConfig controls plan streaming.
type SSEConfig struct {
	MaxRequestBodySize int64
	KeepaliveInterval  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/finplan.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		PlanTimeout: getEnvDuration("PLAN_TIMEOUT", 3*time.Minute),

		RequestRetention: getEnvDuration("PLATFORM_REQUEST_RETENTION", 90*24*time.Hour),
		Agent: AgentConfig{
			ChatModel:      getEnv("CHAT_MODEL", "gpt-4o"),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
			SearchBaseURL:  getEnv("SERPAPI_BASE_URL", "https://serpapi.com"),
			SearchTimeout:  getEnvDuration("SEARCH_TIMEOUT", 20*time.Second),
			HistoryDepth:   getEnvInt("HISTORY_DEPTH", 3),
			ResearchLimit:  getEnvInt("RESEARCH_RESULT_LIMIT", 10),
			SearchTerms:    getEnvInt("RESEARCH_SEARCH_TERMS", 3),
			MaxToolTurns:   getEnvInt("MAX_TOOL_TURNS", 8),
			ResultsPerTerm: getEnvInt("SEARCH_RESULTS_PER_TERM", 10),
		},
		Speech: SpeechConfig{
			TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
			WaitTimeout:        getEnvDuration("SPEECH_WAIT_TIMEOUT", 5*time.Second),
			MaxPhrase:          getEnvDuration("SPEECH_MAX_PHRASE", 15*time.Second),
			EnergyThreshold:    getEnvInt("SPEECH_ENERGY_THRESHOLD", 300),
			MaxClipBytes:       int64(getEnvInt("SPEECH_MAX_CLIP_BYTES", 8<<20)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
			KeepaliveInterval:  getEnvDuration("SSE_KEEPALIVE_INTERVAL", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.PlanTimeout <= 0 {
		return fmt.Errorf("PLAN_TIMEOUT must be > 0")
	}
	if c.RequestRetention < 0 {
		return fmt.Errorf("PLATFORM_REQUEST_RETENTION must be >= 0")
	}
	if c.Agent.ChatModel == "" {
		return fmt.Errorf("CHAT_MODEL cannot be empty")
	}
	if c.Agent.SearchBaseURL == "" {
		return fmt.Errorf("SERPAPI_BASE_URL cannot be empty")
	}
	if c.Agent.HistoryDepth <= 0 {
		return fmt.Errorf("HISTORY_DEPTH must be > 0")
	}
	if c.Agent.ResearchLimit <= 0 {
		return fmt.Errorf("RESEARCH_RESULT_LIMIT must be > 0")
	}
	if c.Agent.SearchTerms <= 0 {
		return fmt.Errorf("RESEARCH_SEARCH_TERMS must be > 0")
	}
	if c.Agent.MaxToolTurns <= 0 {
		return fmt.Errorf("MAX_TOOL_TURNS must be > 0")
	}
	if c.Speech.WaitTimeout <= 0 {
		return fmt.Errorf("SPEECH_WAIT_TIMEOUT must be > 0")
	}
	if c.Speech.MaxPhrase <= 0 {
		return fmt.Errorf("SPEECH_MAX_PHRASE must be > 0")
	}
	if c.Speech.MaxClipBytes <= 0 {
		return fmt.Errorf("SPEECH_MAX_CLIP_BYTES must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins lists the origins allowed to make cross-origin API calls.
// Development allows any origin; otherwise only the frontend URL.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
