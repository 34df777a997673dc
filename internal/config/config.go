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
	Port                  string
	FrontendURL           string
	DBPath                string
	ArchiveDir            string
	SessionTTL            time.Duration
	MinRequirementsLength int
	MaxRequestBodySize    int64
	Engine                EngineConfig
	OpenAI                OpenAIConfig
	RateLimit             RateLimitConfig
	ConversationLog       ConversationLogConfig
}

// EngineConfig controls the connection to the orchestration engine.
type EngineConfig struct {
	Addr            string // empty = no remote engine
	ConnectTimeout  time.Duration
	PlanTimeout     time.Duration
	PipelineTimeout time.Duration
	EnableIndexing  bool
}

// OpenAIConfig configures the optional OpenAI-compatible planner.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RateLimitConfig throttles chat turns per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		FrontendURL:           getEnv("FRONTEND_URL", ""),
		DBPath:                getEnv("DB_PATH", "./data/deepcode.db"),
		ArchiveDir:            getEnv("ARCHIVE_DIR", os.TempDir()),
		SessionTTL:            getEnvDuration("SESSION_TTL", 60*time.Minute),
		MinRequirementsLength: getEnvInt("MIN_REQUIREMENTS_LENGTH", 50),
		MaxRequestBodySize:    int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		Engine: EngineConfig{
			Addr:            getEnv("ENGINE_ADDR", ""),
			ConnectTimeout:  getEnvDuration("ENGINE_CONNECT_TIMEOUT", 5*time.Second),
			PlanTimeout:     getEnvDuration("ENGINE_PLAN_TIMEOUT", 2*time.Minute),
			PipelineTimeout: getEnvDuration("ENGINE_PIPELINE_TIMEOUT", 10*time.Minute),
			EnableIndexing:  getEnvBool("ENGINE_ENABLE_INDEXING", true),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
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
	if c.ArchiveDir == "" {
		return fmt.Errorf("ARCHIVE_DIR cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.MinRequirementsLength <= 0 {
		return fmt.Errorf("MIN_REQUIREMENTS_LENGTH must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.Engine.ConnectTimeout <= 0 || c.Engine.PlanTimeout <= 0 || c.Engine.PipelineTimeout <= 0 {
		return fmt.Errorf("ENGINE_*_TIMEOUT values must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// EngineMode names the planning backend the configuration selects.
func (c *Config) EngineMode() string {
	switch {
	case c.Engine.Addr != "":
		return "grpc"
	case c.OpenAI.APIKey != "":
		return "openai"
	default:
		return "offline"
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
