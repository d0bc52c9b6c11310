// Package config defines the application configuration structures.
//
// Configuration is environment-first: every field has an env var and a
// default suitable for local development. A .env file (loaded by cmd)
// can supply the same variables. Separated from cmd so that db, chat
// and server can depend on config without importing Cobra.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application settings.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Server    ServerConfig
	AI        AIConfig

	// LogMode selects the zap profile: "dev" or "prod".
	LogMode string
}

// DatabaseConfig describes the read-only analytics warehouse connection.
// The credentials must belong to a database user without write grants;
// the sandbox validator is the first line of defense, the user grants
// are the second.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// StatementTimeout bounds every statement server-side, independent
	// of request-level contexts.
	StatementTimeout time.Duration

	SSH SSHConfig
}

// SSHConfig holds settings for tunneling to a warehouse behind a bastion.
type SSHConfig struct {
	Enabled       bool
	Host          string
	Port          int
	User          string
	KeyPath       string
	KeyPassphrase string
}

// RedisConfig describes the rate-limit counter store.
// An empty Addr selects the in-process counter store instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig bounds how many questions a store may ask per window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// AIConfig holds the AI provider selection and credentials.
type AIConfig struct {
	Provider  string // "openai", "anthropic", "gemini", "ollama", "placeholder"
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	Ollama    OllamaConfig
}

// ProviderConfig holds key+model for the hosted providers.
type ProviderConfig struct {
	APIKey string
	Model  string
}

// OllamaConfig holds settings for a local Ollama instance.
type OllamaConfig struct {
	Host  string
	Model string
}

// DSN builds a pgx-compatible connection string. When the SSH tunnel is
// active, the caller overrides Host/Port with the local tunnel endpoint.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Database: DatabaseConfig{
			Host:             envStr("STOREQL_DB_HOST", "localhost"),
			Port:             envInt("STOREQL_DB_PORT", 5432),
			User:             envStr("STOREQL_DB_USER", "storeql_ro"),
			Password:         envStr("STOREQL_DB_PASSWORD", ""),
			Database:         envStr("STOREQL_DB_NAME", "storeql"),
			SSLMode:          envStr("STOREQL_DB_SSLMODE", "prefer"),
			StatementTimeout: envDuration("STOREQL_DB_STATEMENT_TIMEOUT", 5*time.Second),
			SSH: SSHConfig{
				Enabled:       envBool("STOREQL_SSH_ENABLED", false),
				Host:          envStr("STOREQL_SSH_HOST", ""),
				Port:          envInt("STOREQL_SSH_PORT", 22),
				User:          envStr("STOREQL_SSH_USER", ""),
				KeyPath:       envStr("STOREQL_SSH_KEY", ""),
				KeyPassphrase: envStr("STOREQL_SSH_KEY_PASSPHRASE", ""),
			},
		},
		Redis: RedisConfig{
			Addr:     envStr("STOREQL_REDIS_ADDR", ""),
			Password: envStr("STOREQL_REDIS_PASSWORD", ""),
			DB:       envInt("STOREQL_REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Requests: envInt("STOREQL_RATELIMIT_REQUESTS", 20),
			Window:   envDuration("STOREQL_RATELIMIT_WINDOW", time.Minute),
		},
		Server: ServerConfig{
			Addr: envStr("STOREQL_HTTP_ADDR", ":8080"),
		},
		AI: AIConfig{
			Provider: envStr("STOREQL_AI_PROVIDER", "placeholder"),
			OpenAI: ProviderConfig{
				APIKey: envStr("OPENAI_API_KEY", ""),
				Model:  envStr("STOREQL_OPENAI_MODEL", "gpt-4o"),
			},
			Anthropic: ProviderConfig{
				APIKey: envStr("ANTHROPIC_API_KEY", ""),
				Model:  envStr("STOREQL_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			},
			Gemini: ProviderConfig{
				APIKey: envStr("GEMINI_API_KEY", ""),
				Model:  envStr("STOREQL_GEMINI_MODEL", "gemini-2.0-flash"),
			},
			Ollama: OllamaConfig{
				Host:  envStr("OLLAMA_HOST", "http://localhost:11434"),
				Model: envStr("STOREQL_OLLAMA_MODEL", "llama3.2"),
			},
		},
		LogMode: envStr("STOREQL_LOG_MODE", "dev"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
