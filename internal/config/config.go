package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
)

// Auth modes
const (
	AuthModeNone    = "none"    // self-hosted, local dev
	AuthModeGateway = "gateway" // trust X-User-* headers from an upstream gateway
	AuthModeJWT     = "jwt"     // verify HS256 bearer tokens with JWT_SECRET
)

// EnvironmentProduction is the ENVIRONMENT value of live deployments.
const EnvironmentProduction = "production"

// DefaultSessionSecret signs chat cookies outside production only.
const DefaultSessionSecret = "melodycomp-dev-session-secret"

// ErrDefaultSessionSecret is returned by Validate when production would sign
// cookies with the built-in development key.
var ErrDefaultSessionSecret = errors.New("SESSION_SECRET must be set in production")

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Persistence. Sessions live in memory when DatabaseURL is empty.
	DatabaseURL string

	// Auth
	AuthMode      string
	JWTSecret     string
	SessionSecret string // gorilla/sessions cookie key for /api/v1/chat

	// LLM API Keys
	OpenAIAPIKey string
	GeminiAPIKey string

	// Chord progression generation
	ChordModel        string
	ChordProvider     string // openai or gemini; empty picks by model name
	ReasoningMode     string
	ChordTemperature  float64
	TipsEnabled       bool
	ProgressionFormat string // list, json or dsl
	DurationPerChord  float64

	// Melody generation
	MelodyModel       string
	MelodyBaseURL     string // OpenAI-compatible completions endpoint
	MelodyAPIKey      string
	ABCConverterModel string

	// Retrieval
	EmbeddingProvider string // gemini, openai or hash
	RetrievalDBPath   string
	KnowledgeDir      string
	GenreResults      int
	ExampleResults    int

	// Theory tables
	ScalesConfigPath string
	ChordLibraryPath string

	// Observability
	SentryDSN         string
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
	LangfuseEnabled   bool
}

func Load() *Config {
	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AuthMode:          strings.ToLower(getEnv("AUTH_MODE", AuthModeNone)),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		SessionSecret:     getEnv("SESSION_SECRET", DefaultSessionSecret),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		ChordModel:        getEnv("CHORD_MODEL", "gpt-4o-mini"),
		ChordProvider:     getEnv("CHORD_PROVIDER", ""),
		ReasoningMode:     getEnv("REASONING_MODE", ""),
		ChordTemperature:  getEnvFloat("CHORD_TEMPERATURE", 0.7),
		TipsEnabled:       getEnvBool("TIPS_ENABLED", true),
		ProgressionFormat: getEnv("PROGRESSION_FORMAT", "list"),
		DurationPerChord:  getEnvFloat("DURATION_PER_CHORD", 2.0),
		MelodyModel:       getEnv("MELODY_MODEL", "melody-llama"),
		MelodyBaseURL:     getEnv("MELODY_BASE_URL", ""),
		MelodyAPIKey:      getEnv("MELODY_API_KEY", ""),
		ABCConverterModel: getEnv("ABC_CONVERTER_MODEL", "gpt-4o-mini"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
		RetrievalDBPath:   getEnv("RETRIEVAL_DB_PATH", "melodycomp-index.db"),
		KnowledgeDir:      getEnv("KNOWLEDGE_DIR", ""),
		GenreResults:      getEnvInt("GENRE_RESULTS", 5),
		ExampleResults:    getEnvInt("EXAMPLE_RESULTS", 2),
		ScalesConfigPath:  getEnv("SCALES_CONFIG_PATH", ""),
		ChordLibraryPath:  getEnv("CHORD_LIBRARY_PATH", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:   getEnvBool("LANGFUSE_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// Validate rejects settings that are only safe for local development.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.SessionSecret == "" || c.SessionSecret == DefaultSessionSecret) {
		return ErrDefaultSessionSecret
	}
	return nil
}

// IsGatewayMode returns true if running behind an authenticating gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == AuthModeGateway
}

// IsJWTMode returns true if requests carry bearer tokens signed with JWTSecret
func (c *Config) IsJWTMode() bool {
	return c.AuthMode == AuthModeJWT
}

// UsesDatabase reports whether sessions persist to Postgres.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
