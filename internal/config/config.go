package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	AppVersion string
	Env        string
	LogLevel   string

	DatabaseDriver string // "postgres" or "sqlite3"
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// RateLimitBackend selects "redis" (shared across instances) or "memory".
	RateLimitBackend  string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	TrialDuration     time.Duration
	DefaultUsageLimit int

	LLM LLMConfig

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	SimilarThreshold float32

	BatchDelay    time.Duration
	BatchMaxItems int

	UsageResetSchedule string
	CORSOrigins        string
}

type LLMConfig struct {
	Primary  string // gemini, openai, anthropic
	Fallback string // optional, same values

	GeminiAPIKey   string
	GeminiProject  string
	GeminiLocation string
	GeminiModel    string
	EmbeddingModel string
	EmbeddingDim   int

	OpenAIAPIKey string
	OpenAIModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	Timeout time.Duration
}

// Load reads the optional .env file, then the environment.
func Load(envFile string) (*Config, error) {
	_ = godotenv.Load(envFile)

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		AppVersion: getEnv("APP_VERSION", "dev"),
		Env:        getEnv("ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitBackend:  getEnv("RATE_LIMIT_BACKEND", "redis"),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		TrialDuration:     time.Duration(getEnvInt("TRIAL_DAYS", 14)) * 24 * time.Hour,
		DefaultUsageLimit: getEnvInt("DEFAULT_USAGE_LIMIT", 50),

		LLM: LLMConfig{
			Primary:        getEnv("LLM_PROVIDER", "gemini"),
			Fallback:       os.Getenv("LLM_FALLBACK_PROVIDER"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			GeminiProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
			GeminiLocation: getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 768),

			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-haiku-4-5"),

			Timeout: getEnvDuration("LLM_TIMEOUT", 25*time.Second),
		},

		QdrantHost:       os.Getenv("QDRANT_HOST"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "review_responses"),
		SimilarThreshold: float32(getEnvFloat("SIMILAR_THRESHOLD", 0.8)),

		BatchDelay:    getEnvDuration("BATCH_DELAY", time.Second),
		BatchMaxItems: getEnvInt("BATCH_MAX_ITEMS", 50),

		UsageResetSchedule: getEnv("USAGE_RESET_SCHEDULE", "0 0 1 * *"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "http://localhost:3000"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, errors.New("DATABASE_DRIVER must be postgres or sqlite3"))
	}
	switch c.RateLimitBackend {
	case "redis", "memory":
	default:
		errs = append(errs, errors.New("RATE_LIMIT_BACKEND must be redis or memory"))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}
	return errors.Join(errs...)
}

// QdrantEnabled reports whether the similar-response index is configured.
func (c *Config) QdrantEnabled() bool {
	return c.QdrantHost != ""
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}
