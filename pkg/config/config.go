package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	LLM LLMConfig

	// Prediction engine
	Prediction PredictionConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// LLM provider names
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMConfig holds the qualitative analysis (chat completion) configuration
type LLMConfig struct {
	Enabled  bool
	Provider string // openai, anthropic

	OpenAI    ProviderConfig
	Anthropic ProviderConfig

	Timeout       time.Duration // 요청 단위 타임아웃 (재시도 없음)
	RatePerMinute int           // 분당 최대 호출 수
	Temperature   float64
	MaxTokens     int
}

// ProviderConfig holds credentials and endpoint of a single chat completion provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Active returns the settings of the selected provider
func (c LLMConfig) Active() ProviderConfig {
	if c.Provider == ProviderAnthropic {
		return c.Anthropic
	}
	return c.OpenAI
}

// PredictionConfig holds prediction engine tuning knobs
type PredictionConfig struct {
	ModelVersion     string
	LookbackMonths   int     // 영업사원 승률 조회 기간
	SimilarTolerance float64 // 유사 리드 점수 허용 범위 (±)
}

// SchedulerConfig holds scheduled job configuration
type SchedulerConfig struct {
	AccuracyCron           string
	AccuracyLookbackMonths int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "winrate"),
			User:            getEnv("DB_USER", "winrate"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		LLM: LLMConfig{
			Enabled:  getEnvAsBool("LLM_ENABLED", true),
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			},
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", "30s"),
			RatePerMinute: getEnvAsInt("LLM_RATE_PER_MINUTE", 30),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 2000),
		},

		Prediction: PredictionConfig{
			ModelVersion:     getEnv("PREDICTION_MODEL_VERSION", "weighted-factor-v1"),
			LookbackMonths:   getEnvAsInt("PREDICTION_LOOKBACK_MONTHS", 24),
			SimilarTolerance: getEnvAsFloat("PREDICTION_SIMILAR_TOLERANCE", 10),
		},

		Scheduler: SchedulerConfig{
			AccuracyCron:           getEnv("ACCURACY_CRON", "0 0 6 * * *"),
			AccuracyLookbackMonths: getEnvAsInt("ACCURACY_LOOKBACK_MONTHS", 6),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with defaults only.
// DB 없이 예측 엔진만 쓰는 경우(테스트, preview)에 사용
func Default() *Config {
	return &Config{
		Port:      "8080",
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "json",
		LLM: LLMConfig{
			Enabled:       true,
			Provider:      ProviderOpenAI,
			OpenAI:        ProviderConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
			Anthropic:     ProviderConfig{BaseURL: "https://api.anthropic.com", Model: "claude-3-5-haiku-latest"},
			Timeout:       30 * time.Second,
			RatePerMinute: 30,
			Temperature:   0.3,
			MaxTokens:     2000,
		},
		Prediction: PredictionConfig{
			ModelVersion:     "weighted-factor-v1",
			LookbackMonths:   24,
			SimilarTolerance: 10,
		},
		Scheduler: SchedulerConfig{
			AccuracyCron:           "0 0 6 * * *",
			AccuracyLookbackMonths: 6,
		},
	}
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderAnthropic {
		return fmt.Errorf("LLM_PROVIDER must be one of: openai, anthropic")
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.Prediction.LookbackMonths <= 0 {
		return fmt.Errorf("PREDICTION_LOOKBACK_MONTHS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
