package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"mira-sales-pipeline/internal/pkg/logger"
)

type Config struct {
	Environment string

	HTTP        HTTPConfig
	Redis       RedisConfig
	GenAI       GenAIConfig
	Pricing     PricingConfig
	Rules       RulesConfig
	Dialogue    DialogueConfig
	Reliability ReliabilityConfig
	Outbound    OutboundConfig
	Log         logger.LogConfig
}

// OutboundConfig points at the webhook endpoints the pipeline talks to:
// the chat channel gateway, the CRM and the operator alert channel.
type OutboundConfig struct {
	MessengerURL   string
	CRMBaseURL     string
	CRMToken       string
	AlertURL       string
	RequestTimeout time.Duration
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	DedupTTL     time.Duration
	ContextTTL   time.Duration
	HistoryTTL   time.Duration
	HistoryLimit int

	AuditStream string
	AuditMaxLen int64
}

type GenAIConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	RetryDelay  time.Duration
}

type PricingConfig struct {
	TablePath string
}

type RulesConfig struct {
	MaxFloorWithoutElevator int
	HeavyItemKg             int
	MinWorkers              int
	LegalPeopleCount        int
}

type DialogueConfig struct {
	MaxCityRetries   int
	MaxFallbacks     int
	LargeOrderPeople int
	LargeOrderHours  int
}

type ReliabilityConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64

	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration

	CallTimeout time.Duration
	TurnTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 20),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			DedupTTL:     getEnvDuration("DEDUP_TTL", 10*time.Minute),
			ContextTTL:   getEnvDuration("DIALOGUE_CONTEXT_TTL", 24*time.Hour),
			HistoryTTL:   getEnvDuration("HISTORY_TTL", 24*time.Hour),
			HistoryLimit: getEnvInt("HISTORY_LIMIT", 10),
			AuditStream:  getEnv("AUDIT_STREAM", "sales:audit"),
			AuditMaxLen:  int64(getEnvInt("AUDIT_MAX_LEN", 4096)),
		},
		GenAI: GenAIConfig{
			APIKey:      os.Getenv("GENAI_API_KEY"),
			Model:       getEnv("GENAI_MODEL", "gemini-2.0-flash"),
			Timeout:     getEnvDuration("GENAI_TIMEOUT", 15*time.Second),
			MaxTokens:   getEnvInt("GENAI_MAX_TOKENS", 1024),
			Temperature: getEnvFloat("GENAI_TEMPERATURE", 0.1),
			MaxRetries:  getEnvInt("GENAI_MAX_RETRIES", 2),
			RetryDelay:  getEnvDuration("GENAI_RETRY_DELAY", 500*time.Millisecond),
		},
		Pricing: PricingConfig{
			TablePath: getEnv("PRICING_TABLE_PATH", "rates.yaml"),
		},
		Rules: RulesConfig{
			MaxFloorWithoutElevator: getEnvInt("RULES_MAX_FLOOR", 3),
			HeavyItemKg:             getEnvInt("RULES_HEAVY_ITEM_KG", 100),
			MinWorkers:              getEnvInt("RULES_MIN_WORKERS", 2),
			LegalPeopleCount:        getEnvInt("RULES_LEGAL_PEOPLE_COUNT", 8),
		},
		Dialogue: DialogueConfig{
			MaxCityRetries:   getEnvInt("DIALOGUE_MAX_CITY_RETRIES", 3),
			MaxFallbacks:     getEnvInt("DIALOGUE_MAX_FALLBACKS", 2),
			LargeOrderPeople: getEnvInt("DIALOGUE_LARGE_ORDER_PEOPLE", 5),
			LargeOrderHours:  getEnvInt("DIALOGUE_LARGE_ORDER_HOURS", 6),
		},
		Reliability: ReliabilityConfig{
			MaxAttempts:      getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay:     getEnvDuration("RETRY_INITIAL_DELAY", 500*time.Millisecond),
			MaxDelay:         getEnvDuration("RETRY_MAX_DELAY", 10*time.Second),
			Multiplier:       getEnvFloat("RETRY_MULTIPLIER", 2.0),
			Jitter:           getEnvFloat("RETRY_JITTER", 0.5),
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
			RecoveryTimeout:  getEnvDuration("BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
			CallTimeout:      getEnvDuration("DOWNSTREAM_CALL_TIMEOUT", 15*time.Second),
			TurnTimeout:      getEnvDuration("TURN_TIMEOUT", 45*time.Second),
		},
		Outbound: OutboundConfig{
			MessengerURL:   getEnv("MESSENGER_URL", "http://localhost:9001/send"),
			CRMBaseURL:     getEnv("CRM_BASE_URL", "http://localhost:9002"),
			CRMToken:       os.Getenv("CRM_TOKEN"),
			AlertURL:       getEnv("ALERT_URL", "http://localhost:9003/notify"),
			RequestTimeout: getEnvDuration("OUTBOUND_REQUEST_TIMEOUT", 10*time.Second),
		},
		Log: logger.LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}

	if cfg.GenAI.APIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}

	if cfg.Reliability.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.Reliability.FailureThreshold < 1 || cfg.Reliability.SuccessThreshold < 1 {
		return fmt.Errorf("breaker thresholds must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
