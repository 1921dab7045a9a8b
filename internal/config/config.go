package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	Timezone    string
	DatabaseURL string

	// Job processing
	UseMemoryQueue        bool
	WorkerCount           int
	ConversationQueueURL  string
	ConversationJobsTable string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (profiles, cursors, chat history)
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	HistoryMaxMessages int

	// Long-term conversation archive in Postgres
	PersistConversationHistory bool

	// Language model collaborator
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModel    string

	// WhatsApp Cloud API
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppVerifyToken   string
	WhatsAppGraphAPIBase  string
	WebhookRateLimit      float64
	WebhookRateBurst      int
	WebhookDedupTTL       time.Duration
	ProcessedRetention    time.Duration

	// Recommendation engine
	RulesPath       string
	PaginationCue   string
	EventMinResults int
	EventWindowDays int

	AdminJWTSecret string
	SimulatorToken string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Timezone:    getEnv("TIMEZONE", "Europe/London"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		UseMemoryQueue:        getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:           getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL:  getEnv("CONVERSATION_QUEUE_URL", ""),
		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		HistoryMaxMessages: getEnvAsInt("HISTORY_MAX_MESSAGES", 200),

		PersistConversationHistory: getEnvAsBool("PERSIST_CONVERSATION_HISTORY", false),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppGraphAPIBase:  getEnv("WHATSAPP_GRAPH_API_BASE", "https://graph.facebook.com/v16.0"),
		WebhookRateLimit:      getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst:      getEnvAsInt("WEBHOOK_RATE_BURST", 40),
		WebhookDedupTTL:       getEnvAsDuration("WEBHOOK_DEDUP_TTL", 10*time.Minute),
		ProcessedRetention:    getEnvAsDuration("PROCESSED_MESSAGE_RETENTION", 7*24*time.Hour),

		RulesPath:       getEnv("RULES_PATH", ""),
		PaginationCue:   strings.ToLower(strings.TrimSpace(getEnv("PAGINATION_CUE", "show more"))),
		EventMinResults: getEnvAsInt("EVENT_MIN_RESULTS", 5),
		EventWindowDays: getEnvAsInt("EVENT_WINDOW_DAYS", 7),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		SimulatorToken: getEnv("SIMULATOR_TOKEN", ""),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration parses values such as "90s" or "10m".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
