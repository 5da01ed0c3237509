package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	VonageJWT      string
	VonageSenderID string
	MessagesAPIURL string
	GatewayTimeout time.Duration

	OpenAIKey  string
	Classifier string

	Port string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Tenants            []string
	StalenessThreshold time.Duration
	ScanBatchLimit     int
	SendBatchLimit     int
	ContextMessages    int
	ClaimHold          time.Duration
	BackoffIntervals   []time.Duration
	TemplatesFile      string

	S3Bucket string
	S3Region string
}

func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		VonageJWT:      getEnv("VONAGE_JWT", ""),
		VonageSenderID: getEnv("VONAGE_SENDER_ID", ""),
		MessagesAPIURL: getEnv("MESSAGES_API_URL", "https://api.nexmo.com/v1/messages"),
		GatewayTimeout: time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,

		OpenAIKey:  getEnv("OPENAI_API_KEY", ""),
		Classifier: getEnv("FOLLOWUP_CLASSIFIER", "keyword"),

		Port: getEnv("PORT", "8080"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Tenants:            getEnvList("FOLLOWUP_TENANTS"),
		StalenessThreshold: time.Duration(getEnvInt("FOLLOWUP_STALENESS_HOURS", 12)) * time.Hour,
		ScanBatchLimit:     getEnvInt("FOLLOWUP_SCAN_LIMIT", 200),
		SendBatchLimit:     getEnvInt("FOLLOWUP_SEND_LIMIT", 100),
		ContextMessages:    getEnvInt("FOLLOWUP_CONTEXT_MESSAGES", 10),
		ClaimHold:          time.Duration(getEnvInt("FOLLOWUP_CLAIM_HOLD_SECONDS", 120)) * time.Second,
		BackoffIntervals:   getEnvHours("FOLLOWUP_BACKOFF_HOURS", []time.Duration{24 * time.Hour, 48 * time.Hour, 96 * time.Hour, 168 * time.Hour}),
		TemplatesFile:      getEnv("FOLLOWUP_TEMPLATES_FILE", ""),

		S3Bucket: getEnv("S3_BUCKET", ""),
		S3Region: getEnv("S3_REGION", "us-east-1"),
	}

	if cfg.VonageJWT == "" {
		log.Fatal("VONAGE_JWT environment variable is required")
	}

	if cfg.VonageSenderID == "" {
		log.Fatal("VONAGE_SENDER_ID environment variable is required")
	}

	if cfg.Classifier == "openai" && cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY is required when FOLLOWUP_CLASSIFIER=openai")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvHours(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var intervals []time.Duration
	for _, item := range strings.Split(value, ",") {
		hours, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil || hours <= 0 {
			return defaultValue
		}
		intervals = append(intervals, time.Duration(hours)*time.Hour)
	}
	return intervals
}
