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
	Port    string
	GinMode string

	// Upstream generation service (OpenAI-compatible chat completions endpoint).
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	AssistantModel  string
	ClassifierModel string

	// Nostr
	NostrSecretKey string // hex secret key for the built-in signer; empty = no signer

	// Relay broadcast
	Relays           []string
	BroadcastTimeout time.Duration // per-relay publish timeout

	// Generation
	GenerationTimeout time.Duration

	// Host embedding bridge
	HostBridgeBuffer int

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	AppConfig *Config

	DefaultBroadcastTimeout  = 10 * time.Second
	DefaultGenerationTimeout = 60 * time.Second

	// DefaultRelays is the relay set used when neither the config file nor the
	// RELAYS environment variable provides one.
	DefaultRelays = []string{
		"wss://relay.damus.io",
		"wss://relay.primal.net",
		"wss://nos.lol",
	}
)

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Upstream generation service
		OpenAIBaseURL:   strings.TrimRight(getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", ""),
		AssistantModel:  getEnvOrDefault("ASSISTANT_MODEL", "gpt-4o"),
		ClassifierModel: getEnvOrDefault("CLASSIFIER_MODEL", "gpt-4o-mini"),

		// Nostr (trim whitespace to avoid common config errors)
		NostrSecretKey: strings.TrimSpace(getEnvOrDefault("NOSTR_SECRET_KEY", "")),

		// Relay broadcast
		Relays:           splitList(getEnvOrDefault("RELAYS", "")),
		BroadcastTimeout: getEnvAsDuration("BROADCAST_TIMEOUT", DefaultBroadcastTimeout),

		// Generation
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", DefaultGenerationTimeout),

		// Host embedding bridge
		HostBridgeBuffer: getEnvAsInt("HOST_BRIDGE_BUFFER", 16),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Load settings from a configuration file. The file only carries settings that
	// are awkward as environment variables, like the relay set.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")

	fileCfg, err := loadFileConfig(configFilePath)
	if err != nil {
		log.Printf("Failed to load config file %v: %v", configFilePath, err)
	} else if fileCfg != nil {
		if len(fileCfg.Relays) > 0 {
			AppConfig.Relays = fileCfg.Relays
		}
	}

	if len(AppConfig.Relays) == 0 {
		AppConfig.Relays = DefaultRelays
	}
}

func getEnvOrDefault(key, defaultValue string) string {
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
		log.Printf("Invalid value for %s: %v, using default %d", key, err, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %v, using default %v", key, err, defaultValue)
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
