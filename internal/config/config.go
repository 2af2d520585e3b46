package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Portal API (remote data source)
	PortalAPIBaseURL string
	PortalAPIToken   string
	FetchTimeout     time.Duration

	// Reference cache
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	SessionCacheTTL time.Duration

	// Default window for admission/appointment list fetches
	ListWindowDays int

	// Background re-fetch cadence for list views; zero disables the sweep
	ListRefreshInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:  splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		PortalAPIBaseURL:    strings.TrimRight(getEnv("PORTAL_API_BASE_URL", ""), "/"),
		PortalAPIToken:      getEnv("PORTAL_API_TOKEN", ""),
		FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT", 20*time.Second),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		SessionCacheTTL:     getEnvAsDuration("SESSION_CACHE_TTL", 30*time.Minute),
		ListWindowDays:      getEnvAsInt("LIST_WINDOW_DAYS", 30),
		ListRefreshInterval: getEnvAsDuration("LIST_REFRESH_INTERVAL", 5*time.Minute),
	}
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
