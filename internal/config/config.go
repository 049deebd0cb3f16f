// Package config provides configuration management for the case gateway service.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - HTTP_TIMEOUT: Timeout for outbound HTTP calls (default: 10s)
//
// Identity Provider (OAuth2):
//   - OPENID_CLIENT_ID: OAuth2 client identifier (required)
//   - OPENID_CLIENT_SECRET: OAuth2 client secret (required)
//   - OPENID_TOKEN_ENDPOINT: Token endpoint URL (required)
//   - OPENID_SCOPE: Requested scope string
//
// CRM API:
//   - CRM_LIST_ENDPOINT: Case list endpoint URL (required)
//   - CRM_PUSH_ENDPOINT: Case create/update/delete endpoint URL (required)
//   - CRM_QUERY_PARAMS: Static query parameters, one key=value per line
//   - APIM_SUBSCRIPTION_KEY: API-management gateway subscription key
//
// Token Renewal:
//   - ENABLE_AUTO_RENEWAL: Per-request proactive renewal (default: true)
//   - RENEWAL_THRESHOLD: Renewal threshold in minutes (default: 10)
//
// Redis (durable token store):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the case gateway service.
// The configuration is loaded once at startup with Load() and passed down
// to components; nothing reads the environment after that point.
type Config struct {
	// Application settings
	Port        string        // Server port number
	LogLevel    string        // Logging level (debug, info, warn, error)
	HTTPTimeout time.Duration // Timeout applied to every outbound HTTP call

	// Identity provider configuration
	ClientID      string // OAuth2 client identifier
	ClientSecret  string // OAuth2 client secret
	TokenEndpoint string // OAuth2 token endpoint URL
	Scope         string // OAuth2 scope string

	// CRM API configuration
	ListEndpoint    string            // Case list endpoint (read path)
	PushEndpoint    string            // Case push endpoint (write path)
	QueryParams     map[string]string // Static query parameters merged under caller filters
	SubscriptionKey string            // API-management gateway subscription key

	// Token renewal configuration
	EnableAutoRenewal bool // Whether the per-request renewal check runs
	RenewalThreshold  int  // Renewal threshold in minutes

	// Redis configuration for the durable token store
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 10*time.Second),

		ClientID:      getEnv("OPENID_CLIENT_ID", ""),
		ClientSecret:  getEnv("OPENID_CLIENT_SECRET", ""),
		TokenEndpoint: getEnv("OPENID_TOKEN_ENDPOINT", ""),
		Scope:         getEnv("OPENID_SCOPE", ""),

		ListEndpoint:    getEnv("CRM_LIST_ENDPOINT", ""),
		PushEndpoint:    getEnv("CRM_PUSH_ENDPOINT", ""),
		QueryParams:     ParseQueryParams(getEnv("CRM_QUERY_PARAMS", "")),
		SubscriptionKey: getEnv("APIM_SUBSCRIPTION_KEY", ""),

		EnableAutoRenewal: getBoolEnv("ENABLE_AUTO_RENEWAL", true),
		RenewalThreshold:  getIntEnv("RENEWAL_THRESHOLD", 10),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
	}
}

// ParseQueryParams parses static query parameters from key=value lines.
// Blank lines and lines starting with '#' are skipped.
func ParseQueryParams(text string) map[string]string {
	params := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, found := strings.Cut(line, "="); found {
			params[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return params
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The service should call this
// after loading configuration and before starting.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("OPENID_CLIENT_ID environment variable is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("OPENID_CLIENT_SECRET environment variable is required")
	}
	if c.TokenEndpoint == "" {
		return fmt.Errorf("OPENID_TOKEN_ENDPOINT environment variable is required")
	}
	if c.ListEndpoint == "" {
		return fmt.Errorf("CRM_LIST_ENDPOINT environment variable is required")
	}
	if c.PushEndpoint == "" {
		return fmt.Errorf("CRM_PUSH_ENDPOINT environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be a positive duration")
	}

	if c.RenewalThreshold < 1 {
		return fmt.Errorf("RENEWAL_THRESHOLD must be at least 1 minute")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	return nil
}
