package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Token modes accepted by AUTH_TOKEN_MODE.
const (
	TokenModeKratos     = "kratos"
	TokenModeBackendJWT = "backend-jwt"
)

// Config holds all configuration for the user-admin service
type Config struct {
	// Server
	Port     string
	Host     string
	LogLevel string

	// Database
	DatabaseURL      string
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseSSLMode  string

	// Kratos
	KratosPublicURL        string
	KratosAdminURL         string
	KratosIdentitySchemaID string

	// Caller credentials
	AuthTokenMode        string
	AuthTokenHeader      string
	BackendTokenSecret   string
	BackendTokenIssuer   string
	BackendTokenAudience string

	// Upstream calls
	UpstreamTimeout time.Duration

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Features
	EnableMetrics bool
	EnableHSTS    bool

	// Provisioning CLI
	OperatorID string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Server configuration
	config.Port = getEnvOrDefault("PORT", "9600")
	config.Host = getEnvOrDefault("HOST", "0.0.0.0")
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if err := loadDatabase(config); err != nil {
		return nil, err
	}

	// Kratos configuration
	config.KratosPublicURL = getEnv("KRATOS_PUBLIC_URL")
	if config.KratosPublicURL == "" {
		return nil, fmt.Errorf("KRATOS_PUBLIC_URL is required")
	}
	config.KratosAdminURL = getEnv("KRATOS_ADMIN_URL")
	if config.KratosAdminURL == "" {
		return nil, fmt.Errorf("KRATOS_ADMIN_URL is required")
	}
	config.KratosIdentitySchemaID = getEnvOrDefault("KRATOS_IDENTITY_SCHEMA_ID", "default")

	// Caller credential configuration
	config.AuthTokenMode = strings.ToLower(getEnvOrDefault("AUTH_TOKEN_MODE", TokenModeKratos))
	config.AuthTokenHeader = getEnv("AUTH_TOKEN_HEADER")
	config.BackendTokenSecret = getEnv("BACKEND_TOKEN_SECRET")
	config.BackendTokenIssuer = getEnvOrDefault("BACKEND_TOKEN_ISSUER", "patrol-auth")
	config.BackendTokenAudience = getEnvOrDefault("BACKEND_TOKEN_AUDIENCE", "user-admin")

	var err error
	config.UpstreamTimeout, err = time.ParseDuration(getEnvOrDefault("UPSTREAM_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}

	config.RateLimitRPS, err = strconv.ParseFloat(getEnvOrDefault("RATE_LIMIT_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	config.RateLimitBurst, err = strconv.Atoi(getEnvOrDefault("RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	// Feature flags
	config.EnableMetrics = getBoolEnv("ENABLE_METRICS", true)
	config.EnableHSTS = getBoolEnv("ENABLE_HSTS", false)

	config.OperatorID = getEnvOrDefault("OPERATOR_ID", "operator")

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadDatabase reads only the settings the migration tool needs.
func LoadDatabase() (*Config, error) {
	config := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
	if err := loadDatabase(config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadDatabase fills the profile store settings. DATABASE_URL wins over the DB_* parts.
func loadDatabase(config *Config) error {
	config.DatabaseURL = getEnv("DATABASE_URL")
	config.DatabaseHost = getEnvOrDefault("DB_HOST", "user-admin-postgres")
	config.DatabasePort = getEnvOrDefault("DB_PORT", "5432")
	config.DatabaseName = getEnvOrDefault("DB_NAME", "user_admin")
	config.DatabaseUser = getEnvOrDefault("DB_USER", "user_admin")
	config.DatabasePassword = getEnv("DB_PASSWORD")
	config.DatabaseSSLMode = getEnvOrDefault("DB_SSL_MODE", "require")
	if config.DatabaseURL == "" && config.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %s", c.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch c.AuthTokenMode {
	case TokenModeKratos:
	case TokenModeBackendJWT:
		// HS256 needs at least 256 bits of key
		if len(c.BackendTokenSecret) < 32 {
			return fmt.Errorf("BACKEND_TOKEN_SECRET must be at least 32 bytes when AUTH_TOKEN_MODE=%s", TokenModeBackendJWT)
		}
	default:
		return fmt.Errorf("invalid AUTH_TOKEN_MODE: %s (must be %s or %s)", c.AuthTokenMode, TokenModeKratos, TokenModeBackendJWT)
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got: %v", c.UpstreamTimeout)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got: %v rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}

	return nil
}

// DatabaseDSN returns the connection string for the profile store.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DatabaseUser, c.DatabasePassword),
		Host:     net.JoinHostPort(c.DatabaseHost, c.DatabasePort),
		Path:     "/" + c.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{c.DatabaseSSLMode}}.Encode(),
	}
	return u.String()
}

// Helper functions

// getEnv reads key, falling back to the file named by key_FILE for mounted secrets.
func getEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := getEnv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
