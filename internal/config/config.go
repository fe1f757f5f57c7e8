package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devTokenSecret = "development-only-token-secret-change-me"

// Config aggregates runtime configuration for the alumni services.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string
	FrontendURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenSecret            string
	TokenTTL               time.Duration
	MaxFailedAttempts      int
	LockoutWindow          time.Duration
	AuthRateLimitPerMinute int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	EmailEndpointURL string
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/alumni_database_url")
	if err != nil {
		return Config{}, err
	}

	tokenSecret, err := getEnvOrFile("AUTH_TOKEN_SECRET", "/run/secrets/alumni_token_secret")
	if err != nil {
		return Config{}, err
	}

	redisPassword, err := getEnvOrFile("REDIS_PASSWORD", "")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}

	smtpPassword, err := getEnvOrFile("SMTP_PASSWORD", "")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        strings.ToLower(getEnv("APP_ENV", "development")),
		DatabaseURL:        databaseURL,
		DataStore:          strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		FrontendURL:        strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:      strings.TrimSpace(redisPassword),
		TokenSecret:        strings.TrimSpace(tokenSecret),
		GoogleClientID:     strings.TrimSpace(os.Getenv("AUTH_GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(googleSecret),
		GoogleRedirectURL:  strings.TrimSpace(os.Getenv("AUTH_GOOGLE_REDIRECT_URL")),
		SMTPHost:           strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPUsername:       strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		SMTPPassword:       strings.TrimSpace(smtpPassword),
		MailFrom:           getEnv("MAIL_FROM", "Alumni Association <no-reply@localhost>"),
		EmailEndpointURL:   strings.TrimSpace(os.Getenv("EMAIL_ENDPOINT_URL")),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	if cfg.HTTPPort, err = strconv.Atoi(portValue); err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.MaxFailedAttempts, err = getEnvInt("AUTH_MAX_FAILED_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateLimitPerMinute, err = getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = getEnvDuration("AUTH_TOKEN_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LockoutWindow, err = getEnvDuration("AUTH_LOCKOUT_WINDOW", 15*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataStore {
	case "memory", "postgres":
	default:
		return fmt.Errorf("DATA_STORE must be memory or postgres, got %q", c.DataStore)
	}

	if c.DataStore == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	if c.IsDevelopment() {
		if c.TokenSecret == "" {
			c.TokenSecret = devTokenSecret
		}
		return nil
	}

	if len(c.TokenSecret) < 32 {
		return fmt.Errorf("AUTH_TOKEN_SECRET is required outside development and must be at least 32 bytes")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must define at least one origin")
	}
	for _, origin := range c.AllowedOrigins {
		if strings.Contains(origin, "*") {
			return fmt.Errorf("ALLOWED_ORIGINS cannot contain wildcard outside development")
		}
	}
	if c.GoogleClientID != "" && (c.GoogleClientSecret == "" || c.GoogleRedirectURL == "") {
		return fmt.Errorf("AUTH_GOOGLE_CLIENT_SECRET and AUTH_GOOGLE_REDIRECT_URL are required when AUTH_GOOGLE_CLIENT_ID is set")
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the service runs with development relaxations.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// SMTPEnabled reports whether outbound mail goes through an SMTP relay.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
