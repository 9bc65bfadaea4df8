package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingCredentials = errors.New("missing Volcengine credentials")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

const (
	BackendSigned = "signed"
	BackendArk    = "ark"
)

type Config struct {
	// Jimeng API
	AccessKey            string
	SecretKey            string
	APIBaseURL           string
	Model                string
	UserAgent            string
	HTTPTimeout          time.Duration
	PollTimeout          time.Duration
	PollInterval         time.Duration
	PlaceholderOnFailure bool

	// Generator backend
	Backend   string
	ArkAPIKey string
	ArkModel  string

	// Output
	OutputDir       string
	OutputMaxAge    time.Duration
	CleanupInterval time.Duration

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string
	LogLevel    string
}

// FromEnv reads the configuration without validating it, so callers can apply
// command line overrides before calling Validate.
func FromEnv() *Config {
	return &Config{
		AccessKey:            getEnv("VOLCENGINE_ACCESS_KEY", ""),
		SecretKey:            getEnv("VOLCENGINE_SECRET_KEY", ""),
		APIBaseURL:           getEnv("JIMENG_API_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Model:                getEnv("JIMENG_MODEL", "jimeng-v4"),
		UserAgent:            getEnv("JIMENG_USER_AGENT", "Jimeng4-Image-Generator"),
		HTTPTimeout:          getSeconds("JIMENG_HTTP_TIMEOUT_SECONDS", 60*time.Second),
		PollTimeout:          getSeconds("JIMENG_POLL_TIMEOUT_SECONDS", 120*time.Second),
		PollInterval:         getSeconds("JIMENG_POLL_INTERVAL_SECONDS", 5*time.Second),
		PlaceholderOnFailure: getBool("JIMENG_PLACEHOLDER_ON_FAILURE", false),

		Backend:   strings.ToLower(getEnv("GENERATOR_BACKEND", BackendSigned)),
		ArkAPIKey: getEnv("ARK_API_KEY", ""),
		ArkModel:  getEnv("ARK_MODEL", "doubao-seedream-4-0-250828"),

		OutputDir:       getEnv("OUTPUT_DIR", "output"),
		OutputMaxAge:    time.Duration(getInt("OUTPUT_MAX_AGE_DAYS", 0)) * 24 * time.Hour,
		CleanupInterval: time.Duration(getInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generated-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "5001"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://127.0.0.1:5001"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("%w: set --access-key/--secret-key or VOLCENGINE_ACCESS_KEY/VOLCENGINE_SECRET_KEY", ErrMissingCredentials)
	}
	switch c.Backend {
	case BackendSigned:
	case BackendArk:
		if c.ArkAPIKey == "" {
			return fmt.Errorf("%w: ARK_API_KEY is required when GENERATOR_BACKEND=ark", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown GENERATOR_BACKEND %q", ErrInvalidConfig, c.Backend)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: JIMENG_API_BASE_URL is empty", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 || c.PollTimeout <= 0 {
		return fmt.Errorf("%w: poll timeout and interval must be positive", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: OUTPUT_DIR is empty", ErrInvalidConfig)
	}
	return nil
}

// SupabaseEnabled reports whether the storage mirror and task events can be used.
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
