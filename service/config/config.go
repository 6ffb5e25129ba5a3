package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All fields have working defaults so the server can start against mainnet
// with no environment at all; invalid overrides are rejected at startup.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL string

	// Per-call transport behavior. MaxRetries is the total attempt count
	// per upstream call, first try included; zero behaves as one attempt.
	RPCTimeout     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Composite request behavior
	RequestTimeout    time.Duration
	DetailConcurrency int
	CountPageLimit    int
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error describing every invalid value rather than stopping at the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")

	// Transport configuration
	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	maxRetries, err := parseInt("MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxRetries = maxRetries
	}

	baseDelay, err := parseDuration("RETRY_BASE_DELAY", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RetryBaseDelay = baseDelay
	}

	maxDelay, err := parseDuration("RETRY_MAX_DELAY", "8s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RetryMaxDelay = maxDelay
	}

	// Composite request configuration
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "55s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = requestTimeout
	}

	detailConcurrency, err := parseInt("DETAIL_CONCURRENCY", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DetailConcurrency = detailConcurrency
	}

	countPageLimit, err := parseInt("COUNT_PAGE_LIMIT", 1000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.CountPageLimit = countPageLimit
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading it from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MaxRetries cannot be negative"))
	}

	if c.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("RetryBaseDelay must be positive"))
	}

	if c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("RetryMaxDelay (%v) cannot be less than RetryBaseDelay (%v)",
			c.RetryMaxDelay, c.RetryBaseDelay))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RequestTimeout must be positive"))
	}

	if c.DetailConcurrency < 1 {
		errs = append(errs, fmt.Errorf("DetailConcurrency must be at least 1"))
	}

	if c.CountPageLimit < 1 || c.CountPageLimit > 1000 {
		errs = append(errs, fmt.Errorf("CountPageLimit must be between 1 and 1000"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
