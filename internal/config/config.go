// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Clustering
	ClusterRadiusM float64       `koanf:"cluster_radius_m"`
	ClusterWindow  time.Duration `koanf:"cluster_window"`

	// Presence
	PresenceTTL time.Duration `koanf:"presence_ttl"`

	// Redis (rate limit store, optional)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Rate limiting
	RateLimitGlobal int `koanf:"rate_limit_global"`
	RateLimitWrite  int `koanf:"rate_limit_write"`
	RateLimitQuery  int `koanf:"rate_limit_query"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	// Feature flags
	MetricsEnabled     bool `koanf:"metrics_enabled"`
	ProfilingEnabled   bool `koanf:"profiling_enabled"`
	IdempotencyEnabled bool `koanf:"idempotency_enabled"`
}

// Configuration validation errors.
var (
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidClusterRadius = errors.New("CLUSTER_RADIUS_M must be > 0")
	ErrInvalidClusterWindow = errors.New("CLUSTER_WINDOW must be > 0")
	ErrInvalidPresenceTTL   = errors.New("PRESENCE_TTL must be > 0")
	ErrInvalidRateLimit     = errors.New("rate limits must be > 0")
	ErrInvalidSamplingRate  = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultClusterRadiusM  = 50.0
	DefaultClusterWindow   = 10 * time.Minute
	DefaultPresenceTTL     = 90 * time.Second
	DefaultRateLimitGlobal = 100
	DefaultRateLimitWrite  = 20
	DefaultRateLimitQuery  = 60
	DefaultSamplingRate    = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try CROWDLENS_PORT first, then PORT for container platforms that inject it
	port, portErr := getEnvIntOrDefaultMulti([]string{"CROWDLENS_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	radius, radiusErr := getEnvFloatOrDefault("CLUSTER_RADIUS_M", k.Float64("cluster_radius_m"), DefaultClusterRadiusM)
	if radiusErr != nil {
		loadErrs = append(loadErrs, radiusErr)
	}

	window, windowErr := getEnvDurationOrDefault("CLUSTER_WINDOW", k.Duration("cluster_window"), DefaultClusterWindow)
	if windowErr != nil {
		loadErrs = append(loadErrs, windowErr)
	}

	presenceTTL, ttlErr := getEnvDurationOrDefault("PRESENCE_TTL", k.Duration("presence_ttl"), DefaultPresenceTTL)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}

	rlGlobal, rlGlobalErr := getEnvIntOrDefault("RATE_LIMIT_GLOBAL", k.Int("rate_limit_global"), DefaultRateLimitGlobal)
	if rlGlobalErr != nil {
		loadErrs = append(loadErrs, rlGlobalErr)
	}
	rlWrite, rlWriteErr := getEnvIntOrDefault("RATE_LIMIT_WRITE", k.Int("rate_limit_write"), DefaultRateLimitWrite)
	if rlWriteErr != nil {
		loadErrs = append(loadErrs, rlWriteErr)
	}
	rlQuery, rlQueryErr := getEnvIntOrDefault("RATE_LIMIT_QUERY", k.Int("rate_limit_query"), DefaultRateLimitQuery)
	if rlQueryErr != nil {
		loadErrs = append(loadErrs, rlQueryErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"CROWDLENS_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		ClusterRadiusM:      radius,
		ClusterWindow:       window,
		PresenceTTL:         presenceTTL,
		RedisAddr:           getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:       getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		RateLimitGlobal:     rlGlobal,
		RateLimitWrite:      rlWrite,
		RateLimitQuery:      rlQuery,
		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), "otlp-http"),
		TracingEndpoint:     getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure", false),
		MetricsEnabled:      getEnvBoolOrKoanf("METRICS_ENABLED", k, "metrics_enabled", true),
		ProfilingEnabled:    getEnvBoolOrKoanf("PROFILING_ENABLED", k, "profiling_enabled", false),
		IdempotencyEnabled:  getEnvBoolOrKoanf("IDEMPOTENCY_ENABLED", k, "idempotency_enabled", true),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns a comma-separated environment variable as a list if set,
// otherwise the koanf value.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrKoanf returns the environment variable as a bool if set, otherwise the
// koanf value, or default. Accepts true/1/yes/on and false/0/no/off.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: A value of 0 from a YAML file will fall back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if set,
// otherwise the koanf value, or default. Accepts Go duration syntax ("10m", "90s").
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all configuration values are in range.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.ClusterRadiusM <= 0 {
		errs = append(errs, ErrInvalidClusterRadius)
	}
	if c.ClusterWindow <= 0 {
		errs = append(errs, ErrInvalidClusterWindow)
	}
	if c.PresenceTTL <= 0 {
		errs = append(errs, ErrInvalidPresenceTTL)
	}
	if c.RateLimitGlobal <= 0 || c.RateLimitWrite <= 0 || c.RateLimitQuery <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"cluster_radius_m":      fmt.Sprintf("%g", c.ClusterRadiusM),
		"cluster_window":        c.ClusterWindow.String(),
		"presence_ttl":          c.PresenceTTL.String(),
		"redis_addr":            valueOrUnset(c.RedisAddr),
		"redis_password":        maskSecret(c.RedisPassword),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"rate_limit_global":     fmt.Sprintf("%d", c.RateLimitGlobal),
		"rate_limit_write":      fmt.Sprintf("%d", c.RateLimitWrite),
		"rate_limit_query":      fmt.Sprintf("%d", c.RateLimitQuery),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_endpoint":      valueOrUnset(c.TracingEndpoint),
		"tracing_sampling_rate": fmt.Sprintf("%g", c.TracingSamplingRate),
		"metrics_enabled":       fmt.Sprintf("%t", c.MetricsEnabled),
		"profiling_enabled":     fmt.Sprintf("%t", c.ProfilingEnabled),
		"idempotency_enabled":   fmt.Sprintf("%t", c.IdempotencyEnabled),
	}
}

// valueOrUnset returns the value or a placeholder when empty.
func valueOrUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}
