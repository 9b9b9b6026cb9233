package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv removes every environment variable that Load reads so tests
// start from a clean slate.
func clearEnv() {
	for _, key := range []string{
		"CROWDLENS_PORT", "PORT",
		"CROWDLENS_ENV", "ENV", "GO_ENV",
		"CLUSTER_RADIUS_M", "CLUSTER_WINDOW", "PRESENCE_TTL",
		"REDIS_ADDR", "REDIS_PASSWORD",
		"CORS_ALLOWED_ORIGINS",
		"RATE_LIMIT_GLOBAL", "RATE_LIMIT_WRITE", "RATE_LIMIT_QUERY",
		"TRACING_ENABLED", "TRACING_EXPORTER", "TRACING_ENDPOINT",
		"TRACING_SAMPLING_RATE", "TRACING_INSECURE",
		"METRICS_ENABLED", "PROFILING_ENABLED", "IDEMPOTENCY_ENABLED",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()
	defer clearEnv()

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() returned %d errors, want 0. Errors: %v", len(errs), errs)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("Env = %s, want %s", cfg.Env, DefaultEnv)
	}
	if cfg.ClusterRadiusM != DefaultClusterRadiusM {
		t.Errorf("ClusterRadiusM = %g, want %g", cfg.ClusterRadiusM, DefaultClusterRadiusM)
	}
	if cfg.ClusterWindow != DefaultClusterWindow {
		t.Errorf("ClusterWindow = %s, want %s", cfg.ClusterWindow, DefaultClusterWindow)
	}
	if cfg.PresenceTTL != DefaultPresenceTTL {
		t.Errorf("PresenceTTL = %s, want %s", cfg.PresenceTTL, DefaultPresenceTTL)
	}
	if cfg.RateLimitGlobal != DefaultRateLimitGlobal {
		t.Errorf("RateLimitGlobal = %d, want %d", cfg.RateLimitGlobal, DefaultRateLimitGlobal)
	}
	if cfg.RateLimitWrite != DefaultRateLimitWrite {
		t.Errorf("RateLimitWrite = %d, want %d", cfg.RateLimitWrite, DefaultRateLimitWrite)
	}
	if cfg.RateLimitQuery != DefaultRateLimitQuery {
		t.Errorf("RateLimitQuery = %d, want %d", cfg.RateLimitQuery, DefaultRateLimitQuery)
	}
	if cfg.TracingEnabled {
		t.Error("TracingEnabled should default to false")
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should default to true")
	}
	if !cfg.IdempotencyEnabled {
		t.Error("IdempotencyEnabled should default to true")
	}
	if cfg.ProfilingEnabled {
		t.Error("ProfilingEnabled should default to false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("CROWDLENS_PORT", "9090")
	os.Setenv("CROWDLENS_ENV", "production")
	os.Setenv("CLUSTER_RADIUS_M", "75.5")
	os.Setenv("CLUSTER_WINDOW", "5m")
	os.Setenv("PRESENCE_TTL", "2m")
	os.Setenv("REDIS_ADDR", "redis.internal:6379")
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	os.Setenv("RATE_LIMIT_WRITE", "40")
	os.Setenv("TRACING_ENABLED", "true")
	os.Setenv("TRACING_EXPORTER", "otlp-grpc")
	os.Setenv("TRACING_SAMPLING_RATE", "0.5")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() returned %d errors, want 0. Errors: %v", len(errs), errs)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %s, want production", cfg.Env)
	}
	if cfg.ClusterRadiusM != 75.5 {
		t.Errorf("ClusterRadiusM = %g, want 75.5", cfg.ClusterRadiusM)
	}
	if cfg.ClusterWindow != 5*time.Minute {
		t.Errorf("ClusterWindow = %s, want 5m", cfg.ClusterWindow)
	}
	if cfg.PresenceTTL != 2*time.Minute {
		t.Errorf("PresenceTTL = %s, want 2m", cfg.PresenceTTL)
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("RedisAddr = %s, want redis.internal:6379", cfg.RedisAddr)
	}
	if len(cfg.CORSAllowedOrigins) != 2 ||
		cfg.CORSAllowedOrigins[0] != "https://app.example.com" ||
		cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORSAllowedOrigins = %v, want two trimmed origins", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitWrite != 40 {
		t.Errorf("RateLimitWrite = %d, want 40", cfg.RateLimitWrite)
	}
	if !cfg.TracingEnabled {
		t.Error("TracingEnabled should be true")
	}
	if cfg.TracingExporter != "otlp-grpc" {
		t.Errorf("TracingExporter = %s, want otlp-grpc", cfg.TracingExporter)
	}
	if cfg.TracingSamplingRate != 0.5 {
		t.Errorf("TracingSamplingRate = %g, want 0.5", cfg.TracingSamplingRate)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"non-integer port", map[string]string{"CROWDLENS_PORT": "not-a-port"}},
		{"non-duration window", map[string]string{"CLUSTER_WINDOW": "ten minutes"}},
		{"non-float radius", map[string]string{"CLUSTER_RADIUS_M": "fifty"}},
		{"negative radius", map[string]string{"CLUSTER_RADIUS_M": "-50"}},
		{"sampling rate above one", map[string]string{"TRACING_SAMPLING_RATE": "1.5"}},
		{"zero write limit", map[string]string{"RATE_LIMIT_WRITE": "-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			defer clearEnv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			_, errs := Load("")
			if len(errs) == 0 {
				t.Errorf("Load() returned no errors for %s", tt.name)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv()
	defer clearEnv()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
port: 9999
env: staging
cluster_radius_m: 30
cluster_window: 15m
presence_ttl: 45s
redis_addr: file-redis:6379
rate_limit_query: 120
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("Load() returned %d errors, want 0. Errors: %v", len(errs), errs)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("Env = %s, want staging", cfg.Env)
	}
	if cfg.ClusterRadiusM != 30 {
		t.Errorf("ClusterRadiusM = %g, want 30", cfg.ClusterRadiusM)
	}
	if cfg.ClusterWindow != 15*time.Minute {
		t.Errorf("ClusterWindow = %s, want 15m", cfg.ClusterWindow)
	}
	if cfg.PresenceTTL != 45*time.Second {
		t.Errorf("PresenceTTL = %s, want 45s", cfg.PresenceTTL)
	}
	if cfg.RedisAddr != "file-redis:6379" {
		t.Errorf("RedisAddr = %s, want file-redis:6379", cfg.RedisAddr)
	}
	if cfg.RateLimitQuery != 120 {
		t.Errorf("RateLimitQuery = %d, want 120", cfg.RateLimitQuery)
	}
}

func TestLoad_EnvTakesPrecedenceOverFile(t *testing.T) {
	clearEnv()
	defer clearEnv()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9999\nenv: staging\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("CROWDLENS_PORT", "7070")
	os.Setenv("CROWDLENS_ENV", "production")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("Load() returned %d errors, want 0. Errors: %v", len(errs), errs)
	}

	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want env override 7070", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %s, want env override production", cfg.Env)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv()
	defer clearEnv()

	_, errs := Load("/nonexistent/config.yaml")
	if len(errs) != 1 {
		t.Fatalf("Load() returned %d errors, want 1", len(errs))
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{
		Port:                8080,
		Env:                 "development",
		ClusterRadiusM:      50,
		ClusterWindow:       10 * time.Minute,
		PresenceTTL:         90 * time.Second,
		RateLimitGlobal:     100,
		RateLimitWrite:      20,
		RateLimitQuery:      60,
		TracingSamplingRate: 0.1,
	}
	if errs := valid.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero port", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"port too large", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"zero radius", func(c *Config) { c.ClusterRadiusM = 0 }, ErrInvalidClusterRadius},
		{"negative window", func(c *Config) { c.ClusterWindow = -time.Minute }, ErrInvalidClusterWindow},
		{"zero presence ttl", func(c *Config) { c.PresenceTTL = 0 }, ErrInvalidPresenceTTL},
		{"zero global limit", func(c *Config) { c.RateLimitGlobal = 0 }, ErrInvalidRateLimit},
		{"sampling rate negative", func(c *Config) { c.TracingSamplingRate = -0.1 }, ErrInvalidSamplingRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)

			errs := cfg.Validate()
			found := false
			for _, err := range errs {
				if err == tt.wantErr {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want to contain %v", errs, tt.wantErr)
			}
		})
	}
}

func TestConfig_LogSummary(t *testing.T) {
	cfg := &Config{
		Port:            8080,
		Env:             "production",
		ClusterRadiusM:  50,
		ClusterWindow:   10 * time.Minute,
		PresenceTTL:     90 * time.Second,
		RedisAddr:       "redis.internal:6379",
		RedisPassword:   "supersecretpassword",
		RateLimitGlobal: 100,
		RateLimitWrite:  20,
		RateLimitQuery:  60,
	}

	summary := cfg.LogSummary()

	if summary["port"] != "8080" {
		t.Errorf("port = %s, want 8080", summary["port"])
	}
	if summary["cluster_window"] != "10m0s" {
		t.Errorf("cluster_window = %s, want 10m0s", summary["cluster_window"])
	}
	if summary["redis_addr"] != "redis.internal:6379" {
		t.Errorf("redis_addr = %s, want redis.internal:6379", summary["redis_addr"])
	}
	if summary["redis_password"] != "supe****" {
		t.Errorf("redis_password = %s, want masked value", summary["redis_password"])
	}
	if summary["tracing_endpoint"] != "<not set>" {
		t.Errorf("tracing_endpoint = %s, want <not set>", summary["tracing_endpoint"])
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "<not set>"},
		{"short", "abc", "****"},
		{"long", "supersecretvalue", "supe****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
