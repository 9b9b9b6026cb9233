// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/crowdlens/crowdlens/internal/api"
	"github.com/crowdlens/crowdlens/internal/cluster"
	"github.com/crowdlens/crowdlens/internal/config"
	"github.com/crowdlens/crowdlens/internal/event"
	"github.com/crowdlens/crowdlens/internal/health"
	"github.com/crowdlens/crowdlens/internal/idempotency"
	"github.com/crowdlens/crowdlens/internal/middleware"
	"github.com/crowdlens/crowdlens/internal/presence"
	"github.com/crowdlens/crowdlens/internal/query"
	"github.com/crowdlens/crowdlens/internal/spatial"
	"github.com/crowdlens/crowdlens/internal/stream"
	"github.com/crowdlens/crowdlens/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("CrowdLens API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  api.ServiceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	var (
		registry       *prometheus.Registry
		clusterMetrics *cluster.Metrics
		httpMetrics    *middleware.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		clusterMetrics = cluster.NewMetrics()
		if err := clusterMetrics.Register(registry); err != nil {
			logger.Error("failed to register cluster metrics", "error", err)
			os.Exit(1)
		}

		httpMetrics = middleware.NewMetrics()
		if err := httpMetrics.Register(registry); err != nil {
			logger.Error("failed to register http metrics", "error", err)
			os.Exit(1)
		}
	}

	// Core stores
	streams := stream.NewInMemoryRepository()
	events := event.NewInMemoryRepository()
	index := spatial.NewIndex()
	lifecycle := event.NewLifecycle(events, streams)

	engine := cluster.NewEngine(cluster.Config{
		RadiusM: cfg.ClusterRadiusM,
		Window:  cfg.ClusterWindow,
	}, streams, events, lifecycle, index, clusterMetrics)

	queries := query.NewService(streams, events, index)

	graph := presence.NewStaticFollowGraph()
	tracker := presence.NewTracker(cfg.PresenceTTL, graph)

	// Rate limit store: Redis when configured, in-memory otherwise
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
		redisClient    *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		store := middleware.NewRedisRateLimitStore(redisClient)
		if httpMetrics != nil {
			store = store.WithMetrics(httpMetrics)
		}
		rateLimitStore = store
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("rate limiting backed by redis", "addr", cfg.RedisAddr)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		rateLimitStore = memStore

		// Periodic cleanup keeps expired buckets from accumulating
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
	}

	// HTTP surface
	mux := api.NewRouter(
		api.NewStreamHandlers(engine, queries),
		api.NewEventHandlers(queries, tracker),
		api.NewPresenceHandlers(tracker, events),
		api.NewHealthHandlers(api.HealthHandlersConfig{
			RedisChecker:   redisChecker,
			MetricsEnabled: cfg.MetricsEnabled,
		}),
	)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux

	// Per-surface rate limits sit closest to the handlers
	writeLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitWrite,
		WindowDuration:    time.Minute,
	}
	queryLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitQuery,
		WindowDuration:    time.Minute,
	}
	globalLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitGlobal,
		WindowDuration:    time.Minute,
	}
	handler = routeRateLimits(handler, rateLimitStore, writeLimit, queryLimit)
	handler = middleware.RateLimiter(rateLimitStore, globalLimit, middleware.IPKeyFunc())(handler)

	if cfg.IdempotencyEnabled {
		idempotencyRepo := idempotency.NewInMemoryRepository()
		handler = middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
			"/streams": true,
		})(handler)

		stopCleanup := make(chan struct{})
		defer close(stopCleanup)
		go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, 24*time.Hour, stopCleanup)
	}

	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Request-ID"},
		MaxAge:         300,
	})(handler)

	if cfg.MetricsEnabled {
		handler = middleware.HTTPMetrics(httpMetrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(api.ServiceName)(handler)
	}
	handler = middleware.RequestID(handler)

	if cfg.ProfilingEnabled && cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}

	logger.Info("server stopped")
}

// routeRateLimits applies the tighter write limit to stream lifecycle calls
// and the query limit to viewport reads; everything else falls through to
// the global limit alone.
func routeRateLimits(next http.Handler, store middleware.RateLimitStore, write, query middleware.RateLimitConfig) http.Handler {
	writeLimited := middleware.RateLimiter(store, write, middleware.OwnerKeyFunc())(next)
	queryLimited := middleware.RateLimiter(store, query, middleware.IPKeyFunc())(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && (r.URL.Path == "/streams" || isStreamEnd(r.URL.Path)):
			writeLimited.ServeHTTP(w, r)
		case r.Method == http.MethodGet && isViewportQuery(r.URL.Path):
			queryLimited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func isStreamEnd(path string) bool {
	const prefix = "/streams/"
	const suffix = "/end"
	return len(path) > len(prefix)+len(suffix) &&
		path[:len(prefix)] == prefix &&
		path[len(path)-len(suffix):] == suffix
}

func isViewportQuery(path string) bool {
	switch path {
	case "/streams/live", "/events/live", "/events/range":
		return true
	}
	return false
}
