// Package main contains integration tests for the API server.
package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/crowdlens/crowdlens/internal/middleware"
)

func TestIsStreamEnd(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/streams/abc-123/end", true},
		{"/streams/550e8400-e29b-41d4-a716-446655440000/end", true},
		{"/streams", false},
		{"/streams/abc-123", false},
		{"/streams//end", false},
		{"/events/abc/end", false},
		{"/end", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isStreamEnd(tt.path); got != tt.want {
			t.Errorf("isStreamEnd(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsViewportQuery(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/streams/live", true},
		{"/events/live", true},
		{"/events/range", true},
		{"/streams", false},
		{"/events/abc-123", false},
		{"/health", false},
	}
	for _, tt := range tests {
		if got := isViewportQuery(tt.path); got != tt.want {
			t.Errorf("isViewportQuery(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// limitAwareStore blocks any request routed through a zero-request limit
// config and allows everything else, so tests can tell which limiter
// handled a given path.
type limitAwareStore struct{}

func (limitAwareStore) Allow(_ context.Context, _ string, cfg middleware.RateLimitConfig) (bool, int) {
	if cfg.RequestsPerWindow == 0 {
		return false, 1
	}
	return true, 0
}

func TestRouteRateLimits_Classification(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Zero-request write limit blocks stream lifecycle calls immediately;
	// the query surface stays open.
	write := middleware.RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}
	query := middleware.RateLimitConfig{RequestsPerWindow: 1000, WindowDuration: time.Minute}
	handler := routeRateLimits(next, limitAwareStore{}, write, query)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodPost, "/streams", http.StatusTooManyRequests},
		{http.MethodPost, "/streams/abc/end", http.StatusTooManyRequests},
		{http.MethodGet, "/events/live", http.StatusOK},
		{http.MethodGet, "/streams/live", http.StatusOK},
		{http.MethodGet, "/events/range", http.StatusOK},
		{http.MethodGet, "/streams/abc", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.wantStatus {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
		}
	}
}

func TestGracefulShutdown_InFlightRequests(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := listener.Addr().String()

	handlerStarted := make(chan struct{})
	handlerCanContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/events/live", func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		<-handlerCanContinue
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"events":[],"streams":[]}`))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverStopped := make(chan struct{})
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(serverStopped)
	}()

	requestDone := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/events/live")
		if err != nil {
			t.Errorf("request error: %v", err)
			requestDone <- 0
			return
		}
		resp.Body.Close()
		requestDone <- resp.StatusCode
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler failed to start in time")
	}

	// Shutdown while the request is still in flight
	shutdownDone := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			t.Errorf("shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(handlerCanContinue)

	select {
	case status := <-requestDone:
		if status != http.StatusOK {
			t.Errorf("in-flight request status = %d, want 200", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("request failed to complete in time")
	}

	select {
	case <-shutdownDone:
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown failed to complete in time")
	}
	select {
	case <-serverStopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}
}

func TestGracefulShutdown_CleanExit(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}

	server := &http.Server{Handler: http.NewServeMux()}
	go func() {
		_ = server.Serve(listener)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("expected clean shutdown, got error: %v", err)
	}
}

func TestSignalNotify(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = syscall.Kill(syscall.Getpid(), sig)
		}()

		select {
		case got := <-quit:
			if got != sig {
				t.Errorf("expected %v, got %v", sig, got)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("did not receive %v in time", sig)
		}
		signal.Stop(quit)
	}
}
