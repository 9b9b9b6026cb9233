package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func passthroughHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestProfiling_Disabled(t *testing.T) {
	wrapped := Profiling(ProfilingConfig{
		Enabled:     false,
		Environment: "development",
	})(passthroughHandler("ok"))

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	// Disabled middleware must not intercept pprof paths.
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("expected pass-through, got status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestProfiling_BlockedInProduction(t *testing.T) {
	for _, env := range []string{"production", "prod"} {
		t.Run(env, func(t *testing.T) {
			wrapped := Profiling(ProfilingConfig{
				Enabled:     true,
				Environment: env,
			})(passthroughHandler("ok"))

			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
				t.Errorf("expected profiling blocked in %s, got status %d body %q", env, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestProfiling_ServesProfiles(t *testing.T) {
	wrapped := Profiling(ProfilingConfig{
		Enabled:     true,
		Environment: "development",
	})(passthroughHandler("should not reach here"))

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/heap", "/debug/pprof/goroutine"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() == "should not reach here" {
				t.Error("request reached the inner handler instead of pprof")
			}
		})
	}
}

func TestProfiling_NonProfilingRoute(t *testing.T) {
	wrapped := Profiling(ProfilingConfig{
		Enabled:     true,
		Environment: "development",
	})(passthroughHandler("viewport"))

	req := httptest.NewRequest(http.MethodGet, "/events/live", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "viewport" {
		t.Errorf("expected pass-through for app route, got status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestProfilingStatus(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		env     string
		want    []string
	}{
		{
			name:    "disabled in production",
			enabled: false,
			env:     "production",
			want:    []string{`"profiling_enabled": false`, `"status": "disabled"`},
		},
		{
			name:    "enabled in development",
			enabled: true,
			env:     "development",
			want:    []string{`"profiling_enabled": true`, `"status": "enabled"`, "/debug/pprof/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ProfilingStatus(ProfilingConfig{Enabled: tt.enabled, Environment: tt.env})

			req := httptest.NewRequest(http.MethodGet, "/profiling/status", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := rec.Body.String()
			for _, substr := range tt.want {
				if !strings.Contains(body, substr) {
					t.Errorf("body missing %q: %s", substr, body)
				}
			}
		})
	}
}

func BenchmarkProfiling_Passthrough(b *testing.B) {
	wrapped := Profiling(ProfilingConfig{
		Enabled:     true,
		Environment: "development",
	})(passthroughHandler("ok"))
	req := httptest.NewRequest(http.MethodGet, "/events/live", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}
}
