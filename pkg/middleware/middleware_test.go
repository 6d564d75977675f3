package middleware_test

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/nexus/pkg/middleware"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	var c middleware.Chain
	c.Use(tag("outer"))
	c.Use(tag("inner"))

	c.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order = %s, want outer,inner,handler", got)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated", incoming: ""},
		{name: "reused", incoming: "batch-42", keep: true},
		{name: "whitespace replaced", incoming: "two words"},
		{name: "oversized replaced", incoming: strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.RequestIDFrom(r.Context())
			}))

			req := httptest.NewRequest("GET", "/jobs", nil)
			if tt.incoming != "" {
				req.Header.Set(middleware.RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("handler saw no request id")
			}
			if got := rec.Header().Get(middleware.RequestIDHeader); got != seen {
				t.Errorf("response id = %q, handler saw %q", got, seen)
			}
			if tt.keep != (seen == tt.incoming) {
				t.Errorf("id = %q, incoming %q, keep %v", seen, tt.incoming, tt.keep)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	cfg := &middleware.CORSConfig{
		Enabled:          true,
		Origins:          []string{"http://app.local"},
		AllowCredentials: true,
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name          string
		cfg           *middleware.CORSConfig
		method        string
		origin        string
		preflight     bool
		wantCode      int
		wantOrigin    string
		wantMethods   bool
		wantPassDown  bool
		wantCredsFlag bool
	}{
		{name: "disabled", cfg: &middleware.CORSConfig{Origins: []string{"http://app.local"}}, method: "GET", origin: "http://app.local", wantCode: 200, wantPassDown: true},
		{name: "same origin", cfg: cfg, method: "GET", wantCode: 200, wantPassDown: true},
		{name: "admitted", cfg: cfg, method: "GET", origin: "http://app.local", wantCode: 200, wantOrigin: "http://app.local", wantPassDown: true, wantCredsFlag: true},
		{name: "not admitted", cfg: cfg, method: "GET", origin: "http://evil.local", wantCode: 200, wantPassDown: true},
		{name: "preflight", cfg: cfg, method: "OPTIONS", origin: "http://app.local", preflight: true, wantCode: 204, wantOrigin: "http://app.local", wantMethods: true, wantCredsFlag: true},
		{name: "preflight not admitted", cfg: cfg, method: "OPTIONS", origin: "http://evil.local", preflight: true, wantCode: 403},
		{
			name:         "wildcard",
			cfg:          &middleware.CORSConfig{Enabled: true, Origins: []string{"*"}},
			method:       "POST",
			origin:       "http://any.local",
			wantCode:     200,
			wantOrigin:   "http://any.local",
			wantPassDown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			handler := middleware.CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				ok(w, r)
			}))

			req := httptest.NewRequest(tt.method, "/jobs", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if reached != tt.wantPassDown {
				t.Errorf("reached handler = %v, want %v", reached, tt.wantPassDown)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods") != ""; got != tt.wantMethods {
				t.Errorf("allow-methods present = %v, want %v", got, tt.wantMethods)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCredsFlag {
				t.Errorf("allow-credentials = %v, want %v", got, tt.wantCredsFlag)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{status: http.StatusAccepted, wantLevel: "level=INFO"},
		{status: http.StatusConflict, wantLevel: "level=WARN"},
		{status: http.StatusServiceUnavailable, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			var chain middleware.Chain
			chain.Use(middleware.RequestID, middleware.Logger(logger))
			handler := chain.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, "body")
			}))

			req := httptest.NewRequest("POST", "/jobs", nil)
			req.Header.Set(middleware.RequestIDHeader, "req-1")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			for _, want := range []string{tt.wantLevel, fmt.Sprintf("status=%d", tt.status), "bytes=4", "request_id=req-1"} {
				if !strings.Contains(out, want) {
					t.Errorf("log missing %q: %s", want, out)
				}
			}
		})
	}
}

func TestCORSConfigFinalize(t *testing.T) {
	t.Setenv("TEST_CORS_ENABLED", "true")
	t.Setenv("TEST_CORS_ORIGINS", "http://a.com, ,http://b.com")
	t.Setenv("TEST_CORS_MAX_AGE", "600")

	cfg := middleware.CORSConfig{}
	err := cfg.Finalize(&middleware.CORSEnv{
		Enabled: "TEST_CORS_ENABLED",
		Origins: "TEST_CORS_ORIGINS",
		MaxAge:  "TEST_CORS_MAX_AGE",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !cfg.Enabled {
		t.Error("enabled should be true")
	}
	if strings.Join(cfg.Origins, " ") != "http://a.com http://b.com" {
		t.Errorf("origins = %v", cfg.Origins)
	}
	if cfg.MaxAge != 600 {
		t.Errorf("max_age = %d, want 600", cfg.MaxAge)
	}
	if strings.Join(cfg.AllowedHeaders, ",") != "Content-Type,Authorization,X-Request-ID" {
		t.Errorf("allowed_headers = %v", cfg.AllowedHeaders)
	}

	bad := middleware.CORSConfig{Origins: []string{"*"}, AllowCredentials: true}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error for credentials with wildcard origin")
	}
}

func TestCORSConfigMerge(t *testing.T) {
	base := middleware.CORSConfig{
		Origins:        []string{"http://base.com"},
		AllowedMethods: []string{"GET"},
		MaxAge:         3600,
	}

	base.Merge(&middleware.CORSConfig{
		Enabled: true,
		Origins: []string{"http://overlay.com"},
	})

	if !base.Enabled {
		t.Error("enabled should be true after merge")
	}
	if len(base.Origins) != 1 || base.Origins[0] != "http://overlay.com" {
		t.Errorf("origins = %v", base.Origins)
	}
	if len(base.AllowedMethods) != 1 {
		t.Errorf("allowed_methods = %v, want kept", base.AllowedMethods)
	}
	if base.MaxAge != 3600 {
		t.Errorf("max_age = %d, want 3600 kept", base.MaxAge)
	}
}
