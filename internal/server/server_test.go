package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func startTestServer(t *testing.T, api http.Handler) *Server {
	t.Helper()
	config := DefaultConfig()
	config.Port = 0 // random free port
	s := New(config, api)
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestServer_ServesSettingsPage(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := http.Get(s.URL() + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Sheptun Settings") {
		t.Error("Settings page content missing")
	}
}

func TestServer_MountsAPIHandler(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("api-ok"))
	})
	s := startTestServer(t, api)

	resp, err := http.Get(s.URL() + "/api/anything")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "api-ok" {
		t.Errorf("Expected API handler response, got %q", body)
	}
}

func TestServer_UnknownPathIs404(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := http.Get(s.URL() + "/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	s := startTestServer(t, nil)

	if err := s.Start(); err == nil {
		t.Error("Second Start must fail")
	}
}

func TestServer_StopIsIdempotent(t *testing.T) {
	config := DefaultConfig()
	config.Port = 0
	s := New(config, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Second Stop must be a no-op, got %v", err)
	}
	if s.IsRunning() {
		t.Error("Server must not report running after Stop")
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		origin      string
		wantAllowed bool
	}{
		{"localhost allowed", "http://localhost:3000", true},
		{"loopback allowed", "http://127.0.0.1:18765", true},
		{"external denied", "http://evil.example.com", false},
		{"https external denied", "https://localhost.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed && got != tt.origin {
				t.Errorf("Expected origin %q allowed, got %q", tt.origin, got)
			}
			if !tt.wantAllowed && got != "" {
				t.Errorf("Expected origin %q blocked, got %q", tt.origin, got)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/settings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Preflight must return 200, got %d", rec.Code)
	}
	if called {
		t.Error("Preflight must not reach the inner handler")
	}
}
