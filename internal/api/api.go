package api

import (
	"encoding/json"
	"net/http"

	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
	"github.com/1F47E/macos-sheptun-sub000/internal/config"
	"github.com/1F47E/macos-sheptun-sub000/internal/hotkey"
)

// PermissionReporter reports the grant state of required permissions
type PermissionReporter interface {
	CheckAll() map[string]bool
}

// Handler serves the settings JSON API. All routes are mounted under
// /api/ by the settings server.
type Handler struct {
	mux            *http.ServeMux
	config         *config.Config
	configPath     string
	lister         audio.Lister
	permissions    PermissionReporter
	onConfigChange func()
}

// Config holds API handler dependencies
type Config struct {
	AppConfig      *config.Config
	ConfigPath     string
	Lister         audio.Lister
	Permissions    PermissionReporter
	OnConfigChange func() // invoked after a successful settings save
}

// NewHandler creates the API handler
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		config:         cfg.AppConfig,
		configPath:     cfg.ConfigPath,
		lister:         cfg.Lister,
		permissions:    cfg.Permissions,
		onConfigChange: cfg.OnConfigChange,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/permissions", h.handlePermissions)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/hotkey/register", h.handleHotkeyRegister)
	h.mux = mux

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.config.Clone())
	case http.MethodPut:
		var updates map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if err := h.config.Update(updates); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.config.Save(h.configPath); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save settings: "+err.Error())
			return
		}
		if h.onConfigChange != nil {
			h.onConfigChange()
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type deviceResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	devices, err := h.lister.ListInputDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices: "+err.Error())
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceResponse{ID: d.ID, Name: d.Name, IsDefault: d.IsDefault})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": out})
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.permissions.CheckAll())
}

type hotkeyValidateRequest struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"`
}

type hotkeyValidateResponse struct {
	Valid     bool     `json:"valid"`
	Display   string   `json:"display,omitempty"`
	Error     string   `json:"error,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req hotkeyValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	binding, err := hotkey.ParseBinding(req.Ctrl, req.Shift, req.Alt, req.Cmd, req.Key)
	if err != nil {
		writeJSON(w, http.StatusOK, hotkeyValidateResponse{Valid: false, Error: err.Error()})
		return
	}

	resp := hotkeyValidateResponse{Valid: true, Display: binding.String()}
	for _, c := range hotkey.CheckConflicts(binding) {
		resp.Conflicts = append(resp.Conflicts, c.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHotkeyRegister validates the binding, persists it, and fires
// the change callback so the running hotkey is rebound.
func (h *Handler) handleHotkeyRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req hotkeyValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	binding, err := hotkey.ParseBinding(req.Ctrl, req.Shift, req.Alt, req.Cmd, req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]interface{}{
		"hotkey": map[string]interface{}{
			"ctrl":  req.Ctrl,
			"shift": req.Shift,
			"alt":   req.Alt,
			"cmd":   req.Cmd,
			"key":   req.Key,
		},
	}
	if err := h.config.Update(updates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.config.Save(h.configPath); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings: "+err.Error())
		return
	}
	if h.onConfigChange != nil {
		h.onConfigChange()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "display": binding.String()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
