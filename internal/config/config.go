package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config holds application configuration
type Config struct {
	Hotkey         HotkeyConfig `json:"hotkey"`
	APIEndpoint    string       `json:"api_endpoint"`
	APIKey         string       `json:"api_key"`
	Model          string       `json:"model"`
	Temperature    float64      `json:"temperature"`
	Language       string       `json:"language"`     // "" or "auto" for automatic detection
	AudioDevice    string       `json:"audio_device"` // numeric device ID or "default"
	MaxRecordTime  int          `json:"max_record_time"`  // seconds
	PasteSplitSize int          `json:"paste_split_size"` // characters
	LogLevel       string       `json:"log_level"`
	mu             sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"` // e.g., "Space"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "Space",
		},
		APIEndpoint:    "", // empty = provider default
		APIKey:         "", // user must supply via settings
		Model:          "whisper-1",
		Temperature:    0.0,
		Language:       "auto",
		AudioDevice:    "default",
		MaxRecordTime:  60,
		PasteSplitSize: 500,
		LogLevel:       "info",
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// Missing file is not an error: first run uses defaults
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Backfill values an older config file may lack
	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "Space"
	}
	if config.Model == "" {
		config.Model = "whisper-1"
	}
	if config.AudioDevice == "" {
		config.AudioDevice = "default"
	}

	return &config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the API key; keep it owner-readable only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "Sheptun", "config.json")
}

// Update applies a partial update from a JSON-decoded map
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "api_endpoint":
			if v, ok := value.(string); ok {
				c.APIEndpoint = v
			}
		case "api_key":
			if v, ok := value.(string); ok {
				c.APIKey = v
			}
		case "model":
			if v, ok := value.(string); ok {
				if v == "" {
					return fmt.Errorf("model cannot be empty")
				}
				c.Model = v
			}
		case "temperature":
			if v, ok := value.(float64); ok {
				if v < 0 || v > 1 {
					return fmt.Errorf("temperature must be between 0 and 1, got %v", v)
				}
				c.Temperature = v
			}
		case "language":
			if v, ok := value.(string); ok {
				c.Language = v
			}
		case "audio_device":
			if v, ok := value.(string); ok {
				if v == "" {
					v = "default"
				}
				c.AudioDevice = v
			}
		case "max_record_time":
			if v, ok := value.(float64); ok {
				if v <= 0 {
					return fmt.Errorf("max_record_time must be positive, got %v", v)
				}
				c.MaxRecordTime = int(v)
			}
		case "paste_split_size":
			if v, ok := value.(float64); ok {
				c.PasteSplitSize = int(v)
			}
		case "log_level":
			if v, ok := value.(string); ok {
				c.LogLevel = v
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Hotkey:         c.Hotkey,
		APIEndpoint:    c.APIEndpoint,
		APIKey:         c.APIKey,
		Model:          c.Model,
		Temperature:    c.Temperature,
		Language:       c.Language,
		AudioDevice:    c.AudioDevice,
		MaxRecordTime:  c.MaxRecordTime,
		PasteSplitSize: c.PasteSplitSize,
		LogLevel:       c.LogLevel,
	}
}

// Session-settings accessors. These satisfy the session controller's
// Settings interface so the live config is the single source of truth.

// DeviceSelection returns the stored input device selection
func (c *Config) DeviceSelection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AudioDevice
}

// GetAPIKey returns the configured API key
func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.APIKey
}

// GetModel returns the configured transcription model
func (c *Config) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Model
}

// GetTemperature returns the configured sampling temperature
func (c *Config) GetTemperature() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Temperature
}

// GetMaxRecordTime returns the recording limit in seconds
func (c *Config) GetMaxRecordTime() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxRecordTime
}

// GetLanguage returns the language hint, empty for auto-detection
func (c *Config) GetLanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Language == "auto" {
		return ""
	}
	return c.Language
}
