package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, level Level) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := New(Config{LogDir: dir, Level: level, RetentionDays: 1, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, filepath.Join(dir, "sheptun.log")
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(data)
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"error", ERROR},
		{"", INFO},
		{"bogus", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_WritesLeveledMessages(t *testing.T) {
	l, path := newTestLogger(t, DEBUG)

	l.Debug("debug message %d", 1)
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	content := readLog(t, path)
	for _, want := range []string{"[DEBUG] debug message 1", "[INFO] info message", "[WARN] warn message", "[ERROR] error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("Log missing %q:\n%s", want, content)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, path := newTestLogger(t, WARN)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")

	content := readLog(t, path)
	if strings.Contains(content, "hidden") {
		t.Errorf("Messages below WARN must be filtered:\n%s", content)
	}
	if !strings.Contains(content, "visible warn") {
		t.Errorf("WARN message missing:\n%s", content)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, path := newTestLogger(t, ERROR)

	l.Info("before")
	l.SetLevel(INFO)
	l.Info("after")

	content := readLog(t, path)
	if strings.Contains(content, "before") {
		t.Error("INFO must be filtered at ERROR level")
	}
	if !strings.Contains(content, "after") {
		t.Error("INFO must pass after SetLevel(INFO)")
	}
}
