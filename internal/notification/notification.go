package notification

import (
	"fmt"
	"os/exec"
	"strings"
)

// Manager posts user-facing notifications through the macOS
// Notification Center via osascript.
type Manager struct {
	appName string
}

// NewManager creates a notification manager titled with the app name
func NewManager(appName string) *Manager {
	return &Manager{appName: appName}
}

// Send posts a notification with the given title and message
func (m *Manager) Send(title, message string) error {
	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		escapeAppleScript(message),
		escapeAppleScript(title),
	)

	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// Info posts an informational notification titled with the app name
func (m *Manager) Info(message string) error {
	return m.Send(m.appName, message)
}

// Error posts an error notification
func (m *Manager) Error(message string) error {
	return m.Send(m.appName+" Error", message)
}

// TranscriptionComplete announces a finished transcription with a
// short preview of the pasted text.
func (m *Manager) TranscriptionComplete(text string) error {
	return m.Info("Transcribed: " + preview(text, 60))
}

// AccessibilityDenied tells the user keystroke synthesis is blocked
func (m *Manager) AccessibilityDenied() error {
	return m.Error("Accessibility permission denied. Pasting will not work until it is enabled in System Settings.")
}

func preview(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}

func escapeAppleScript(s string) string {
	// Backslashes first so later escapes are not doubled
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
