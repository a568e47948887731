package clipboard

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>

int pasteboard_change_count() {
    return (int)[[NSPasteboard generalPasteboard] changeCount];
}
*/
import "C"
import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// Manager delivers text into the focused application via the system
// pasteboard and a synthesized Cmd+V, restoring the user's previous
// clipboard contents afterwards when it is safe to do so.
type Manager struct {
	savedChangeCount int
	savedContent     string
	restoreDelay     time.Duration
	splitSize        int
	splitInterval    time.Duration
}

// Config holds clipboard manager configuration
type Config struct {
	RestoreDelay  time.Duration // wait before restoring the clipboard (default: 500ms)
	SplitSize     int           // maximum characters per paste (default: 500)
	SplitInterval time.Duration // pause between split pastes (default: 50ms)
}

// DefaultConfig returns the default clipboard configuration
func DefaultConfig() Config {
	return Config{
		RestoreDelay:  500 * time.Millisecond,
		SplitSize:     500,
		SplitInterval: 50 * time.Millisecond,
	}
}

// NewManager creates a new clipboard manager
func NewManager(config Config) *Manager {
	if config.RestoreDelay <= 0 {
		config.RestoreDelay = 500 * time.Millisecond
	}
	if config.SplitSize <= 0 {
		config.SplitSize = 500
	}
	if config.SplitInterval <= 0 {
		config.SplitInterval = 50 * time.Millisecond
	}
	return &Manager{
		restoreDelay:  config.RestoreDelay,
		splitSize:     config.SplitSize,
		splitInterval: config.SplitInterval,
	}
}

// ChangeCount returns the pasteboard change count. Every write to the
// pasteboard, by any process, increments it.
func ChangeCount() int {
	return int(C.pasteboard_change_count())
}

// Paste delivers text into the focused application. Long text is
// split into chunks so slow target apps do not drop input.
func (m *Manager) Paste(text string) error {
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= m.splitSize {
		return m.pasteOnce(text)
	}

	chunks := splitAtBoundaries(text, m.splitSize)
	for i, chunk := range chunks {
		if err := m.pasteOnce(chunk); err != nil {
			return fmt.Errorf("failed to paste chunk %d of %d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			time.Sleep(m.splitInterval)
		}
	}
	return nil
}

func (m *Manager) pasteOnce(text string) error {
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to save clipboard: %w", err)
	}

	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	// Give the pasteboard a moment to settle before synthesizing the keystroke
	time.Sleep(10 * time.Millisecond)
	robotgo.KeyTap("v", "cmd")

	m.restore()
	return nil
}

func (m *Manager) save() error {
	m.savedChangeCount = ChangeCount()
	content, err := robotgo.ReadAll()
	if err != nil {
		return err
	}
	m.savedContent = content
	return nil
}

// restore puts the user's clipboard back, but only if ours was the
// sole write since save. A different change count means the user (or
// another app) touched the pasteboard mid-paste; restoring then would
// clobber their data.
func (m *Manager) restore() {
	time.Sleep(m.restoreDelay)
	if ChangeCount() == m.savedChangeCount+1 {
		robotgo.WriteAll(m.savedContent)
	}
}

// splitAtBoundaries splits text into chunks of at most size runes,
// preferring to break at punctuation or newlines near the chunk end.
func splitAtBoundaries(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Search the tail of the chunk for a natural break point
		searchStart := end - 50
		if searchStart < start {
			searchStart = start
		}
		split := end
		for i := end - 1; i >= searchStart; i-- {
			if isBreakRune(runes[i]) {
				split = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[start:split]))
		start = split
	}
	return chunks
}

func isBreakRune(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', '\n', '。', '、':
		return true
	}
	return false
}
