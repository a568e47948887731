package tray

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/getlantern/systray"
)

// State is the menu-bar presentation of the recording session
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateError
)

const appName = "Sheptun"

// Manager owns the menu-bar icon, its menu, and the live level meter
// shown next to the icon while recording.
type Manager struct {
	mu      sync.RWMutex
	state   State
	onReady func()

	onSettings     func()
	onDeviceChange func(deviceID int)
	onQuit         func()

	menuSettings *systray.MenuItem
	menuDevices  *systray.MenuItem
	menuQuit     *systray.MenuItem

	deviceItems   []*systray.MenuItem
	deviceCancels []context.CancelFunc

	icons map[State][]byte
}

// Config holds tray callbacks
type Config struct {
	OnReady        func()
	OnSettings     func()
	OnDeviceChange func(deviceID int)
	OnQuit         func()
}

// NewManager creates a tray manager
func NewManager(config Config) *Manager {
	return &Manager{
		state:          StateIdle,
		onReady:        config.OnReady,
		onSettings:     config.OnSettings,
		onDeviceChange: config.OnDeviceChange,
		onQuit:         config.OnQuit,
		icons: map[State][]byte{
			StateIdle:         renderIcon(color.NRGBA{R: 0xE3, G: 0xE3, B: 0xE3, A: 0xFF}),
			StateRecording:    renderIcon(color.NRGBA{R: 0xF1, G: 0x4E, B: 0x39, A: 0xFF}),
			StateTranscribing: renderIcon(color.NRGBA{R: 0xF1, G: 0x9E, B: 0x39, A: 0xFF}),
			StateError:        renderIcon(color.NRGBA{R: 0x8E, G: 0x8E, B: 0x8E, A: 0xFF}),
		},
	}
}

// Run starts the system tray loop. Blocks until Quit.
func (m *Manager) Run() {
	systray.Run(m.ready, func() {})
}

func (m *Manager) ready() {
	m.applyState()

	m.menuSettings = systray.AddMenuItem("Open Settings…", "Open the settings page")
	m.menuDevices = systray.AddMenuItem("Input Device", "Select the microphone to record from")
	systray.AddSeparator()
	m.menuQuit = systray.AddMenuItem("Quit", "Quit "+appName)

	go m.handleMenuEvents()

	if m.onReady != nil {
		m.onReady()
	}
}

func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuSettings.ClickedCh:
			if m.onSettings != nil {
				m.onSettings()
			}
		case <-m.menuQuit.ClickedCh:
			if m.onQuit != nil {
				m.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// SetState switches the icon and tooltip to reflect the session state
func (m *Manager) SetState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.applyState()
}

func (m *Manager) applyState() {
	systray.SetIcon(m.icons[m.state])
	switch m.state {
	case StateIdle:
		systray.SetTitle("")
		systray.SetTooltip(appName + " — idle")
	case StateRecording:
		systray.SetTooltip(appName + " — recording")
	case StateTranscribing:
		systray.SetTitle("")
		systray.SetTooltip(appName + " — transcribing")
	case StateError:
		systray.SetTitle("")
		systray.SetTooltip(appName + " — error")
	}
}

// SetLevel renders the normalized input level next to the icon while
// recording. Levels outside a recording session are ignored.
func (m *Manager) SetLevel(level float64) {
	m.mu.RLock()
	recording := m.state == StateRecording
	m.mu.RUnlock()
	if !recording {
		return
	}
	systray.SetTitle(levelGlyph(level))
}

var levelGlyphs = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

func levelGlyph(level float64) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	idx := int(level * float64(len(levelGlyphs)))
	if idx >= len(levelGlyphs) {
		idx = len(levelGlyphs) - 1
	}
	return levelGlyphs[idx]
}

// Device is one entry of the input-device submenu
type Device struct {
	ID        int
	Name      string
	IsDefault bool
	IsCurrent bool
}

// UpdateDeviceMenu replaces the device submenu entries. Stale click
// listeners from the previous menu are cancelled first.
func (m *Manager) UpdateDeviceMenu(devices []Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cancel := range m.deviceCancels {
		cancel()
	}
	m.deviceCancels = nil

	for _, item := range m.deviceItems {
		item.Hide()
	}
	m.deviceItems = nil

	for _, device := range devices {
		label := device.Name
		if device.IsCurrent {
			label = "✓ " + label
		}
		tooltip := ""
		if device.IsDefault {
			tooltip = "System default device"
		}

		item := m.menuDevices.AddSubMenuItem(label, tooltip)
		m.deviceItems = append(m.deviceItems, item)

		ctx, cancel := context.WithCancel(context.Background())
		m.deviceCancels = append(m.deviceCancels, cancel)

		go func(id int, item *systray.MenuItem, ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if m.onDeviceChange != nil {
						m.onDeviceChange(id)
					}
				}
			}
		}(device.ID, item, ctx)
	}
}

// Quit stops the tray loop
func (m *Manager) Quit() {
	systray.Quit()
}

// renderIcon draws a filled 16x16 circle in the given color. Template
// asset files are avoided so the binary stays self-contained.
func renderIcon(c color.NRGBA) []byte {
	const size = 16
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	cx, cy, r := float64(size)/2, float64(size)/2, float64(size)/2-2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
