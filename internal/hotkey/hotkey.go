package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

// Binding is a global shortcut: a set of modifiers plus one key.
type Binding struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
}

// DefaultBinding returns the default shortcut, Ctrl+Option+Space.
func DefaultBinding() Binding {
	return Binding{
		Modifiers: []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
		Key:       hotkey.KeySpace,
	}
}

// ParseBinding builds a binding from config fields. At least one
// modifier is required so a bare key cannot swallow normal typing.
func ParseBinding(ctrl, shift, alt, cmd bool, key string) (Binding, error) {
	var mods []hotkey.Modifier
	if ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if shift {
		mods = append(mods, hotkey.ModShift)
	}
	if alt {
		mods = append(mods, hotkey.ModOption)
	}
	if cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Binding{}, fmt.Errorf("hotkey requires at least one modifier")
	}

	k, err := keyFromString(key)
	if err != nil {
		return Binding{}, err
	}

	return Binding{Modifiers: mods, Key: k}, nil
}

// Manager owns the OS-level registration of one global shortcut and
// emits a trigger for every press. Press/release pairing is not
// surfaced: the caller toggles on each trigger.
type Manager struct {
	mu       sync.Mutex
	hk       *hotkey.Hotkey
	binding  Binding
	triggers chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewManager creates an unregistered hotkey manager
func NewManager() *Manager {
	return &Manager{binding: DefaultBinding()}
}

// Register claims the shortcut with the system and starts listening.
// A running manager must be Closed before re-registering.
func (m *Manager) Register(binding Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already registered, call Close() first")
	}

	hk := hotkey.New(binding.Modifiers, binding.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", binding, err)
	}

	m.hk = hk
	m.binding = binding
	m.triggers = make(chan struct{}, 10)
	m.stop = make(chan struct{})
	m.running = true

	m.wg.Add(1)
	go m.listen(hk, m.triggers, m.stop)

	return nil
}

func (m *Manager) listen(hk *hotkey.Hotkey, triggers chan<- struct{}, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-hk.Keydown():
			select {
			case triggers <- struct{}{}:
			default:
				// Consumer is behind; dropping is better than queueing
				// presses that would toggle recording long after the fact.
			}
		case <-stop:
			return
		}
	}
}

// Triggers returns the channel receiving one value per hotkey press.
// Nil until Register succeeds.
func (m *Manager) Triggers() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers
}

// Binding returns the currently registered binding
func (m *Manager) Binding() Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.binding
	b.Modifiers = append([]hotkey.Modifier(nil), m.binding.Modifiers...)
	return b
}

// IsRunning reports whether a shortcut is currently registered
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Close unregisters the shortcut and stops the listener. Safe to call
// when not running. The running flag clears even if Unregister fails
// so a later Register can retry.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	close(m.stop)
	m.wg.Wait()

	var unregisterErr error
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		m.hk = nil
	}

	close(m.triggers)
	m.triggers = nil
	m.running = false

	return unregisterErr
}

// String renders the binding with macOS modifier glyphs, e.g. ⌃⌥Space.
func (b Binding) String() string {
	result := ""
	for _, mod := range b.Modifiers {
		switch mod {
		case hotkey.ModCtrl:
			result += "⌃"
		case hotkey.ModShift:
			result += "⇧"
		case hotkey.ModOption:
			result += "⌥"
		case hotkey.ModCmd:
			result += "⌘"
		}
	}
	return result + keyToString(b.Key)
}

// namedKeys maps config key names to hotkey constants. The mapping is
// explicit per key: on macOS the constants are Carbon virtual keycodes,
// which are neither contiguous nor alphabetical, so no arithmetic over
// the rune can produce them.
var namedKeys = map[string]hotkey.Key{
	"Space":  hotkey.KeySpace,
	"Escape": hotkey.KeyEscape,
	"Return": hotkey.KeyReturn,
	"Tab":    hotkey.KeyTab,
	"Delete": hotkey.KeyDelete,

	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD,
	"E": hotkey.KeyE, "F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH,
	"I": hotkey.KeyI, "J": hotkey.KeyJ, "K": hotkey.KeyK, "L": hotkey.KeyL,
	"M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO, "P": hotkey.KeyP,
	"Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX,
	"Y": hotkey.KeyY, "Z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
}

var keyNames = func() map[hotkey.Key]string {
	names := make(map[hotkey.Key]string, len(namedKeys))
	for name, key := range namedKeys {
		names[key] = name
	}
	return names
}()

func keyFromString(name string) (hotkey.Key, error) {
	if k, ok := namedKeys[strings.ToUpper(name)]; ok {
		return k, nil
	}
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unsupported hotkey key %q", name)
}

func keyToString(key hotkey.Key) string {
	if name, ok := keyNames[key]; ok {
		return name
	}
	return "Unknown"
}
