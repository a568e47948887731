package audio

import (
	"errors"
	"strconv"
)

// Device represents an audio input device
type Device struct {
	ID         int
	Name       string
	IsDefault  bool
	SampleRate float64 // native sample rate reported by the hardware
}

// DefaultSelection is the sentinel meaning "use the system default input device".
const DefaultSelection = "default"

// ErrNoInputDevice is returned when no usable input device exists.
var ErrNoInputDevice = errors.New("no audio input device available")

// Lister enumerates audio input devices.
// This abstraction allows the device resolution logic to be tested without
// PortAudio and the enumerator to be replaced with other backends.
type Lister interface {
	// ListInputDevices returns all devices exposing at least one input channel
	ListInputDevices() ([]Device, error)

	// DefaultInputDevice returns the system default input device, if any
	DefaultInputDevice() (Device, bool)
}

// Resolve maps a stored device selection to a concrete input device.
//
// The selection is a string-encoded numeric device ID, or empty /
// DefaultSelection for the system default. Fallback chain: if the stored ID
// is no longer present in the enumerated list, fall back to the system
// default, then to the first enumerated device. An empty list yields
// ErrNoInputDevice. The default is queried fresh on every call, never cached,
// since removable devices can change between sessions.
func Resolve(l Lister, selection string) (Device, error) {
	devices, err := l.ListInputDevices()
	if err != nil {
		// Treat query failure as "no devices"; callers handle the empty case
		devices = nil
	}

	if len(devices) == 0 {
		return Device{}, ErrNoInputDevice
	}

	if selection != "" && selection != DefaultSelection {
		if id, convErr := strconv.Atoi(selection); convErr == nil {
			for _, dev := range devices {
				if dev.ID == id {
					return dev, nil
				}
			}
		}
		// Stored ID is stale (device unplugged) or malformed; fall through
	}

	if def, ok := l.DefaultInputDevice(); ok {
		return def, nil
	}

	return devices[0], nil
}
