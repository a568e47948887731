package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Enumerator lists input devices via PortAudio
type Enumerator struct {
	mu     sync.Mutex
	closed bool
}

// NewEnumerator initializes PortAudio and returns an enumerator.
// Call Close when done to terminate PortAudio.
func NewEnumerator() (*Enumerator, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Enumerator{}, nil
}

// ListInputDevices returns all devices with at least one input channel
func (e *Enumerator) ListInputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// Continue without marking any device as default
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}

		isDefault := defaultInput != nil && dev.Name == defaultInput.Name

		result = append(result, Device{
			ID:         i,
			Name:       dev.Name,
			IsDefault:  isDefault,
			SampleRate: dev.DefaultSampleRate,
		})
	}

	return result, nil
}

// DefaultInputDevice returns the system default input device
func (e *Enumerator) DefaultInputDevice() (Device, bool) {
	devices, err := e.ListInputDevices()
	if err != nil {
		return Device{}, false
	}

	for _, dev := range devices {
		if dev.IsDefault {
			return dev, true
		}
	}

	return Device{}, false
}

// DeviceInfo returns the raw PortAudio descriptor for a device ID.
// The stream-opening packages need the *portaudio.DeviceInfo handle.
func DeviceInfo(id int) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}

	dev := devices[id]
	if dev.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device '%s' (ID: %d) has no input channels (output-only device)", dev.Name, id)
	}

	return dev, nil
}

// Close terminates PortAudio. Safe to call once.
func (e *Enumerator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}
