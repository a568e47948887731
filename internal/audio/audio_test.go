package audio

import (
	"errors"
	"testing"
)

// fakeLister implements Lister without hardware
type fakeLister struct {
	devices []Device
	err     error
}

func (f *fakeLister) ListInputDevices() ([]Device, error) {
	return f.devices, f.err
}

func (f *fakeLister) DefaultInputDevice() (Device, bool) {
	for _, dev := range f.devices {
		if dev.IsDefault {
			return dev, true
		}
	}
	return Device{}, false
}

func TestResolve_StoredID(t *testing.T) {
	lister := &fakeLister{devices: []Device{
		{ID: 0, Name: "Built-in Microphone", IsDefault: true},
		{ID: 2, Name: "USB Microphone"},
	}}

	dev, err := Resolve(lister, "2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if dev.ID != 2 {
		t.Errorf("Expected device ID 2, got %d", dev.ID)
	}
}

func TestResolve_FallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		devices   []Device
		selection string
		wantID    int
	}{
		{
			name: "stale ID falls back to default",
			devices: []Device{
				{ID: 0, Name: "Built-in Microphone"},
				{ID: 1, Name: "USB Microphone", IsDefault: true},
			},
			selection: "7",
			wantID:    1,
		},
		{
			name: "no default falls back to first device",
			devices: []Device{
				{ID: 3, Name: "Aggregate Device"},
				{ID: 4, Name: "USB Microphone"},
			},
			selection: "9",
			wantID:    3,
		},
		{
			name: "empty selection uses default",
			devices: []Device{
				{ID: 0, Name: "Built-in Microphone"},
				{ID: 1, Name: "USB Microphone", IsDefault: true},
			},
			selection: "",
			wantID:    1,
		},
		{
			name: "default sentinel uses default",
			devices: []Device{
				{ID: 0, Name: "Built-in Microphone", IsDefault: true},
			},
			selection: DefaultSelection,
			wantID:    0,
		},
		{
			name: "malformed selection falls back to default",
			devices: []Device{
				{ID: 0, Name: "Built-in Microphone", IsDefault: true},
			},
			selection: "not-a-number",
			wantID:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := Resolve(&fakeLister{devices: tt.devices}, tt.selection)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if dev.ID != tt.wantID {
				t.Errorf("Expected device ID %d, got %d", tt.wantID, dev.ID)
			}
		})
	}
}

func TestResolve_EmptyList(t *testing.T) {
	_, err := Resolve(&fakeLister{}, "default")
	if !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("Expected ErrNoInputDevice, got %v", err)
	}
}

func TestResolve_ListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("query failed")}

	_, err := Resolve(lister, "0")
	if !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("Expected ErrNoInputDevice on query failure, got %v", err)
	}
}

func TestNewEnumerator(t *testing.T) {
	enum, err := NewEnumerator()
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer enum.Close()

	devices, err := enum.ListInputDevices()
	if err != nil {
		t.Fatalf("ListInputDevices failed: %v", err)
	}

	if len(devices) == 0 {
		t.Skip("No audio input devices available")
	}

	for _, dev := range devices {
		t.Logf("Device %d: %s (default: %v, rate: %.0f)", dev.ID, dev.Name, dev.IsDefault, dev.SampleRate)
		if dev.SampleRate <= 0 {
			t.Errorf("Device %d reports non-positive sample rate", dev.ID)
		}
	}
}
