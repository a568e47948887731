// Package level computes a real-time loudness value for a microphone device.
//
// A monitor owns a dedicated mono 16-bit input stream on the monitored device
// and emits a normalized 0..1 level roughly ten times per second. It is
// independent of the capture engine: the two open separate streams on the
// same hardware.
package level

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
)

const (
	// SampleRate is the fixed monitoring rate. Metering does not need the
	// device's native rate; 16kHz keeps the stream cheap.
	SampleRate = 16000

	framesPerBuffer = 1024

	// pollInterval is how often the current level is emitted
	pollInterval = 100 * time.Millisecond

	// silenceFloorDB is the decibel value mapped to level 0.0
	silenceFloorDB = -60.0
)

// ErrPermissionDenied is reported when microphone access is not authorized.
var ErrPermissionDenied = errors.New("microphone permission denied")

// PermissionFunc reports whether microphone access is authorized.
// A nil func disables the gate (tests).
type PermissionFunc func() error

// Monitor meters the input level of a single device.
// At most one monitoring session is active per Monitor; starting a new
// session tears down the previous one first.
type Monitor struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	stopChan   chan struct{}
	wg         sync.WaitGroup
	running    bool
	checkPerm  PermissionFunc
	latestRMS  float64
	rmsMu      sync.Mutex
}

// NewMonitor creates a level monitor gated by the given permission check
func NewMonitor(checkPerm PermissionFunc) *Monitor {
	return &Monitor{checkPerm: checkPerm}
}

// Start opens an input stream on the given device and begins emitting levels.
//
// onLevel receives a clamped 0..1 value every ~100ms. onError receives
// permission and setup failures once, and per-read failures as they occur
// (reads keep being retried). If the explicit device cannot be opened because
// it is busy or invalid, monitoring continues on the system default device;
// any other open failure aborts setup.
func (m *Monitor) Start(deviceID int, onLevel func(float64), onError func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Invariant: no two streams alive for the same monitor
	if m.running {
		m.stopLocked()
	}

	if m.checkPerm != nil {
		if err := m.checkPerm(); err != nil {
			err = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			if onError != nil {
				onError(err)
			}
			return err
		}
	}

	in := make([]int16, framesPerBuffer)
	stream, err := m.openStream(deviceID, in)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		err = fmt.Errorf("failed to start level stream: %w", err)
		if onError != nil {
			onError(err)
		}
		return err
	}

	m.stream = stream
	m.stopChan = make(chan struct{})
	m.running = true

	m.wg.Add(2)
	go m.readLoop(stream, in, onError)
	go m.pollLoop(onLevel)

	return nil
}

// openStream opens the device's input stream, falling back to the system
// default when the explicit device is busy or invalid.
func (m *Monitor) openStream(deviceID int, in []int16) (*portaudio.Stream, error) {
	dev, err := audio.DeviceInfo(deviceID)
	if err == nil {
		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   dev,
				Channels: 1,
				Latency:  dev.DefaultHighInputLatency,
			},
			SampleRate:      float64(SampleRate),
			FramesPerBuffer: len(in),
		}
		stream, openErr := portaudio.OpenStream(params, in)
		if openErr == nil {
			return stream, nil
		}
		if !isDeviceBusy(openErr) {
			return nil, fmt.Errorf("failed to open level stream on device %d: %w", deviceID, openErr)
		}
		// Device busy or unsupported: non-fatal, let the OS pick
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(in), in)
	if err != nil {
		return nil, fmt.Errorf("failed to open level stream on default device: %w", err)
	}
	return stream, nil
}

// isDeviceBusy reports whether the open failure means the device is in use
// or cannot host this stream, which is downgraded to a fallback
func isDeviceBusy(err error) bool {
	return errors.Is(err, portaudio.DeviceUnavailable) ||
		errors.Is(err, portaudio.InvalidDevice) ||
		errors.Is(err, portaudio.InvalidSampleRate)
}

// readLoop fills the input buffer and keeps the latest block RMS
func (m *Monitor) readLoop(stream *portaudio.Stream, in []int16, onError func(error)) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Per-read failures do not stop the monitor
			if onError != nil {
				onError(fmt.Errorf("level read failed: %w", err))
			}
			time.Sleep(pollInterval)
			continue
		}

		rms := RMS(in)
		m.rmsMu.Lock()
		m.latestRMS = rms
		m.rmsMu.Unlock()
	}
}

// pollLoop emits the normalized level at the polling rate
func (m *Monitor) pollLoop(onLevel func(float64)) {
	defer m.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.rmsMu.Lock()
			rms := m.latestRMS
			m.rmsMu.Unlock()
			if onLevel != nil {
				onLevel(Normalize(DBFS(rms)))
			}
		case <-m.stopChan:
			return
		}
	}
}

// Stop tears down the stream and timers. Safe to call when not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if !m.running {
		return
	}

	close(m.stopChan)
	m.wg.Wait()

	m.stream.Stop()
	m.stream.Close()
	m.stream = nil
	m.running = false
}

// IsRunning reports whether a monitoring session is active
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RMS returns the root mean square of a PCM block, normalized to 0..1
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a normalized RMS value to decibels relative to full scale
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Normalize maps a dBFS value linearly from the -60..0 window onto 0..1,
// clamping outside the window
func Normalize(db float64) float64 {
	level := (db - silenceFloorDB) / -silenceFloorDB
	if level < 0 || math.IsNaN(level) {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
