package capture

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
)

type fakeLister struct {
	devices []audio.Device
}

func (f *fakeLister) ListInputDevices() ([]audio.Device, error) { return f.devices, nil }

func (f *fakeLister) DefaultInputDevice() (audio.Device, bool) {
	for _, d := range f.devices {
		if d.IsDefault {
			return d, true
		}
	}
	return audio.Device{}, false
}

func TestStop_NoopWhenIdle(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	// Stop on an idle engine must be a silent no-op, repeatedly
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on idle engine returned %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Second Stop on idle engine returned %v", err)
	}
}

func TestStop_ConcurrentNoDoubleTeardown(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	// Concurrent stops on an idle engine exercise the CAS guard; none may
	// panic or attempt teardown
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Stop(); err != nil {
				t.Errorf("concurrent Stop returned %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestStart_NoDevices(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	err := e.Start("default")
	if err == nil {
		t.Fatal("Expected Start to fail with no devices")
	}
	if !errors.Is(err, audio.ErrNoInputDevice) {
		t.Errorf("Expected ErrNoInputDevice, got %v", err)
	}
	if e.IsRecording() {
		t.Error("Engine must not be recording after a failed start")
	}
	// Failed setup must not leave a file behind
	if _, ok := e.RecordingPath(); ok {
		t.Error("No recording file expected after failed start")
	}
}

// blockingLister parks Start inside device resolution until released,
// holding the failed-setup window open.
type blockingLister struct {
	enteredOnce sync.Once
	entered     chan struct{}
	release     chan struct{}
}

func (f *blockingLister) ListInputDevices() ([]audio.Device, error) {
	f.enteredOnce.Do(func() { close(f.entered) })
	<-f.release
	return nil, nil
}

func (f *blockingLister) DefaultInputDevice() (audio.Device, bool) {
	return audio.Device{}, false
}

func TestStop_DuringFailingStart(t *testing.T) {
	lister := &blockingLister{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := NewEngine(lister, filepath.Join(t.TempDir(), "rec.wav"), nil)

	startDone := make(chan error, 1)
	go func() { startDone <- e.Start("default") }()

	// Start is now mid-setup with the active flag already raised
	<-lister.entered

	stopDone := make(chan error, 1)
	go func() { stopDone <- e.Stop() }()

	close(lister.release)

	if err := <-startDone; !errors.Is(err, audio.ErrNoInputDevice) {
		t.Errorf("Expected ErrNoInputDevice from the failing start, got %v", err)
	}
	// The racing Stop may win the CAS with no session behind it; it must
	// return cleanly, not tear down a stream that was never opened
	if err := <-stopDone; err != nil {
		t.Errorf("Stop during failing start returned %v", err)
	}

	if e.IsRecording() {
		t.Error("Engine must be idle after the race")
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Follow-up Stop must be a no-op, got %v", err)
	}
}

func TestLatestBuffer_CacheSurvivesStop(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	chunk := []int16{100, -200, 300, -400}
	e.storeChunk(chunk)

	// Engine is not active, so the cached slot must serve the read
	got := e.LatestBuffer()
	if got == nil {
		t.Fatal("Expected cached buffer, got nil")
	}
	if !bytes.Equal(got, pcmBytes(chunk)) {
		t.Errorf("Cached buffer mismatch: got %v", got)
	}
}

func TestLatestBuffer_EmptyChunkDoesNotOverwriteCache(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	e.storeChunk([]int16{1, 2, 3})
	e.storeChunk([]int16{})

	got := e.LatestBuffer()
	if !bytes.Equal(got, pcmBytes([]int16{1, 2, 3})) {
		t.Errorf("Expected last non-empty chunk from cache, got %v", got)
	}
}

func TestLatestBuffer_NilBeforeFirstChunk(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "rec.wav"), nil)

	if got := e.LatestBuffer(); got != nil {
		t.Errorf("Expected nil before any capture, got %v", got)
	}
}

func TestPCMBytes(t *testing.T) {
	got := pcmBytes([]int16{0x0102, -2})
	want := []byte{0x02, 0x01, 0xFE, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("pcmBytes = %v, want %v", got, want)
	}
}

func TestRecordingPath_MissingFile(t *testing.T) {
	e := NewEngine(&fakeLister{}, filepath.Join(t.TempDir(), "missing.wav"), nil)

	if _, ok := e.RecordingPath(); ok {
		t.Error("Expected no path for a file that does not exist")
	}
}
