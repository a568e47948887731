// Package capture owns the live microphone tap and the WAV file recorder.
//
// One engine runs two parallel paths off a single input stream: the stream
// callback feeds a chunk channel drained by a WAV writer goroutine, and a
// single-slot mailbox holding the most recent raw PCM chunk for streaming
// consumers. The last non-empty chunk is cached past Stop so a late reader
// still gets usable data.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
	"github.com/1F47E/macos-sheptun-sub000/internal/level"
)

const (
	framesPerBuffer = 1024
	chunkQueueSize  = 256
	tickInterval    = 100 * time.Millisecond
	fallbackRate    = 44100
)

// ErrAlreadyRecording is returned by Start when a session is active.
var ErrAlreadyRecording = errors.New("recording already in progress")

// TickFunc receives periodic progress updates while recording: the elapsed
// time and a 0..1 level sampled from the engine's own tap. The level is a
// fallback meter for UI that has no dedicated level monitor attached.
type TickFunc func(elapsed time.Duration, fallbackLevel float64)

// Engine records from one input device into a WAV file while mirroring the
// raw stream into an in-memory mailbox. One tap and one file recorder may be
// open at a time per engine.
type Engine struct {
	mu     sync.Mutex
	active atomic.Bool

	lister   audio.Lister
	filePath string
	onTick   TickFunc

	stream     *portaudio.Stream
	chunks     chan []int16
	writerDone chan error
	tickStop   chan struct{}
	tickWG     sync.WaitGroup
	startedAt  time.Time
	sampleRate int

	latest atomic.Pointer[[]int16]
	cached atomic.Pointer[[]int16]
}

// DefaultFilePath returns the well-known temp path for the session recording.
// The file is overwritten on every session start.
func DefaultFilePath() string {
	return filepath.Join(os.TempDir(), "sheptun-recording.wav")
}

// NewEngine creates a capture engine writing to filePath.
// onTick may be nil.
func NewEngine(lister audio.Lister, filePath string, onTick TickFunc) *Engine {
	if filePath == "" {
		filePath = DefaultFilePath()
	}
	return &Engine{
		lister:   lister,
		filePath: filePath,
		onTick:   onTick,
	}
}

// Start resolves the device selection and begins recording.
//
// Re-entrant starts fail with ErrAlreadyRecording and leave the running
// session untouched. Setup runs synchronously under the engine lock, so a
// second Start can never interleave with a half-finished one; any setup
// failure releases whatever was opened and leaves the engine idle.
func (e *Engine) Start(selection string) error {
	if !e.active.CompareAndSwap(false, true) {
		return ErrAlreadyRecording
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.setup(selection); err != nil {
		e.active.Store(false)
		return err
	}
	return nil
}

func (e *Engine) setup(selection string) error {
	// Resolve fresh every session; removable devices change between sessions
	dev, err := audio.Resolve(e.lister, selection)
	if err != nil {
		return fmt.Errorf("failed to resolve input device: %w", err)
	}

	// Native hardware rate, never assumed
	e.sampleRate = int(dev.SampleRate)
	if e.sampleRate <= 0 {
		e.sampleRate = fallbackRate
	}

	info, err := audio.DeviceInfo(dev.ID)
	if err != nil {
		return fmt.Errorf("failed to query device %d: %w", dev.ID, err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultHighInputLatency,
		},
		SampleRate:      float64(e.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, e.callback)
	if err != nil {
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	// Delete any stale recording before opening the new file
	if err := os.Remove(e.filePath); err != nil && !os.IsNotExist(err) {
		stream.Close()
		return fmt.Errorf("failed to remove stale recording: %w", err)
	}

	file, err := os.Create(e.filePath)
	if err != nil {
		stream.Close()
		return fmt.Errorf("failed to create recording file: %w", err)
	}

	e.chunks = make(chan []int16, chunkQueueSize)
	e.writerDone = make(chan error, 1)
	go e.writeLoop(file, e.chunks, e.writerDone)

	if err := stream.Start(); err != nil {
		close(e.chunks)
		<-e.writerDone
		os.Remove(e.filePath)
		stream.Close()
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	e.stream = stream
	e.latest.Store(nil)
	e.startedAt = time.Now()

	e.tickStop = make(chan struct{})
	e.tickWG.Add(1)
	go e.tickLoop()

	return nil
}

// callback runs on the PortAudio callback context. It must not block: the
// mailbox is a lock-free slot swap and the chunk send drops when the writer
// falls behind.
func (e *Engine) callback(in []int16) {
	if !e.active.Load() {
		return
	}

	chunk := make([]int16, len(in))
	copy(chunk, in)
	e.storeChunk(chunk)

	select {
	case e.chunks <- chunk:
	default:
		// Writer is behind; drop rather than stall the hardware callback
	}
}

// storeChunk publishes a chunk to the mailbox. The cached slot keeps the last
// non-empty chunk and survives Stop.
func (e *Engine) storeChunk(chunk []int16) {
	e.latest.Store(&chunk)
	if len(chunk) > 0 {
		e.cached.Store(&chunk)
	}
}

// writeLoop drains chunks into the WAV encoder until the channel closes
func (e *Engine) writeLoop(file *os.File, chunks <-chan []int16, done chan<- error) {
	enc := wav.NewEncoder(file, e.sampleRate, 16, 1, 1)
	format := &goaudio.Format{NumChannels: 1, SampleRate: e.sampleRate}

	var writeErr error
	for chunk := range chunks {
		if writeErr != nil {
			continue // keep draining so the callback never blocks
		}
		data := make([]int, len(chunk))
		for i, s := range chunk {
			data[i] = int(s)
		}
		buf := &goaudio.IntBuffer{Format: format, Data: data, SourceBitDepth: 16}
		if err := enc.Write(buf); err != nil {
			writeErr = fmt.Errorf("wav write failed: %w", err)
		}
	}

	if err := enc.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("wav close failed: %w", err)
	}
	if err := file.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("file close failed: %w", err)
	}
	done <- writeErr
}

// tickLoop drives the periodic progress callback while recording
func (e *Engine) tickLoop() {
	defer e.tickWG.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.onTick == nil {
				continue
			}
			var lvl float64
			if p := e.latest.Load(); p != nil {
				lvl = level.Normalize(level.DBFS(level.RMS(*p)))
			}
			e.onTick(time.Since(e.startedAt), lvl)
		case <-e.tickStop:
			return
		}
	}
}

// Stop ends the session and tears down resources.
//
// The active flag is cleared first so rapid repeated or concurrent Stop
// calls are no-ops; only the call that wins the swap performs teardown.
// Teardown order matters: the final buffer is cached before the stream goes
// away, then stream, writer, ticker.
func (e *Engine) Stop() error {
	if !e.active.CompareAndSwap(true, false) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Start flips the active flag before setup runs; a Stop racing a
	// failing Start can win the CAS with no session behind it. No stream
	// means there is nothing to tear down.
	if e.stream == nil {
		return nil
	}

	// Cache the final in-flight buffer before the tap is torn down
	if p := e.latest.Load(); p != nil && len(*p) > 0 {
		e.cached.Store(p)
	}

	var firstErr error
	if err := e.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop capture stream: %w", err)
	}
	if err := e.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close capture stream: %w", err)
	}
	e.stream = nil

	close(e.chunks)
	if err := <-e.writerDone; err != nil && firstErr == nil {
		firstErr = err
	}

	close(e.tickStop)
	e.tickWG.Wait()

	return firstErr
}

// IsRecording reports whether a session is active
func (e *Engine) IsRecording() bool {
	return e.active.Load()
}

// LatestBuffer returns the most recent streaming chunk as 16-bit little
// endian PCM bytes. While recording, the live slot is preferred; after Stop,
// the cached last non-empty chunk is returned so a consumer draining the
// tail still gets data. Nil only if nothing was ever captured.
func (e *Engine) LatestBuffer() []byte {
	var p *[]int16
	if e.active.Load() {
		p = e.latest.Load()
	}
	if p == nil || len(*p) == 0 {
		p = e.cached.Load()
	}
	if p == nil {
		return nil
	}
	return pcmBytes(*p)
}

// RecordingPath returns the recording file path if the file exists on disk
func (e *Engine) RecordingPath() (string, bool) {
	if _, err := os.Stat(e.filePath); err != nil {
		return "", false
	}
	return e.filePath, true
}

// Elapsed returns the time since the session started
func (e *Engine) Elapsed() time.Duration {
	if !e.active.Load() {
		return 0
	}
	return time.Since(e.startedAt)
}

// SampleRate returns the native rate of the current session's device
func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// pcmBytes converts int16 samples to little endian bytes
func pcmBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
