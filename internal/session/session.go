// Package session drives one hotkey-triggered record→transcribe→paste cycle.
//
// The controller is a state machine: Idle → Recording → Transcribing →
// {Completed | Error} → Idle. Transitions only move forward within a session;
// a new session always starts fresh at Recording. All collaborators are
// narrow interfaces wired at construction, and all state mutation happens
// inside the controller — observers consume the event channel.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
	"github.com/1F47E/macos-sheptun-sub000/internal/transcription"
)

// State represents the current session state
type State int

const (
	// Idle means no session is in progress
	Idle State = iota
	// Recording means audio capture is running
	Recording
	// Transcribing means the clip is being uploaded for recognition
	Transcribing
	// Completed means text was recognized and pasted
	Completed
	// Error means the session ended with a user-facing failure
	Error
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Transcribing:
		return "Transcribing"
	case Completed:
		return "Completed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is published on every state change
type Event struct {
	State     State
	SessionID string
	Text      string // set on Completed
	Message   string // set on Error, and on Transcribing after an auto-stop
}

// CaptureEngine is the recording collaborator
type CaptureEngine interface {
	Start(selection string) error
	Stop() error
	RecordingPath() (string, bool)
}

// LevelMeter is the loudness-monitoring collaborator
type LevelMeter interface {
	Start(deviceID int, onLevel func(float64), onError func(error)) error
	Stop()
}

// Transcriber converts a recorded file into text
type Transcriber interface {
	Transcribe(ctx context.Context, req transcription.Request) (string, error)
}

// Paster delivers text into the frontmost application
type Paster interface {
	Paste(text string) error
}

// Settings supplies the per-session configuration values
type Settings interface {
	DeviceSelection() string
	APIKey() string
	Model() string
	Temperature() float64
	Language() string
	MaxDuration() time.Duration // recording auto-stop limit, 0 = none
}

// Config holds controller construction parameters
type Config struct {
	Engine      CaptureEngine
	Meter       LevelMeter // optional
	Transcriber Transcriber
	Paster      Paster
	Settings    Settings
	Lister      audio.Lister // optional, resolves the meter device

	// CheckPermission verifies (and may prompt for) microphone access.
	// nil means access is assumed. May block on the system dialog.
	CheckPermission func() error

	// OnLevel receives the meter's normalized level while recording
	OnLevel func(float64)

	// OnMeterError receives level-monitor failures. The meter never
	// aborts a recording, but its failures should not vanish either.
	OnMeterError func(error)

	// DismissDelay is how long an Error state stays visible (default 3s)
	DismissDelay time.Duration

	// PasteDelay lets focus settle before the paste keystroke (default 150ms)
	PasteDelay time.Duration
}

// Controller orchestrates recording sessions. One controller (and therefore
// one live capture session) exists per process.
type Controller struct {
	mu sync.Mutex

	state     State
	sessionID string

	engine      CaptureEngine
	meter       LevelMeter
	transcriber Transcriber
	paster      Paster
	settings    Settings
	lister       audio.Lister
	checkPerm    func() error
	onLevel      func(float64)
	onMeterError func(error)

	dismissDelay time.Duration
	pasteDelay   time.Duration
	dismissTimer *time.Timer
	limitTimer   *time.Timer

	events chan Event
}

// New creates a session controller
func New(cfg Config) *Controller {
	if cfg.DismissDelay <= 0 {
		cfg.DismissDelay = 3 * time.Second
	}
	if cfg.PasteDelay <= 0 {
		cfg.PasteDelay = 150 * time.Millisecond
	}
	return &Controller{
		state:        Idle,
		engine:       cfg.Engine,
		meter:        cfg.Meter,
		transcriber:  cfg.Transcriber,
		paster:       cfg.Paster,
		settings:     cfg.Settings,
		lister:       cfg.Lister,
		checkPerm:    cfg.CheckPermission,
		onLevel:      cfg.OnLevel,
		onMeterError: cfg.OnMeterError,
		dismissDelay: cfg.DismissDelay,
		pasteDelay:   cfg.PasteDelay,
		events:       make(chan Event, 16),
	}
}

// Events returns the state-change channel. Sends never block; a slow
// consumer loses intermediate events, not the machine.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle advances the session: Idle starts a recording, Recording stops it
// and begins transcription. In any other state the toggle is ignored.
func (c *Controller) Toggle() {
	c.mu.Lock()

	switch c.state {
	case Idle:
		c.startLocked()
	case Recording:
		c.stopAndTranscribeLocked()
	default:
		// Forward-only: a session in flight ignores further toggles
	}

	c.mu.Unlock()
}

// startLocked begins a new session. Called with the lock held; temporarily
// releases it around the permission prompt, which can block indefinitely.
func (c *Controller) startLocked() {
	if c.checkPerm != nil {
		c.mu.Unlock()
		err := c.checkPerm()
		c.mu.Lock()
		if err != nil {
			// Abort silently per the permission-denied contract: no session,
			// no audio resources. The OS dialog already told the user.
			return
		}
		if c.state != Idle {
			// Another toggle won the race while the dialog was up
			return
		}
	}

	c.cancelDismissLocked()

	selection := c.settings.DeviceSelection()
	if err := c.engine.Start(selection); err != nil {
		c.failLocked(uuid.NewString(), fmt.Sprintf("Failed to start recording: %v", err))
		return
	}

	c.startMeter(selection)

	c.sessionID = uuid.NewString()
	c.setStateLocked(Event{State: Recording, SessionID: c.sessionID})
	c.armLimitLocked(c.sessionID)
}

// armLimitLocked schedules the auto-stop for an over-long recording.
// The timer fires on its own goroutine, never from inside the capture
// engine's callbacks, so stopping the engine from it cannot deadlock.
func (c *Controller) armLimitLocked(id string) {
	limit := c.settings.MaxDuration()
	if limit <= 0 {
		return
	}
	c.limitTimer = time.AfterFunc(limit, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state != Recording || c.sessionID != id {
			return
		}
		c.stopAndTranscribeAsLocked(fmt.Sprintf("Recording stopped automatically after %.0f seconds.", limit.Seconds()))
	})
}

// startMeter starts level monitoring on the resolved device. Meter failures
// never abort the recording; the meter is an independent collaborator.
func (c *Controller) startMeter(selection string) {
	if c.meter == nil {
		return
	}

	deviceID := -1
	if c.lister != nil {
		if dev, err := audio.Resolve(c.lister, selection); err == nil {
			deviceID = dev.ID
		}
	}

	c.meter.Start(deviceID, c.onLevel, c.onMeterError)
}

// stopAndTranscribeLocked ends capture and kicks off the background
// transcription task
func (c *Controller) stopAndTranscribeLocked() {
	c.stopAndTranscribeAsLocked("")
}

func (c *Controller) stopAndTranscribeAsLocked(note string) {
	c.cancelLimitLocked()
	if c.meter != nil {
		c.meter.Stop()
	}
	c.engine.Stop()

	id := c.sessionID
	c.setStateLocked(Event{State: Transcribing, SessionID: id, Message: note})

	apiKey := c.settings.APIKey()
	if apiKey == "" {
		// Short circuit: no network call is attempted without a credential
		c.failLocked(id, "API key not set. Open settings to configure it.")
		return
	}

	path, ok := c.engine.RecordingPath()
	if !ok {
		c.failLocked(id, "Recording file not found.")
		return
	}

	req := transcription.Request{
		FilePath:    path,
		APIKey:      apiKey,
		Model:       c.settings.Model(),
		Language:    c.settings.Language(),
		Temperature: c.settings.Temperature(),
	}

	go c.transcribe(id, req)
}

// transcribe runs the network call off the toggle path and reports back.
// If the session changed while the call was in flight (window closed, new
// session started), the result is stale and discarded.
func (c *Controller) transcribe(id string, req transcription.Request) {
	text, err := c.transcriber.Transcribe(context.Background(), req)

	c.mu.Lock()
	if c.sessionID != id || c.state != Transcribing {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.failLocked(id, fmt.Sprintf("Transcription failed: %v", err))
		c.mu.Unlock()
		return
	}

	c.setStateLocked(Event{State: Completed, SessionID: id, Text: text})
	c.mu.Unlock()

	// Let focus settle before the synthetic keystroke
	time.Sleep(c.pasteDelay)
	pasteErr := c.paster.Paste(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != id {
		return
	}
	if pasteErr != nil {
		c.failLocked(id, fmt.Sprintf("Paste failed: %v", pasteErr))
		return
	}
	c.setStateLocked(Event{State: Idle, SessionID: id})
}

// failLocked enters the Error state and arms the auto-dismiss timer
func (c *Controller) failLocked(id string, msg string) {
	c.sessionID = id
	c.setStateLocked(Event{State: Error, SessionID: id, Message: msg})

	c.cancelDismissLocked()
	c.dismissTimer = time.AfterFunc(c.dismissDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == Error && c.sessionID == id {
			c.setStateLocked(Event{State: Idle, SessionID: id})
		}
	})
}

// Close releases all session resources from any state. The engine stop is
// defensive: stopping an already-stopped engine is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.meter != nil {
		c.meter.Stop()
	}
	c.engine.Stop()
	c.cancelDismissLocked()
	c.cancelLimitLocked()

	if c.state != Idle {
		c.setStateLocked(Event{State: Idle, SessionID: c.sessionID})
	}
	c.sessionID = ""
}

func (c *Controller) cancelDismissLocked() {
	if c.dismissTimer != nil {
		c.dismissTimer.Stop()
		c.dismissTimer = nil
	}
}

func (c *Controller) cancelLimitLocked() {
	if c.limitTimer != nil {
		c.limitTimer.Stop()
		c.limitTimer = nil
	}
}

// setStateLocked records the state and publishes the event without blocking
func (c *Controller) setStateLocked(ev Event) {
	c.state = ev.State
	select {
	case c.events <- ev:
	default:
		// Consumer is behind; the latest state is queryable via State()
	}
}
