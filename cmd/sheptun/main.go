package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/1F47E/macos-sheptun-sub000/internal/api"
	"github.com/1F47E/macos-sheptun-sub000/internal/audio"
	"github.com/1F47E/macos-sheptun-sub000/internal/capture"
	"github.com/1F47E/macos-sheptun-sub000/internal/clipboard"
	"github.com/1F47E/macos-sheptun-sub000/internal/config"
	"github.com/1F47E/macos-sheptun-sub000/internal/hotkey"
	"github.com/1F47E/macos-sheptun-sub000/internal/level"
	"github.com/1F47E/macos-sheptun-sub000/internal/logger"
	"github.com/1F47E/macos-sheptun-sub000/internal/notification"
	"github.com/1F47E/macos-sheptun-sub000/internal/permissions"
	"github.com/1F47E/macos-sheptun-sub000/internal/server"
	"github.com/1F47E/macos-sheptun-sub000/internal/session"
	"github.com/1F47E/macos-sheptun-sub000/internal/transcription"
	"github.com/1F47E/macos-sheptun-sub000/internal/tray"
)

const appName = "Sheptun"

// App wires every component together and owns their lifecycles
type App struct {
	log        *logger.Logger
	cfg        *config.Config
	configPath string

	checker    *permissions.Checker
	enumerator *audio.Enumerator
	engine     *capture.Engine
	meter      *level.Monitor
	controller *session.Controller
	hotkeys    *hotkey.Manager
	trayMgr    *tray.Manager
	srv        *server.Server
	notify     *notification.Manager
}

// sessionSettings adapts the live config to the session controller's
// Settings interface.
type sessionSettings struct {
	cfg *config.Config
}

func (s sessionSettings) DeviceSelection() string { return s.cfg.DeviceSelection() }
func (s sessionSettings) APIKey() string          { return s.cfg.GetAPIKey() }
func (s sessionSettings) Model() string           { return s.cfg.GetModel() }
func (s sessionSettings) Temperature() float64    { return s.cfg.GetTemperature() }
func (s sessionSettings) Language() string        { return s.cfg.GetLanguage() }

func (s sessionSettings) MaxDuration() time.Duration {
	return time.Duration(s.cfg.GetMaxRecordTime()) * time.Second
}

func main() {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}

	app.Run()
}

func newApp() (*App, error) {
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.Info("%s starting", appName)

	enumerator, err := audio.NewEnumerator()
	if err != nil {
		log.Error("Audio host initialization failed: %v", err)
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	app := &App{
		log:        log,
		cfg:        cfg,
		configPath: configPath,
		checker:    permissions.NewChecker(),
		enumerator: enumerator,
		notify:     notification.NewManager(appName),
	}

	app.meter = level.NewMonitor(func() error {
		if !app.checker.IsMicrophoneAuthorized() {
			return level.ErrPermissionDenied
		}
		return nil
	})

	app.engine = capture.NewEngine(enumerator, capture.DefaultFilePath(), app.onRecordTick)

	clip := clipboard.NewManager(clipboard.Config{SplitSize: cfg.PasteSplitSize})
	client := transcription.New(cfg.APIEndpoint, nil)

	app.trayMgr = tray.NewManager(tray.Config{
		OnReady:        app.onTrayReady,
		OnSettings:     app.openSettings,
		OnDeviceChange: app.selectDevice,
		OnQuit:         app.shutdown,
	})

	app.controller = session.New(session.Config{
		Engine:          app.engine,
		Meter:           app.meter,
		Transcriber:     client,
		Paster:          clip,
		Settings:        sessionSettings{cfg: cfg},
		Lister:          enumerator,
		CheckPermission: app.checker.EnsureMicrophoneAccess,
		OnLevel:         app.trayMgr.SetLevel,
		OnMeterError: func(err error) {
			log.Warn("Level monitor: %v", err)
		},
	})

	app.hotkeys = hotkey.NewManager()

	apiHandler := api.NewHandler(api.Config{
		AppConfig:      cfg,
		ConfigPath:     configPath,
		Lister:         enumerator,
		Permissions:    app.checker,
		OnConfigChange: app.applyConfig,
	})
	app.srv = server.New(server.DefaultConfig(), apiHandler)

	return app, nil
}

// Run starts the tray loop. Blocks until quit.
func (a *App) Run() {
	go a.handleSignals()
	a.trayMgr.Run()
}

// onTrayReady finishes startup once the tray is live: the settings
// server, the global hotkey, and the session event loop.
func (a *App) onTrayReady() {
	if err := a.srv.Start(); err != nil {
		a.log.Error("Settings server failed to start: %v", err)
	} else {
		a.log.Info("Settings page at %s", a.srv.URL())
	}

	if err := a.registerHotkey(); err != nil {
		a.log.Error("Hotkey registration failed: %v", err)
		a.notify.Error("Could not register the recording hotkey. Check settings.")
	}

	go a.handleSessionEvents()

	a.refreshDeviceMenu()

	if !a.checker.IsAccessibilityAuthorized() {
		a.log.Warn("Accessibility permission not granted")
		a.notify.AccessibilityDenied()
		a.checker.OpenAccessibilitySettings()
	}
}

func (a *App) registerHotkey() error {
	hc := a.cfg.Clone().Hotkey
	binding, err := hotkey.ParseBinding(hc.Ctrl, hc.Shift, hc.Alt, hc.Cmd, hc.Key)
	if err != nil {
		return err
	}

	for _, c := range hotkey.CheckConflicts(binding) {
		a.log.Warn("Hotkey %s conflicts with %s (%s)", binding, c.Name, c.Description)
	}

	if err := a.hotkeys.Register(binding); err != nil {
		return err
	}
	a.log.Info("Hotkey registered: %s", binding)

	go a.handleHotkeyTriggers(a.hotkeys.Triggers())
	return nil
}

func (a *App) handleHotkeyTriggers(triggers <-chan struct{}) {
	for range triggers {
		a.log.Debug("Hotkey pressed, state %s", a.controller.State())
		a.controller.Toggle()
	}
}

// handleSessionEvents mirrors controller state into the tray and the
// Notification Center.
func (a *App) handleSessionEvents() {
	for ev := range a.controller.Events() {
		switch ev.State {
		case session.Idle:
			a.trayMgr.SetState(tray.StateIdle)
		case session.Recording:
			a.log.Info("Recording started, session %s", ev.SessionID)
			a.trayMgr.SetState(tray.StateRecording)
		case session.Transcribing:
			a.log.Info("Transcribing session %s", ev.SessionID)
			a.trayMgr.SetState(tray.StateTranscribing)
			if ev.Message != "" {
				// Auto-stopped at the recording limit
				a.notify.Info(ev.Message)
			}
		case session.Completed:
			a.log.Info("Session %s completed, %d chars", ev.SessionID, len(ev.Text))
			a.trayMgr.SetState(tray.StateIdle)
			a.notify.TranscriptionComplete(ev.Text)
		case session.Error:
			a.log.Error("Session %s failed: %s", ev.SessionID, ev.Message)
			a.trayMgr.SetState(tray.StateError)
			a.notify.Error(ev.Message)
		}
	}
}

// onRecordTick feeds the tray's level display from the engine's own tap
// when the dedicated monitor is not running. The tick runs on the
// engine's ticker goroutine; it must never call back into the session
// controller or the engine.
func (a *App) onRecordTick(_ time.Duration, fallbackLevel float64) {
	if a.meter.IsRunning() {
		return
	}
	a.trayMgr.SetLevel(fallbackLevel)
}

// applyConfig reacts to a settings save: log level and hotkey may have
// changed.
func (a *App) applyConfig() {
	snapshot := a.cfg.Clone()
	a.log.SetLevel(logger.ParseLevel(snapshot.LogLevel))

	current := a.hotkeys.Binding()
	desired, err := hotkey.ParseBinding(snapshot.Hotkey.Ctrl, snapshot.Hotkey.Shift, snapshot.Hotkey.Alt, snapshot.Hotkey.Cmd, snapshot.Hotkey.Key)
	if err != nil {
		a.log.Error("Invalid hotkey in saved config: %v", err)
		return
	}

	if desired.String() != current.String() {
		a.log.Info("Rebinding hotkey %s -> %s", current, desired)
		if err := a.hotkeys.Close(); err != nil {
			a.log.Warn("Hotkey unregister failed: %v", err)
		}
		if err := a.hotkeys.Register(desired); err != nil {
			a.log.Error("Hotkey rebind failed: %v", err)
			a.notify.Error("Could not register the new hotkey.")
			return
		}
		go a.handleHotkeyTriggers(a.hotkeys.Triggers())
	}

	a.refreshDeviceMenu()
}

func (a *App) refreshDeviceMenu() {
	devices, err := a.enumerator.ListInputDevices()
	if err != nil {
		a.log.Warn("Device enumeration failed: %v", err)
		return
	}

	selection := a.cfg.DeviceSelection()
	items := make([]tray.Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, tray.Device{
			ID:        d.ID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			IsCurrent: selection == strconv.Itoa(d.ID) || (selection == audio.DefaultSelection && d.IsDefault),
		})
	}
	a.trayMgr.UpdateDeviceMenu(items)
}

func (a *App) selectDevice(deviceID int) {
	a.log.Info("Input device changed to %d", deviceID)
	if err := a.cfg.Update(map[string]interface{}{"audio_device": strconv.Itoa(deviceID)}); err != nil {
		a.log.Error("Device update rejected: %v", err)
		return
	}
	if err := a.cfg.Save(a.configPath); err != nil {
		a.log.Error("Failed to save config: %v", err)
	}
	a.refreshDeviceMenu()
}

func (a *App) openSettings() {
	if !a.srv.IsRunning() {
		a.log.Warn("Settings requested but server is not running")
		return
	}
	if err := exec.Command("open", a.srv.URL()).Run(); err != nil {
		a.log.Error("Failed to open settings page: %v", err)
	}
}

func (a *App) handleSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	a.log.Info("Signal received, shutting down")
	a.trayMgr.Quit()
}

// shutdown runs on tray quit, in reverse construction order
func (a *App) shutdown() {
	a.log.Info("%s shutting down", appName)

	if err := a.hotkeys.Close(); err != nil {
		a.log.Warn("Hotkey teardown: %v", err)
	}
	a.controller.Close()
	a.meter.Stop()
	if err := a.srv.Stop(); err != nil {
		a.log.Warn("Server teardown: %v", err)
	}
	a.enumerator.Close()
	a.log.Close()
}
