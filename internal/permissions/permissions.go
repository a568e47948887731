package permissions

/*
#cgo CFLAGS: -x objective-c -fmodules
#cgo LDFLAGS: -framework AVFoundation -framework ApplicationServices

#import <AVFoundation/AVFoundation.h>
#import <ApplicationServices/ApplicationServices.h>

int microphone_auth_status() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

// Shows the system microphone prompt and blocks until the user answers.
// Returns 1 when access was granted.
int request_microphone_access() {
    dispatch_semaphore_t sema = dispatch_semaphore_create(0);
    __block int granted = 0;
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio
                             completionHandler:^(BOOL ok) {
        granted = ok ? 1 : 0;
        dispatch_semaphore_signal(sema);
    }];
    dispatch_semaphore_wait(sema, DISPATCH_TIME_FOREVER);
    return granted;
}

int accessibility_trusted() {
    return AXIsProcessTrusted() ? 1 : 0;
}
*/
import "C"

import (
	"fmt"
	"os/exec"
)

// Status mirrors AVAuthorizationStatus
type Status int

const (
	StatusNotDetermined Status = 0
	StatusRestricted    Status = 1
	StatusDenied        Status = 2
	StatusAuthorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "NotDetermined"
	case StatusRestricted:
		return "Restricted"
	case StatusDenied:
		return "Denied"
	case StatusAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// Checker queries and requests the macOS permissions the app depends
// on: microphone for capture, accessibility for synthesized keystrokes.
type Checker struct{}

// NewChecker creates a permission checker
func NewChecker() *Checker {
	return &Checker{}
}

// MicrophoneStatus returns the current microphone authorization status
func (c *Checker) MicrophoneStatus() Status {
	return Status(C.microphone_auth_status())
}

// IsMicrophoneAuthorized reports whether microphone access is granted
func (c *Checker) IsMicrophoneAuthorized() bool {
	return c.MicrophoneStatus() == StatusAuthorized
}

// IsAccessibilityAuthorized reports whether the process is trusted for
// accessibility. Without it Cmd+V synthesis silently does nothing.
func (c *Checker) IsAccessibilityAuthorized() bool {
	return C.accessibility_trusted() == 1
}

// EnsureMicrophoneAccess resolves microphone permission before any
// audio device is opened. Undetermined status shows the system prompt
// and blocks until the user answers. Denied or restricted status opens
// System Settings at the microphone pane and returns an error.
func (c *Checker) EnsureMicrophoneAccess() error {
	switch c.MicrophoneStatus() {
	case StatusAuthorized:
		return nil
	case StatusNotDetermined:
		if C.request_microphone_access() == 1 {
			return nil
		}
		return fmt.Errorf("microphone access declined")
	default:
		c.OpenMicrophoneSettings()
		return fmt.Errorf("microphone access denied, enable it in System Settings")
	}
}

// OpenMicrophoneSettings opens System Settings at the microphone privacy pane
func (c *Checker) OpenMicrophoneSettings() error {
	return openSettingsPane("Privacy_Microphone")
}

// OpenAccessibilitySettings opens System Settings at the accessibility privacy pane
func (c *Checker) OpenAccessibilitySettings() error {
	return openSettingsPane("Privacy_Accessibility")
}

func openSettingsPane(pane string) error {
	url := "x-apple.systempreferences:com.apple.preference.security?" + pane
	return exec.Command("open", url).Run()
}

// CheckAll returns the grant state of every required permission,
// keyed by name. Used by the settings API.
func (c *Checker) CheckAll() map[string]bool {
	return map[string]bool{
		"microphone":    c.IsMicrophoneAuthorized(),
		"accessibility": c.IsAccessibilityAuthorized(),
	}
}

// Missing returns the names of permissions not yet granted
func (c *Checker) Missing() []string {
	var missing []string
	if !c.IsMicrophoneAuthorized() {
		missing = append(missing, "Microphone")
	}
	if !c.IsAccessibilityAuthorized() {
		missing = append(missing, "Accessibility")
	}
	return missing
}
