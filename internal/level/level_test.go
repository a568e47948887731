package level

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize_Clamping(t *testing.T) {
	tests := []struct {
		name string
		db   float64
		want float64
	}{
		{"silence floor", -60, 0},
		{"below floor", -120, 0},
		{"negative infinity", math.Inf(-1), 0},
		{"full scale", 0, 1},
		{"above full scale", 12, 1},
		{"positive infinity", math.Inf(1), 1},
		{"midpoint", -30, 0.5},
		{"quarter", -45, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.db)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Normalize(%v) = %v, want %v", tt.db, got, tt.want)
			}
		})
	}
}

func TestNormalize_AlwaysInRange(t *testing.T) {
	// Any raw decibel input must land in [0, 1]
	inputs := []float64{math.Inf(-1), -1e9, -60.0001, -59.9999, -0.0001, 0, 0.0001, 1e9, math.Inf(1), math.NaN()}

	for _, db := range inputs {
		got := Normalize(db)
		if got < 0 || got > 1 || math.IsNaN(got) {
			t.Errorf("Normalize(%v) = %v, outside [0, 1]", db, got)
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}

	if got := RMS(make([]int16, 512)); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}

	// A constant full-scale signal has RMS ~1.0
	full := make([]int16, 512)
	for i := range full {
		full[i] = math.MaxInt16
	}
	if got := RMS(full); math.Abs(got-1.0) > 1e-3 {
		t.Errorf("RMS(full scale) = %v, want ~1.0", got)
	}

	// Louder signals have higher RMS
	half := make([]int16, 512)
	for i := range half {
		half[i] = math.MaxInt16 / 2
	}
	if RMS(half) >= RMS(full) {
		t.Error("Expected half-scale RMS below full-scale RMS")
	}
}

func TestDBFS(t *testing.T) {
	if !math.IsInf(DBFS(0), -1) {
		t.Error("Expected DBFS(0) to be -Inf")
	}

	if got := DBFS(1.0); math.Abs(got) > 1e-9 {
		t.Errorf("DBFS(1.0) = %v, want 0", got)
	}

	// Half amplitude is about -6dB
	if got := DBFS(0.5); math.Abs(got-(-6.0206)) > 0.01 {
		t.Errorf("DBFS(0.5) = %v, want ~-6.02", got)
	}
}

func TestMonitor_PermissionDenied(t *testing.T) {
	denied := errors.New("not authorized")
	m := NewMonitor(func() error { return denied })

	var gotErr error
	err := m.Start(0, nil, func(err error) { gotErr = err })

	if err == nil {
		t.Fatal("Expected Start to fail when permission is denied")
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if gotErr == nil {
		t.Error("Expected onError to be invoked")
	}
	// No stream may have been opened
	if m.IsRunning() {
		t.Error("Monitor must not be running after a denied start")
	}
}

func TestMonitor_StopWhenNotRunning(t *testing.T) {
	m := NewMonitor(nil)

	// Must be a no-op, not a panic
	m.Stop()
	m.Stop()

	if m.IsRunning() {
		t.Error("Monitor should not be running")
	}
}
