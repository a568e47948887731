package hotkey

import (
	"testing"

	"golang.design/x/hotkey"
)

func TestParseBinding(t *testing.T) {
	b, err := ParseBinding(true, false, true, false, "Space")
	if err != nil {
		t.Fatalf("ParseBinding failed: %v", err)
	}

	if b.Key != hotkey.KeySpace {
		t.Errorf("Expected Space key, got %v", b.Key)
	}
	if len(b.Modifiers) != 2 {
		t.Errorf("Expected 2 modifiers, got %d", len(b.Modifiers))
	}
}

func TestParseBinding_Letters(t *testing.T) {
	// Exact constants matter: on macOS these are Carbon virtual keycodes
	// with no alphabetical ordering, so each name must hit its own entry
	tests := []struct {
		key  string
		want hotkey.Key
	}{
		{"R", hotkey.KeyR},
		{"r", hotkey.KeyR},
		{"A", hotkey.KeyA},
		{"B", hotkey.KeyB},
		{"S", hotkey.KeyS},
		{"Z", hotkey.KeyZ},
		{"0", hotkey.Key0},
		{"1", hotkey.Key1},
		{"5", hotkey.Key5},
		{"9", hotkey.Key9},
	}

	for _, tt := range tests {
		b, err := ParseBinding(false, false, false, true, tt.key)
		if err != nil {
			t.Errorf("ParseBinding(%q) failed: %v", tt.key, err)
			continue
		}
		if b.Key != tt.want {
			t.Errorf("ParseBinding(%q) = %v, want %v", tt.key, b.Key, tt.want)
		}
	}
}

func TestKeyRoundTrip(t *testing.T) {
	// Every named key must render back to its own name
	for _, name := range []string{"Space", "B", "S", "R", "Z", "0", "9"} {
		k, err := keyFromString(name)
		if err != nil {
			t.Fatalf("keyFromString(%q) failed: %v", name, err)
		}
		if got := keyToString(k); got != name {
			t.Errorf("keyToString(keyFromString(%q)) = %q", name, got)
		}
	}
}

func TestParseBinding_NoModifiers(t *testing.T) {
	if _, err := ParseBinding(false, false, false, false, "Space"); err == nil {
		t.Error("Expected error for binding without modifiers")
	}
}

func TestParseBinding_UnknownKey(t *testing.T) {
	if _, err := ParseBinding(true, false, false, false, "Bogus"); err == nil {
		t.Error("Expected error for unknown key name")
	}
}

func TestBinding_String(t *testing.T) {
	tests := []struct {
		binding Binding
		want    string
	}{
		{DefaultBinding(), "⌃⌥Space"},
		{Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd}, Key: hotkey.KeyR}, "⌘R"},
		{Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift}, Key: hotkey.Key3}, "⌘⇧3"},
	}

	for _, tt := range tests {
		if got := tt.binding.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestCheckConflicts(t *testing.T) {
	spotlight := Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd}, Key: hotkey.KeySpace}

	conflicts := CheckConflicts(spotlight)
	if len(conflicts) == 0 {
		t.Fatal("Expected Cmd+Space to conflict with Spotlight")
	}
	if conflicts[0].Name != "Spotlight" {
		t.Errorf("Expected Spotlight conflict, got %s", conflicts[0].Name)
	}
}

func TestCheckConflicts_DefaultIsClean(t *testing.T) {
	if conflicts := CheckConflicts(DefaultBinding()); len(conflicts) != 0 {
		t.Errorf("Default binding must not conflict, got %v", conflicts)
	}
}

func TestCheckConflicts_ModifierOrderIrrelevant(t *testing.T) {
	reversed := Binding{
		Modifiers: []hotkey.Modifier{hotkey.ModOption, hotkey.ModCmd},
		Key:       hotkey.KeyEscape,
	}

	conflicts := CheckConflicts(reversed)
	if len(conflicts) != 1 || conflicts[0].Name != "Force Quit" {
		t.Errorf("Expected Force Quit conflict regardless of modifier order, got %v", conflicts)
	}
}

func TestManager_CloseWhenNotRunning(t *testing.T) {
	m := NewManager()

	if err := m.Close(); err != nil {
		t.Errorf("Close on idle manager must be a no-op, got %v", err)
	}
	if m.IsRunning() {
		t.Error("Manager must not report running")
	}
}

func TestManager_BindingCopyIsIsolated(t *testing.T) {
	m := NewManager()

	b := m.Binding()
	if len(b.Modifiers) == 0 {
		t.Fatal("Expected default modifiers")
	}
	b.Modifiers[0] = hotkey.ModCmd

	if m.Binding().Modifiers[0] == hotkey.ModCmd {
		t.Error("Mutating the returned binding must not affect the manager")
	}
}
