package hotkey

import "golang.design/x/hotkey"

// Conflict describes a well-known macOS shortcut a binding collides with
type Conflict struct {
	Name        string
	Description string
	Binding     Binding
}

var knownConflicts = []Conflict{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Binding:     Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd}, Key: hotkey.KeySpace},
	},
	{
		Name:        "Input Source Switch",
		Description: "Keyboard input source switching",
		Binding:     Binding{Modifiers: []hotkey.Modifier{hotkey.ModCtrl}, Key: hotkey.KeySpace},
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit dialog",
		Binding:     Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption}, Key: hotkey.KeyEscape},
	},
	{
		Name:        "Screenshot",
		Description: "macOS full-screen screenshot",
		Binding:     Binding{Modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift}, Key: hotkey.Key3},
	},
}

// CheckConflicts returns the known system shortcuts matching the binding.
// Registration is not blocked on a conflict; the list is advisory.
func CheckConflicts(binding Binding) []Conflict {
	var conflicts []Conflict
	for _, known := range knownConflicts {
		if bindingsEqual(binding, known.Binding) {
			conflicts = append(conflicts, known)
		}
	}
	return conflicts
}

func bindingsEqual(a, b Binding) bool {
	if a.Key != b.Key || len(a.Modifiers) != len(b.Modifiers) {
		return false
	}

	set := make(map[hotkey.Modifier]bool, len(a.Modifiers))
	for _, mod := range a.Modifiers {
		set[mod] = true
	}
	for _, mod := range b.Modifiers {
		if !set[mod] {
			return false
		}
	}
	return true
}
