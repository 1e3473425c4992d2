package main

import (
	"errors"
	"fmt"
	"strings"
)

var errNoKey = errors.New("key is required")

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// keyCodes are keys that AppleScript cannot type as text.
var keyCodes = map[string]int{
	"return":    36,
	"enter":     36,
	"tab":       48,
	"space":     49,
	"delete":    51,
	"escape":    53,
	"esc":       53,
	"left":      123,
	"right":     124,
	"down":      125,
	"up":        126,
	"home":      115,
	"end":       119,
	"pageup":    116,
	"pagedown":  121,
	"f1":        122,
	"f2":        120,
	"f3":        99,
	"f4":        118,
	"f5":        96,
	"f11":       103,
	"f12":       111,
}

// parseCombo splits "cmd+shift+4" into modifiers and the final key. Extra
// modifiers may come from a comma separated list.
func parseCombo(combo, extra string) (key string, mods []string, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	key = strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		// "cmd++" means the plus key
		if strings.HasSuffix(combo, "++") {
			key = "+"
			parts = parts[:len(parts)-1]
		} else {
			return "", nil, errNoKey
		}
	}

	names := parts[:len(parts)-1]
	if extra != "" {
		names = append(names, strings.Split(strings.ToLower(extra), ",")...)
	}

	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		mod, ok := modifierMap[name]
		if !ok {
			return "", nil, fmt.Errorf("unknown modifier %q", name)
		}
		if !seen[mod] {
			seen[mod] = true
			mods = append(mods, mod)
		}
	}
	return key, mods, nil
}

// keystrokeScript builds the AppleScript for params["key"] and the optional
// params["modifiers"].
func keystrokeScript(params map[string]string) (string, error) {
	key, mods, err := parseCombo(params["key"], params["modifiers"])
	if err != nil {
		return "", err
	}

	var press string
	if code, ok := keyCodes[key]; ok {
		press = fmt.Sprintf("key code %d", code)
	} else {
		press = fmt.Sprintf(`keystroke "%s"`, strings.ReplaceAll(key, `"`, `\"`))
	}
	if len(mods) > 0 {
		press += " using {" + strings.Join(mods, ", ") + "}"
	}
	return `tell application "System Events" to ` + press, nil
}
