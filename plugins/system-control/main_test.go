package main

import (
	"strings"
	"testing"
)

func TestScriptFor(t *testing.T) {
	tests := []struct {
		action string
		params map[string]string
		want   string
	}{
		{"volume-up", nil, "+ 10)"},
		{"volume-down", map[string]string{"step": "25"}, "- 25)"},
		{"volume-mute", nil, "output muted"},
		{"media-play-pause", nil, "key code 100"},
		{"media-next", nil, "key code 101"},
		{"brightness-down", nil, "key code 145"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, err := scriptFor(tt.action, tt.params)
			if err != nil {
				t.Fatalf("scriptFor() error = %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("scriptFor() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestScriptFor_Errors(t *testing.T) {
	if _, err := scriptFor("reboot", nil); err == nil {
		t.Error("expected error for unknown action")
	}
	for _, step := range []string{"0", "101", "loud"} {
		if _, err := scriptFor("volume-up", map[string]string{"step": step}); err == nil {
			t.Errorf("step %q: expected error", step)
		}
	}
}
