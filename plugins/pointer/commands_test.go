package main

import (
	"reflect"
	"testing"
)

func TestCommandFor(t *testing.T) {
	tests := []struct {
		name   string
		action string
		params map[string]string
		want   []string
	}{
		{"default click", "click", nil, []string{"c:."}},
		{"right click", "click", map[string]string{"button": "right"}, []string{"rc:."}},
		{"double click", "double-click", nil, []string{"dc:."}},
		{"absolute move", "move", map[string]string{"x": "100", "y": "200"}, []string{"m:100,200"}},
		{"relative move", "move", map[string]string{"x": "-5", "y": "10", "relative": "true"}, []string{"m:-5,+10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := commandFor(tt.action, tt.params)
			if err != nil {
				t.Fatalf("commandFor() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commandFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandFor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		action string
		params map[string]string
	}{
		{"unknown action", "drag", nil},
		{"unknown button", "click", map[string]string{"button": "middle"}},
		{"missing y", "move", map[string]string{"x": "1"}},
		{"bad x", "move", map[string]string{"x": "left", "y": "1"}},
		{"negative absolute", "move", map[string]string{"x": "-1", "y": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := commandFor(tt.action, tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}
