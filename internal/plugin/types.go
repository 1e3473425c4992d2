// Package plugin discovers and runs the out-of-process action plugins that
// perform key, pointer and system actions.
package plugin

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Description  string             `json:"description"`
	Executable   string             `json:"executable"`
	Actions      []string           `json:"actions"`
	ConfigSchema jsoniter.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declares action. A manifest without an
// action list accepts every action.
func (m Manifest) Supports(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin as a single JSON document.
type Request struct {
	Action   string            `json:"action"`
	ActionID string            `json:"action_id"`
	Gesture  string            `json:"gesture"`
	Channel  string            `json:"channel"`
	Params   map[string]string `json:"params,omitempty"`
	FiredAt  time.Time         `json:"fired_at"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
