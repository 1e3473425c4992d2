// Package main provides a keyboard plugin for macOS.
// It sends keystrokes and shortcuts such as "alt+tab" via AppleScript.
package main

import (
	"fmt"
	"os"
	"os/exec"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request represents the input from the plugin executor.
type Request struct {
	Action   string            `json:"action"`
	ActionID string            `json:"action_id"`
	Gesture  string            `json:"gesture"`
	Channel  string            `json:"channel"`
	Params   map[string]string `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	switch req.Action {
	case "keystroke", "shortcut":
		script, err := keystrokeScript(req.Params)
		if err != nil {
			writeResponse(fmt.Errorf("action %s failed: %w", req.Action, err))
			return
		}
		if err := runAppleScript(script); err != nil {
			writeResponse(fmt.Errorf("action %s failed: %w", req.Action, err))
			return
		}
	default:
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
		return
	}

	writeResponse(nil)
}

// writeResponse writes the result to stdout.
func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
