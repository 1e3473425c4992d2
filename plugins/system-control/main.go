// Package main provides a system control plugin for macOS.
// It handles volume, brightness, and media playback controls via AppleScript.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request represents the input from the plugin executor.
type Request struct {
	Action   string            `json:"action"`
	ActionID string            `json:"action_id"`
	Gesture  string            `json:"gesture"`
	Params   map[string]string `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

const defaultVolumeStep = 10

// scriptFor returns the AppleScript for a system action.
func scriptFor(action string, params map[string]string) (string, error) {
	switch action {
	case "volume-up", "volume-down":
		step := defaultVolumeStep
		if s := params["step"]; s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 100 {
				return "", fmt.Errorf("invalid step %q", s)
			}
			step = n
		}
		sign := "+"
		if action == "volume-down" {
			sign = "-"
		}
		return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) %s %d)`, sign, step), nil
	case "volume-mute":
		return `set volume output muted (not (output muted of (get volume settings)))`, nil
	case "brightness-up":
		return keyCode(144), nil
	case "brightness-down":
		return keyCode(145), nil
	case "media-play-pause":
		return keyCode(100), nil
	case "media-next":
		return keyCode(101), nil
	case "media-prev":
		return keyCode(98), nil
	}
	return "", fmt.Errorf("unknown action: %s", action)
}

func keyCode(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	script, err := scriptFor(req.Action, req.Params)
	if err != nil {
		writeResponse(err)
		return
	}
	if err := runAppleScript(script); err != nil {
		writeResponse(fmt.Errorf("action %s failed: %w", req.Action, err))
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
