// Package main provides a pointer plugin for macOS.
// It clicks and moves the pointer through the cliclick command line tool.
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

	args, err := commandFor(req.Action, req.Params)
	if err != nil {
		writeResponse(err)
		return
	}
	if err := runCliclick(args); err != nil {
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

func runCliclick(args []string) error {
	cmd := exec.Command("cliclick", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
