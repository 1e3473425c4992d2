package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a plugin or command outlives its deadline.
var ErrTimeout = errors.New("execution timed out")

// waitDelay bounds how long a killed process's children may hold its pipes open.
const waitDelay = time.Second

// Executor runs plugin executables and plain commands with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. Each run is bounded by timeout in addition
// to the caller's context.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Execute sends req to plugin on stdin and parses its stdout as a Response.
// The plugin runs with its own directory as the working directory.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.WaitDelay = waitDelay
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin %s: %w", plugin.Manifest.Name, ErrTimeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("plugin %s failed: %w, stderr: %s", plugin.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("plugin %s failed: %w", plugin.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}
	return &resp, nil
}

// Run executes argv directly, without a shell. env is appended to the
// current environment.
func (e *Executor) Run(ctx context.Context, dir string, argv []string, env []string) error {
	if len(argv) == 0 {
		return ErrEmptyCommand
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), env...)

	output, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", argv[0], ErrTimeout)
	}
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("%s: %w: %s", argv[0], err, bytes.TrimSpace(output))
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

func (e *Executor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
