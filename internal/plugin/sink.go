package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ayusman/mudra/internal/action"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyCommand is returned for shell and script actions with nothing to run.
	ErrEmptyCommand = errors.New("empty command")
	// ErrUnsupportedAction is returned when a plugin does not declare the action.
	ErrUnsupportedAction = errors.New("action not supported by plugin")
	// ErrActionFailed wraps a failure reported by the plugin itself.
	ErrActionFailed = errors.New("plugin reported failure")
)

// Default plugin for each plugin-backed action kind.
var kindPlugins = map[action.Kind]string{
	action.KindKey:     "keyboard",
	action.KindPointer: "pointer",
	action.KindSystem:  "system-control",
}

// Sink executes action invocations. Key, pointer and system actions go to a
// plugin; shell and script actions run as child processes.
type Sink struct {
	manager   *Manager
	exec      *Executor
	scriptDir string
	log       logrus.FieldLogger
}

// NewSink creates a Sink. Relative script paths resolve against scriptDir.
func NewSink(manager *Manager, exec *Executor, scriptDir string, log logrus.FieldLogger) *Sink {
	return &Sink{
		manager:   manager,
		exec:      exec,
		scriptDir: scriptDir,
		log:       log,
	}
}

// Execute performs inv.
func (s *Sink) Execute(ctx context.Context, inv action.Invocation) error {
	switch inv.Kind {
	case action.KindShell:
		return s.runShell(ctx, inv)
	case action.KindScript:
		return s.runScript(ctx, inv)
	}

	name := inv.Plugin
	if name == "" {
		name = kindPlugins[inv.Kind]
	}
	if name == "" {
		return fmt.Errorf("no plugin for kind %q", inv.Kind)
	}

	p, err := s.manager.Get(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !p.Manifest.Supports(inv.Name) {
		return fmt.Errorf("%s/%s: %w", name, inv.Name, ErrUnsupportedAction)
	}

	resp, err := s.exec.Execute(ctx, p, &Request{
		Action:   inv.Name,
		ActionID: inv.ActionID,
		Gesture:  string(inv.Label),
		Channel:  string(inv.Channel),
		Params:   inv.Params,
		FiredAt:  inv.FiredAt,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s/%s: %w: %s", name, inv.Name, ErrActionFailed, resp.Error)
	}
	return nil
}

// runShell splits params["command"] into argv with shell quoting rules and
// runs it without a shell.
func (s *Sink) runShell(ctx context.Context, inv action.Invocation) error {
	argv, err := shlex.Split(inv.Params["command"])
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(argv) == 0 {
		return ErrEmptyCommand
	}
	return s.exec.Run(ctx, s.scriptDir, argv, invocationEnv(inv))
}

// runScript runs the executable at params["path"] with params["args"].
func (s *Sink) runScript(ctx context.Context, inv action.Invocation) error {
	path := inv.Params["path"]
	if path == "" {
		return ErrEmptyCommand
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.scriptDir, path)
	}
	args, err := shlex.Split(inv.Params["args"])
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}
	return s.exec.Run(ctx, filepath.Dir(path), append([]string{path}, args...), invocationEnv(inv))
}

func invocationEnv(inv action.Invocation) []string {
	return []string{
		"MUDRA_ACTION_ID=" + inv.ActionID,
		"MUDRA_GESTURE=" + string(inv.Label),
		"MUDRA_CHANNEL=" + string(inv.Channel),
		fmt.Sprintf("MUDRA_X=%.4f", inv.Position.X),
		fmt.Sprintf("MUDRA_Y=%.4f", inv.Position.Y),
	}
}
