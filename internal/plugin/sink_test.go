package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
)

func newTestSink(t *testing.T, pluginDir, scriptDir string) *Sink {
	t.Helper()
	manager := NewManager(pluginDir, mlog.Nop())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return NewSink(manager, NewExecutor(5*time.Second), scriptDir, mlog.Nop())
}

func TestSink_RoutesKindsToPlugins(t *testing.T) {
	pluginDir := t.TempDir()
	out := t.TempDir()

	// each plugin appends its name and the requested action to a log file
	for _, name := range []string{"keyboard", "pointer", "system-control", "custom"} {
		writePlugin(t, pluginDir, name, `INPUT=$(cat)
echo "`+name+` $INPUT" >> "`+filepath.Join(out, "calls.log")+`"
echo '{"success":true}'
`)
	}

	sink := newTestSink(t, pluginDir, t.TempDir())

	tests := []struct {
		inv  action.Invocation
		want string
	}{
		{action.Invocation{ActionID: "a", Kind: action.KindKey, Name: "keystroke", Params: map[string]string{"key": "space"}, Label: gesture.OneFinger}, "keyboard"},
		{action.Invocation{ActionID: "b", Kind: action.KindPointer, Name: "click", Label: gesture.Fist}, "pointer"},
		{action.Invocation{ActionID: "c", Kind: action.KindSystem, Name: "volume-up", Label: gesture.Heart, Channel: gesture.ChannelBoth}, "system-control"},
		{action.Invocation{ActionID: "d", Kind: action.KindKey, Name: "keystroke", Plugin: "custom", Label: gesture.OK}, "custom"},
	}

	for _, tt := range tests {
		if err := sink.Execute(context.Background(), tt.inv); err != nil {
			t.Fatalf("Execute(%s) error = %v", tt.inv.ActionID, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "calls.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(tests) {
		t.Fatalf("got %d plugin calls, want %d:\n%s", len(lines), len(tests), data)
	}
	for i, tt := range tests {
		if !strings.HasPrefix(lines[i], tt.want+" ") {
			t.Errorf("call %d went to %q, want %s", i, lines[i], tt.want)
		}
		if !strings.Contains(lines[i], `"action":"`+tt.inv.Name+`"`) {
			t.Errorf("call %d = %q, want action %s", i, lines[i], tt.inv.Name)
		}
	}
}

func TestSink_PluginErrors(t *testing.T) {
	pluginDir := t.TempDir()
	writePlugin(t, pluginDir, "keyboard", `echo '{"success":false,"error":"no accessibility permission"}'
`, "keystroke")

	sink := newTestSink(t, pluginDir, t.TempDir())

	err := sink.Execute(context.Background(), action.Invocation{Kind: action.KindKey, Name: "keystroke"})
	if !errors.Is(err, ErrActionFailed) || !strings.Contains(err.Error(), "no accessibility permission") {
		t.Errorf("failed action error = %v, want ErrActionFailed with message", err)
	}

	err = sink.Execute(context.Background(), action.Invocation{Kind: action.KindKey, Name: "type-text"})
	if !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("undeclared action error = %v, want ErrUnsupportedAction", err)
	}

	err = sink.Execute(context.Background(), action.Invocation{Kind: action.KindPointer, Name: "click"})
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("missing plugin error = %v, want ErrPluginNotFound", err)
	}
}

func TestSink_Shell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptDir := t.TempDir()
	sink := newTestSink(t, t.TempDir(), scriptDir)

	inv := action.Invocation{
		ActionID: "note",
		Kind:     action.KindShell,
		Label:    gesture.SwipeUp,
		Channel:  gesture.ChannelLeft,
		Params:   map[string]string{"command": `sh -c 'echo "$MUDRA_GESTURE $MUDRA_CHANNEL" > "hello world.txt"'`},
	}
	if err := sink.Execute(context.Background(), inv); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(scriptDir, "hello world.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "swipe_up left" {
		t.Errorf("output = %q, want %q", got, "swipe_up left")
	}

	if err := sink.Execute(context.Background(), action.Invocation{Kind: action.KindShell}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("empty command error = %v, want ErrEmptyCommand", err)
	}
	bad := action.Invocation{Kind: action.KindShell, Params: map[string]string{"command": `echo "unterminated`}}
	if err := sink.Execute(context.Background(), bad); err == nil {
		t.Error("unterminated quote error = nil, want parse error")
	}
}

func TestSink_Script(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptDir := t.TempDir()
	script := "#!/bin/sh\necho \"$1|$2|$MUDRA_ACTION_ID\" > out.txt\n"
	if err := os.WriteFile(filepath.Join(scriptDir, "notify.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	sink := newTestSink(t, t.TempDir(), scriptDir)
	inv := action.Invocation{
		ActionID: "notify",
		Kind:     action.KindScript,
		Params:   map[string]string{"path": "notify.sh", "args": `"two words" second`},
	}
	if err := sink.Execute(context.Background(), inv); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(scriptDir, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "two words|second|notify" {
		t.Errorf("output = %q", got)
	}

	if err := sink.Execute(context.Background(), action.Invocation{Kind: action.KindScript}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("missing path error = %v, want ErrEmptyCommand", err)
	}
}

func TestSink_ImplementsActionSink(t *testing.T) {
	var _ action.Sink = (*Sink)(nil)
}
