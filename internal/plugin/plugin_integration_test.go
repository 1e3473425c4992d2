package plugin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	mlog "github.com/ayusman/mudra/internal/log"
)

// These tests run the bundled plugins once they are built next to their
// plugin.json (go build -o plugins/<name>/<name> ./plugins/<name>). They only send
// requests the plugins reject so no real input is synthesized.

func TestPlugin_SystemControl_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("system-control plugin only works on macOS")
	}

	plug := builtPlugin(t, "system-control")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Action: "invalid-action"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for invalid action")
	}
}

func TestPlugin_Keyboard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("keyboard plugin only works on macOS")
	}

	plug := builtPlugin(t, "keyboard")

	req := &Request{Action: "keystroke", Params: map[string]string{"key": ""}}
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty key")
	}
}

func TestPlugin_Pointer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	plug := builtPlugin(t, "pointer")

	req := &Request{Action: "move", Params: map[string]string{"x": "10"}}
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for missing y")
	}
}

func builtPlugin(t *testing.T, name string) *Plugin {
	t.Helper()
	dir := findPluginDir(name)
	if dir == "" {
		t.Skipf("%s plugin not built", name)
	}

	mgr := NewManager(filepath.Dir(dir), mlog.Nop())
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	plug, err := mgr.Get(name)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := os.Stat(plug.Executable); err != nil {
		t.Skipf("%s plugin binary missing", name)
	}
	return plug
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}
	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, "plugin.json")); err == nil {
			return dir
		}
	}
	return ""
}
