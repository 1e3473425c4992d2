// Package tray provides the system tray menu for Mudra.
package tray

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
)

// Controller is the part of the app the tray drives.
type Controller interface {
	Enabled() bool
	SetEnabled(ctx context.Context, enabled bool) error
}

// Tray represents the system tray application.
type Tray struct {
	ctrl       Controller
	log        logrus.FieldLogger
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray that toggles ctrl.
func New(ctrl Controller, log logrus.FieldLogger) *Tray {
	return &Tray{ctrl: ctrl, log: log}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

// gestureTitle formats the last-gesture menu entry, e.g. "Last: swipe left (right)".
func gestureTitle(ev *gesture.Event) string {
	if ev == nil || ev.Label == gesture.None {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %s (%s)", strings.ReplaceAll(string(ev.Label), "_", " "), ev.Channel)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.ctrl.Enabled()), "Toggle gesture recognition")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(gestureTitle(nil), "Last detected gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips recognition and reflects the persisted state.
func (t *Tray) handleToggle() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := !t.ctrl.Enabled()
	if err := t.ctrl.SetEnabled(ctx, want); err != nil {
		t.log.WithError(err).Error("toggle recognition failed")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.ctrl.Enabled()))
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastGesture updates the last gesture display in the menu. It is safe to
// call before the menu exists.
func (t *Tray) SetLastGesture(ev gesture.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(gestureTitle(&ev))
	}
}
