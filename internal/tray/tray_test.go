package tray

import (
	"context"
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
)

type fakeController struct {
	enabled bool
	err     error
}

func (f *fakeController) Enabled() bool { return f.enabled }

func (f *fakeController) SetEnabled(_ context.Context, enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = enabled
	return nil
}

func TestGestureTitle(t *testing.T) {
	tests := []struct {
		name string
		ev   *gesture.Event
		want string
	}{
		{"nil", nil, "Last: none"},
		{"none label", &gesture.Event{Label: gesture.None}, "Last: none"},
		{"single hand", &gesture.Event{Label: gesture.SwipeLeft, Channel: gesture.ChannelRight}, "Last: swipe left (right)"},
		{"two hands", &gesture.Event{Label: gesture.Heart, Channel: gesture.ChannelBoth}, "Last: heart (both)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gestureTitle(tt.ev); got != tt.want {
				t.Errorf("gestureTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToggleTitle(t *testing.T) {
	if toggleTitle(true) != "● Enabled" || toggleTitle(false) != "○ Disabled" {
		t.Errorf("unexpected titles %q %q", toggleTitle(true), toggleTitle(false))
	}
}

func TestHandleToggle_WithoutMenu(t *testing.T) {
	ctrl := &fakeController{enabled: true}
	tr := New(ctrl, mlog.Nop())

	tr.handleToggle()
	if ctrl.enabled {
		t.Error("expected toggle to disable recognition")
	}

	ctrl.err = errors.New("locked")
	tr.handleToggle()
	if ctrl.enabled {
		t.Error("failed toggle must leave state unchanged")
	}

	// no menu yet: must not panic
	tr.SetLastGesture(gesture.Event{Label: gesture.Fist})
}

func TestHandleSettings(t *testing.T) {
	tr := New(&fakeController{}, mlog.Nop())
	called := false
	tr.OnSettings(func() { called = true })
	tr.handleSettings()
	if !called {
		t.Error("settings callback not called")
	}
}
