package capture

import (
	"testing"
	"time"
)

func TestGate(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewGate(DefaultGateConfig())

	if g.Active() || g.FPS() != 5 {
		t.Fatalf("new gate: active=%v fps=%d; want idle at 5", g.Active(), g.FPS())
	}
	if g.Interval() != 200*time.Millisecond {
		t.Errorf("idle Interval() = %v, want 200ms", g.Interval())
	}

	steps := []struct {
		at          time.Duration
		motion      bool
		wantChanged bool
		wantActive  bool
	}{
		{0, false, false, false},
		{100 * time.Millisecond, true, true, true},
		{200 * time.Millisecond, true, false, true},
		{1 * time.Second, false, false, true},
		{2200 * time.Millisecond, false, false, true},
		{2300 * time.Millisecond, false, true, false},
		{2400 * time.Millisecond, false, false, false},
		{3 * time.Second, true, true, true},
	}

	for i, s := range steps {
		changed := g.Observe(s.motion, t0.Add(s.at))
		if changed != s.wantChanged || g.Active() != s.wantActive {
			t.Errorf("step %d at %v: changed=%v active=%v, want %v %v", i, s.at, changed, g.Active(), s.wantChanged, s.wantActive)
		}
	}

	if g.FPS() != 15 {
		t.Errorf("active FPS() = %d, want 15", g.FPS())
	}
}

func TestNewGate_Normalizes(t *testing.T) {
	g := NewGate(GateConfig{IdleFPS: 0, ActiveFPS: 2})
	if g.cfg.IdleFPS != 5 || g.cfg.ActiveFPS != 5 {
		t.Errorf("cfg = %+v, want idle 5 and active raised to idle", g.cfg)
	}
}
