package capture

import "time"

// GateConfig controls the idle/active frame rate switch.
type GateConfig struct {
	IdleFPS   int
	ActiveFPS int
	// IdleAfter is how long without motion before dropping back to IdleFPS.
	IdleAfter time.Duration
}

// DefaultGateConfig returns 5 fps idle, 15 fps active, 2 s hold.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		IdleFPS:   5,
		ActiveFPS: 15,
		IdleAfter: 2 * time.Second,
	}
}

// Gate tracks whether the scene is active. Motion switches it to active at
// once; it returns to idle after IdleAfter without motion. Frames are only
// worth running through the detector while the gate is active.
type Gate struct {
	cfg        GateConfig
	active     bool
	lastMotion time.Time
}

// NewGate creates an idle Gate.
func NewGate(cfg GateConfig) *Gate {
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = DefaultGateConfig().IdleFPS
	}
	if cfg.ActiveFPS < cfg.IdleFPS {
		cfg.ActiveFPS = cfg.IdleFPS
	}
	return &Gate{cfg: cfg}
}

// Observe records whether the frame at now showed motion. It returns true
// when the gate changed state.
func (g *Gate) Observe(motion bool, now time.Time) bool {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true
		}
		return false
	}
	if g.active && now.Sub(g.lastMotion) > g.cfg.IdleAfter {
		g.active = false
		return true
	}
	return false
}

// Active reports whether the gate is active.
func (g *Gate) Active() bool { return g.active }

// FPS returns the frame rate for the current state.
func (g *Gate) FPS() int {
	if g.active {
		return g.cfg.ActiveFPS
	}
	return g.cfg.IdleFPS
}

// Interval returns the frame period for the current state.
func (g *Gate) Interval() time.Duration {
	return time.Second / time.Duration(g.FPS())
}
