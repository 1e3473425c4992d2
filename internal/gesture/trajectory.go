package gesture

import (
	"math"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// TrackerConfig holds the dynamic gesture thresholds.
type TrackerConfig struct {
	// Capacity is the number of samples a trajectory must hold before it is classified.
	Capacity int
	// SwipeDistance is the minimum in-plane travel, in normalized image units.
	SwipeDistance float64
	// DepthDistance is the minimum travel along z for push and pull.
	DepthDistance float64
	// DominanceRatio is how much the main axis must exceed the other two.
	DominanceRatio float64
	// ReversalTolerance is the allowed backtracking as a fraction of net travel.
	ReversalTolerance float64
	// MaxWindow bounds the time spanned by a full trajectory.
	MaxWindow time.Duration
}

// DefaultTrackerConfig returns the default dynamic gesture thresholds.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Capacity:          10,
		SwipeDistance:     0.15,
		DepthDistance:     0.1,
		DominanceRatio:    1.5,
		ReversalTolerance: 0.15,
		MaxWindow:         time.Second,
	}
}

// Sample is one palm position in a trajectory.
type Sample struct {
	Position detector.Point3D
	Time     time.Time
}

// Trajectory is a fixed-capacity ring buffer of palm samples for one hand.
// Timestamps are strictly increasing; the oldest sample is evicted when full.
type Trajectory struct {
	buf   []Sample
	start int
	n     int
}

// NewTrajectory creates an empty trajectory holding at most capacity samples.
func NewTrajectory(capacity int) *Trajectory {
	if capacity < 1 {
		capacity = 1
	}
	return &Trajectory{buf: make([]Sample, capacity)}
}

// Push appends s, evicting the oldest sample when full. It returns false and
// leaves the buffer untouched if s is not newer than the last sample.
func (t *Trajectory) Push(s Sample) bool {
	if t.n > 0 && !s.Time.After(t.at(t.n-1).Time) {
		return false
	}
	if t.n < len(t.buf) {
		t.buf[(t.start+t.n)%len(t.buf)] = s
		t.n++
		return true
	}
	t.buf[t.start] = s
	t.start = (t.start + 1) % len(t.buf)
	return true
}

func (t *Trajectory) at(i int) Sample {
	return t.buf[(t.start+i)%len(t.buf)]
}

// Len returns the number of samples held.
func (t *Trajectory) Len() int { return t.n }

// Cap returns the capacity.
func (t *Trajectory) Cap() int { return len(t.buf) }

// Full reports whether the trajectory holds Cap samples.
func (t *Trajectory) Full() bool { return t.n == len(t.buf) }

// Clear drops every sample.
func (t *Trajectory) Clear() {
	t.start, t.n = 0, 0
}

// Samples returns a copy of the samples, oldest first.
func (t *Trajectory) Samples() []Sample {
	out := make([]Sample, t.n)
	for i := range out {
		out[i] = t.at(i)
	}
	return out
}

// Tracker classifies hand motion over a trajectory.
type Tracker struct {
	cfg TrackerConfig
}

// NewTracker creates a Tracker with the given thresholds.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{cfg: cfg}
}

// NewTrajectory returns an empty trajectory sized for this tracker.
func (tr *Tracker) NewTrajectory() *Trajectory {
	return NewTrajectory(tr.cfg.Capacity)
}

type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

func component(p detector.Point3D, a axis) float64 {
	switch a {
	case axisX:
		return p.X
	case axisY:
		return p.Y
	}
	return p.Z
}

// Update records the palm centre of pose in traj and classifies the motion.
// It returns None until traj is full. The trajectory is cleared after any
// dynamic gesture so overlapping windows cannot fire twice.
func (tr *Tracker) Update(pose *detector.HandLandmarks, traj *Trajectory) Result {
	if pose == nil || !traj.Push(Sample{Position: pose.PalmCenter(), Time: pose.Timestamp}) {
		return Result{Label: None}
	}
	if !traj.Full() {
		return Result{Label: None}
	}

	res := tr.classify(traj.Samples())
	if res.Label == None {
		return res
	}
	res.Confidence *= pose.Score
	traj.Clear()
	return res
}

func (tr *Tracker) classify(samples []Sample) Result {
	first, last := samples[0], samples[len(samples)-1]
	if last.Time.Sub(first.Time) > tr.cfg.MaxWindow {
		return Result{Label: None}
	}

	net := last.Position.Sub(first.Position)
	ax, ay, az := math.Abs(net.X), math.Abs(net.Y), math.Abs(net.Z)
	r := tr.cfg.DominanceRatio

	var (
		a         axis
		label     Label
		threshold float64
	)
	switch {
	case ax >= tr.cfg.SwipeDistance && ax >= r*math.Max(ay, az):
		a, threshold = axisX, tr.cfg.SwipeDistance
		label = SwipeRight
		if net.X < 0 {
			label = SwipeLeft
		}
	case ay >= tr.cfg.SwipeDistance && ay >= r*math.Max(ax, az):
		// image y grows downward
		a, threshold = axisY, tr.cfg.SwipeDistance
		label = SwipeDown
		if net.Y < 0 {
			label = SwipeUp
		}
	case az >= tr.cfg.DepthDistance && az >= r*math.Max(ax, ay):
		// smaller z is closer to the camera
		a, threshold = axisZ, tr.cfg.DepthDistance
		label = Pull
		if net.Z < 0 {
			label = Push
		}
	default:
		return Result{Label: None}
	}

	total := component(net, a)
	if backtrack(samples, a, total) > tr.cfg.ReversalTolerance*math.Abs(total) {
		return Result{Label: None}
	}

	margin := (math.Abs(total) - threshold) / threshold
	return Result{
		Label:      label,
		Confidence: 0.5 + 0.5*math.Min(1, margin),
		Margin:     margin,
	}
}

// backtrack sums the movement along a that goes against the net direction.
func backtrack(samples []Sample, a axis, net float64) float64 {
	dir := 1.0
	if net < 0 {
		dir = -1
	}
	var back float64
	for i := 1; i < len(samples); i++ {
		step := (component(samples[i].Position, a) - component(samples[i-1].Position, a)) * dir
		if step < 0 {
			back -= step
		}
	}
	return back
}
