package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// CombinerConfig holds the two-hand heart thresholds. Distances are in units
// of the mean palm size of both hands.
type CombinerConfig struct {
	IndexProximity float64 `json:"index_proximity" validate:"gt=0"`
	ThumbProximity float64 `json:"thumb_proximity" validate:"gt=0"`
	// MirrorTolerance is the allowed deviation from mirror symmetry, in degrees.
	MirrorTolerance float64 `json:"mirror_tolerance" validate:"gt=0,lte=180"`
}

// DefaultCombinerConfig returns the default two-hand thresholds.
func DefaultCombinerConfig() CombinerConfig {
	return CombinerConfig{
		IndexProximity:  0.5,
		ThumbProximity:  0.75,
		MirrorTolerance: 35,
	}
}

// HandResult is one hand's pose and static classification for a frame.
type HandResult struct {
	Pose   *detector.HandLandmarks
	Static Result
}

// Combination is the outcome of combining both hands for a frame.
type Combination struct {
	Label      Label
	Confidence float64
	// Consumed means the single-hand channels must not see this frame.
	Consumed bool
}

// Combiner detects gestures formed by both hands together.
type Combiner struct {
	cfg CombinerConfig
}

// NewCombiner creates a Combiner with the given thresholds.
func NewCombiner(cfg CombinerConfig) *Combiner {
	return &Combiner{cfg: cfg}
}

// Combine checks whether left and right together form a heart. Either
// argument may be nil when that hand is not in the frame.
func (c *Combiner) Combine(left, right *HandResult) Combination {
	if left == nil || right == nil || left.Pose == nil || right.Pose == nil {
		return Combination{Label: None}
	}
	if left.Static.Label != HeartHalf || right.Static.Label != HeartHalf {
		return Combination{Label: None}
	}

	l, r := left.Pose, right.Pose
	palm := (l.PalmSize() + r.PalmSize()) / 2
	if palm == 0 {
		return Combination{Label: None}
	}

	index := l.Points[detector.IndexTip].Distance(r.Points[detector.IndexTip]) / palm
	if index > c.cfg.IndexProximity {
		return Combination{Label: None}
	}
	thumb := l.Points[detector.ThumbTip].Distance(r.Points[detector.ThumbTip]) / palm
	if thumb > c.cfg.ThumbProximity {
		return Combination{Label: None}
	}

	// Reflect the left hand's axis across the vertical; a mirrored pair then
	// points the same way.
	la := l.Points[detector.MiddleMCP].Sub(l.Points[detector.Wrist])
	la.X = -la.X
	ra := r.Points[detector.MiddleMCP].Sub(r.Points[detector.Wrist])
	skew := angle2D(la, ra)
	if skew > c.cfg.MirrorTolerance {
		return Combination{Label: None}
	}

	conf := math.Min(left.Static.Confidence, right.Static.Confidence)
	closeness := 1 - index/c.cfg.IndexProximity
	conf *= 0.75 + 0.25*closeness

	return Combination{Label: Heart, Confidence: conf, Consumed: true}
}

// angle2D returns the unsigned angle between a and b in the image plane, in degrees.
func angle2D(a, b detector.Point3D) float64 {
	na := math.Hypot(a.X, a.Y)
	nb := math.Hypot(b.X, b.Y)
	if na == 0 || nb == 0 {
		return 180
	}
	cos := (a.X*b.X + a.Y*b.Y) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
