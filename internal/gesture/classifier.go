package gesture

import (
	"math"
	"sort"

	"github.com/ayusman/mudra/internal/detector"
)

// ClassifierConfig holds the geometric thresholds of the static classifier.
// Distances are in palm-size units.
type ClassifierConfig struct {
	FingerExtendThreshold float64 `json:"finger_extend_threshold" validate:"gt=0"`
	ThumbExtendThreshold  float64 `json:"thumb_extend_threshold" validate:"gte=0"`
	OKDistance            float64 `json:"ok_distance" validate:"gt=0"`
	HeartTipDistance      float64 `json:"heart_tip_distance" validate:"gt=0"`
	// Bend of the index finger at the PIP joint, in degrees.
	HeartAngleMin float64 `json:"heart_angle_min" validate:"gte=0,ltefield=HeartAngleMax"`
	HeartAngleMax float64 `json:"heart_angle_max" validate:"lte=180"`
	// Margin at which confidence saturates.
	MarginScale float64 `json:"margin_scale" validate:"gt=0"`
	// Results below this confidence are reported as None.
	MinConfidence float64 `json:"min_confidence" validate:"gte=0,lte=1"`
	// Hands smaller than this (in normalized image units) are ignored.
	MinPalmSize float64 `json:"min_palm_size" validate:"gte=0"`
}

// DefaultClassifierConfig returns the default static classifier thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FingerExtendThreshold: 0.1,
		ThumbExtendThreshold:  0.05,
		OKDistance:            0.3,
		HeartTipDistance:      0.6,
		HeartAngleMin:         30,
		HeartAngleMax:         120,
		MarginScale:           0.25,
		MinConfidence:         0.5,
		MinPalmSize:           1e-3,
	}
}

// Result is a classification for one hand in one frame.
type Result struct {
	Label      Label
	Confidence float64
	// Margin is how far the winning rule cleared its nearest threshold.
	Margin float64
}

// Classifier maps a single hand pose to a static gesture label.
// It holds no state: the same pose always yields the same result.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

type candidate struct {
	label  Label
	margin float64
}

// marginTie is the margin difference under which two labels are ambiguous.
const marginTie = 1e-9

// Classify returns the static gesture shown by pose.
func (c *Classifier) Classify(pose *detector.HandLandmarks) Result {
	if pose == nil {
		return Result{Label: None}
	}
	palm := pose.PalmSize()
	if palm < c.cfg.MinPalmSize || palm == 0 {
		return Result{Label: None}
	}

	f := c.measure(pose, palm)
	cands := c.candidates(pose, palm, f)
	if len(cands) == 0 {
		return Result{Label: None}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].margin > cands[j].margin })
	if len(cands) > 1 && cands[0].margin-cands[1].margin <= marginTie {
		return Result{Label: None}
	}

	best := cands[0]
	conf := pose.Score * (0.5 + 0.5*math.Min(1, best.margin/c.cfg.MarginScale))
	if conf < c.cfg.MinConfidence {
		return Result{Label: None, Confidence: conf, Margin: best.margin}
	}
	return Result{Label: best.label, Confidence: conf, Margin: best.margin}
}

// fingers holds signed extension margins: positive means extended.
// Index 0..3 are index..pinky.
type fingers struct {
	ext   [4]float64
	thumb float64
}

func (f fingers) extended(i int) bool { return f.ext[i] >= 0 }

func (f fingers) thumbExtended() bool { return f.thumb >= 0 }

// mask returns the index..pinky extension bitmask, index in bit 0.
func (f fingers) mask() int {
	m := 0
	for i := range f.ext {
		if f.extended(i) {
			m |= 1 << i
		}
	}
	return m
}

// clearance is the smallest distance of any finger from its threshold.
func (f fingers) clearance() float64 {
	m := math.Inf(1)
	for _, e := range f.ext {
		m = math.Min(m, math.Abs(e))
	}
	return m
}

func (c *Classifier) measure(pose *detector.HandLandmarks, palm float64) fingers {
	var f fingers
	wrist := pose.Points[detector.Wrist]
	for i := 0; i < 4; i++ {
		mcp := detector.IndexMCP + 4*i
		pip := pose.Points[mcp+1]
		tip := pose.Points[mcp+3]
		e := (tip.Distance(wrist) - pip.Distance(wrist)) / palm
		f.ext[i] = e - c.cfg.FingerExtendThreshold
	}

	pinky := pose.Points[detector.PinkyMCP]
	e := (pose.Points[detector.ThumbTip].Distance(pinky) - pose.Points[detector.ThumbIP].Distance(pinky)) / palm
	f.thumb = e - c.cfg.ThumbExtendThreshold
	return f
}

func (c *Classifier) candidates(pose *detector.HandLandmarks, palm float64, f fingers) []candidate {
	var cands []candidate
	thumb := math.Abs(f.thumb)

	switch f.mask() {
	case 0b0000:
		if !f.thumbExtended() {
			cands = append(cands, candidate{Fist, math.Min(f.clearance(), thumb)})
		}
	case 0b0001:
		cands = append(cands, candidate{OneFinger, f.clearance()})
	case 0b0011:
		cands = append(cands, candidate{TwoFingers, f.clearance()})
	case 0b0111:
		cands = append(cands, candidate{ThreeFingers, f.clearance()})
	case 0b1111:
		if f.thumbExtended() {
			cands = append(cands, candidate{OpenHand, math.Min(f.clearance(), thumb)})
		} else {
			cands = append(cands, candidate{FourFingers, math.Min(f.clearance(), thumb)})
		}
	}

	tipGap := pose.Points[detector.ThumbTip].Distance(pose.Points[detector.IndexTip]) / palm

	if f.extended(1) && f.extended(2) && f.extended(3) && tipGap <= c.cfg.OKDistance {
		m := c.cfg.OKDistance - tipGap
		for i := 1; i < 4; i++ {
			m = math.Min(m, f.ext[i])
		}
		cands = append(cands, candidate{OK, m})
	}

	if m, ok := c.heartHalf(pose, f, tipGap); ok {
		cands = append(cands, candidate{HeartHalf, m})
	}

	return cands
}

// heartHalf matches one hand of a two-hand heart: the index hooked over
// toward an extended thumb with the other fingers folded, the thumb lying on
// the handedness-specific side of the index.
func (c *Classifier) heartHalf(pose *detector.HandLandmarks, f fingers, tipGap float64) (float64, bool) {
	if !f.thumbExtended() || f.extended(1) || f.extended(2) || f.extended(3) {
		return 0, false
	}
	if tipGap > c.cfg.HeartTipDistance {
		return 0, false
	}

	bend := jointBend(pose.Points[detector.IndexMCP], pose.Points[detector.IndexPIP], pose.Points[detector.IndexTip])
	if bend < c.cfg.HeartAngleMin || bend > c.cfg.HeartAngleMax {
		return 0, false
	}

	wrist := pose.Points[detector.Wrist]
	side := cross2D(pose.Points[detector.IndexMCP].Sub(wrist), pose.Points[detector.ThumbTip].Sub(wrist))
	switch pose.Handedness {
	case detector.Right:
		if side <= 0 {
			return 0, false
		}
	case detector.Left:
		if side >= 0 {
			return 0, false
		}
	default:
		return 0, false
	}

	angleMargin := math.Min(bend-c.cfg.HeartAngleMin, c.cfg.HeartAngleMax-bend) / 90
	m := math.Min(f.thumb, c.cfg.HeartTipDistance-tipGap)
	m = math.Min(m, angleMargin)
	for i := 1; i < 4; i++ {
		m = math.Min(m, -f.ext[i])
	}
	return m, true
}

// jointBend returns the bend at b in degrees: 0 for a straight a-b-c chain,
// 180 when c folds straight back onto a.
func jointBend(a, b, c detector.Point3D) float64 {
	u := b.Sub(a)
	v := c.Sub(b)
	nu := math.Sqrt(u.X*u.X + u.Y*u.Y + u.Z*u.Z)
	nv := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := (u.X*v.X + u.Y*v.Y + u.Z*v.Z) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func cross2D(a, b detector.Point3D) float64 {
	return a.X*b.Y - a.Y*b.X
}
