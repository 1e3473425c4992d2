package detector

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []RawHand
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	raw := make([]RawHand, len(hands))
	for i, h := range hands {
		raw[i] = ToRawHand(h)
	}
	m.SetRawHands(raw)
}

// SetRawHands sets unvalidated hands, including malformed ones.
func (m *MockDetector) SetRawHands(hands []RawHand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands stamped with the current time.
func (m *MockDetector) Detect(frame *gocv.Mat) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Observation{}, m.err
	}
	hands := make([]RawHand, len(m.hands))
	copy(hands, m.hands)
	return Observation{Hands: hands, Timestamp: time.Now()}, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ToRawHand converts a pose back into the wire shape produced by a detector.
func ToRawHand(h HandLandmarks) RawHand {
	return RawHand{
		Points:     append([]Point3D(nil), h.Points[:]...),
		Handedness: string(h.Handedness),
		Score:      h.Score,
	}
}

// ObservationOf builds an observation holding the given poses.
func ObservationOf(ts time.Time, hands ...HandLandmarks) Observation {
	obs := Observation{Timestamp: ts}
	for _, h := range hands {
		obs.Hands = append(obs.Hands, ToRawHand(h))
	}
	return obs
}

// Shifted returns a copy of h translated by (dx, dy, dz).
func Shifted(h HandLandmarks, dx, dy, dz float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
		h.Points[i].Z += dz
	}
	return h
}

// Mirrored returns a copy of h reflected about the vertical line x = axis,
// relabelled as the opposite hand.
func Mirrored(h HandLandmarks, axis float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X = 2*axis - h.Points[i].X
	}
	if h.Handedness == Right {
		h.Handedness = Left
	} else {
		h.Handedness = Right
	}
	return h
}

// Preset hand geometry. The hand points up in image space (y grows downward)
// with a palm size of 0.2.
var (
	presetWrist = Point3D{X: 0.50, Y: 0.80}
	presetMCP   = [4]Point3D{
		{X: 0.56, Y: 0.62}, // index
		{X: 0.50, Y: 0.60}, // middle
		{X: 0.45, Y: 0.62}, // ring
		{X: 0.40, Y: 0.65}, // pinky
	}
)

type fingerShape int

const (
	curled fingerShape = iota
	extended
)

func offset(p Point3D, dx, dy float64) Point3D {
	return Point3D{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
}

// presetHand assembles a right hand from per-finger shapes (index..pinky).
func presetHand(thumbOut bool, fingers [4]fingerShape) HandLandmarks {
	h := HandLandmarks{Handedness: Right, Score: 0.95}
	h.Points[Wrist] = presetWrist

	h.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76}
	if thumbOut {
		h.Points[ThumbMCP] = Point3D{X: 0.61, Y: 0.71}
		h.Points[ThumbIP] = Point3D{X: 0.65, Y: 0.67}
		h.Points[ThumbTip] = Point3D{X: 0.69, Y: 0.63}
	} else {
		// folded across the palm toward the pinky
		h.Points[ThumbMCP] = Point3D{X: 0.60, Y: 0.71}
		h.Points[ThumbIP] = Point3D{X: 0.60, Y: 0.66}
		h.Points[ThumbTip] = Point3D{X: 0.54, Y: 0.66}
	}

	for f, shape := range fingers {
		base := IndexMCP + f*4
		mcp := presetMCP[f]
		h.Points[base] = mcp
		if shape == extended {
			h.Points[base+1] = offset(mcp, 0, -0.08)
			h.Points[base+2] = offset(mcp, 0, -0.13)
			h.Points[base+3] = offset(mcp, 0, -0.17)
		} else {
			h.Points[base+1] = offset(mcp, 0, -0.05)
			h.Points[base+2] = offset(mcp, 0, -0.02)
			h.Points[base+3] = offset(mcp, 0, 0.03)
		}
	}

	return h
}

// FistLandmarks returns a right hand with every finger and the thumb curled.
func FistLandmarks() HandLandmarks {
	return presetHand(false, [4]fingerShape{curled, curled, curled, curled})
}

// OneFingerLandmarks returns a right hand pointing with the index finger only.
func OneFingerLandmarks() HandLandmarks {
	return presetHand(false, [4]fingerShape{extended, curled, curled, curled})
}

// TwoFingersLandmarks returns a right hand showing index and middle fingers.
func TwoFingersLandmarks() HandLandmarks {
	return presetHand(false, [4]fingerShape{extended, extended, curled, curled})
}

// ThreeFingersLandmarks returns a right hand showing index, middle and ring fingers.
func ThreeFingersLandmarks() HandLandmarks {
	return presetHand(false, [4]fingerShape{extended, extended, extended, curled})
}

// FourFingersLandmarks returns a right hand with four fingers up and the thumb folded.
func FourFingersLandmarks() HandLandmarks {
	return presetHand(false, [4]fingerShape{extended, extended, extended, extended})
}

// OpenPalmLandmarks returns a right hand with all fingers and the thumb extended.
func OpenPalmLandmarks() HandLandmarks {
	return presetHand(true, [4]fingerShape{extended, extended, extended, extended})
}

// OKLandmarks returns a right hand whose thumb and index tips touch while the
// remaining fingers are extended.
func OKLandmarks() HandLandmarks {
	h := presetHand(true, [4]fingerShape{curled, extended, extended, extended})

	h.Points[IndexPIP] = Point3D{X: 0.60, Y: 0.56}
	h.Points[IndexDIP] = Point3D{X: 0.63, Y: 0.58}
	h.Points[IndexTip] = Point3D{X: 0.635, Y: 0.615}

	h.Points[ThumbMCP] = Point3D{X: 0.61, Y: 0.72}
	h.Points[ThumbIP] = Point3D{X: 0.64, Y: 0.67}
	h.Points[ThumbTip] = Point3D{X: 0.645, Y: 0.625}

	return h
}

// HeartHalfLandmarks returns one half of a two-hand heart for the given hand.
// The index is hooked over toward the thumb and the other fingers are curled.
// The left half is the mirror image of the right half about x = 0.66, so the
// two index tips meet when both presets are shown together.
func HeartHalfLandmarks(hand Handedness) HandLandmarks {
	h := presetHand(true, [4]fingerShape{curled, curled, curled, curled})

	h.Points[IndexPIP] = Point3D{X: 0.60, Y: 0.55}
	h.Points[IndexDIP] = Point3D{X: 0.64, Y: 0.54}
	h.Points[IndexTip] = Point3D{X: 0.66, Y: 0.57}

	h.Points[ThumbMCP] = Point3D{X: 0.61, Y: 0.71}
	h.Points[ThumbIP] = Point3D{X: 0.655, Y: 0.655}
	h.Points[ThumbTip] = Point3D{X: 0.68, Y: 0.61}

	if hand == Left {
		return Mirrored(h, 0.66)
	}
	return h
}
