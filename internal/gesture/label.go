// Package gesture classifies hand poses and hand motion into gesture labels
// and debounces them into confirmed events, one channel per hand plus one for
// two-hand gestures.
package gesture

import "github.com/ayusman/mudra/internal/detector"

// Label names a gesture in the closed gesture vocabulary.
type Label string

const (
	None Label = "none"

	// static, single frame
	Fist         Label = "fist"
	OneFinger    Label = "one_finger"
	TwoFingers   Label = "two_fingers"
	ThreeFingers Label = "three_fingers"
	FourFingers  Label = "four_fingers"
	OpenHand     Label = "open_hand"
	OK           Label = "ok"
	HeartHalf    Label = "heart_half"

	// dynamic, classified from a trajectory
	SwipeLeft  Label = "swipe_left"
	SwipeRight Label = "swipe_right"
	SwipeUp    Label = "swipe_up"
	SwipeDown  Label = "swipe_down"
	Push       Label = "push"
	Pull       Label = "pull"

	// two hands
	Heart Label = "heart"
)

// Type represents the type of gesture.
type Type string

const (
	// TypeStatic is a hand pose classified from a single frame.
	TypeStatic Type = "static"
	// TypeDynamic is a motion pattern classified from consecutive frames.
	TypeDynamic Type = "dynamic"
	// TypeCombined is a gesture that needs both hands.
	TypeCombined Type = "combined"
)

var labelTypes = map[Label]Type{
	Fist:         TypeStatic,
	OneFinger:    TypeStatic,
	TwoFingers:   TypeStatic,
	ThreeFingers: TypeStatic,
	FourFingers:  TypeStatic,
	OpenHand:     TypeStatic,
	OK:           TypeStatic,
	HeartHalf:    TypeStatic,
	SwipeLeft:    TypeDynamic,
	SwipeRight:   TypeDynamic,
	SwipeUp:      TypeDynamic,
	SwipeDown:    TypeDynamic,
	Push:         TypeDynamic,
	Pull:         TypeDynamic,
	Heart:        TypeCombined,
}

// Type reports the kind of gesture l is. None has an empty type.
func (l Label) Type() Type {
	return labelTypes[l]
}

// IsDynamic reports whether l is a motion gesture.
func (l Label) IsDynamic() bool {
	return l.Type() == TypeDynamic
}

// Bindable reports whether l can ever be confirmed and therefore bound to an
// action. HeartHalf only exists as an input to the two-hand combiner.
func (l Label) Bindable() bool {
	_, ok := labelTypes[l]
	return ok && l != HeartHalf
}

// ParseLabel returns the label named s.
func ParseLabel(s string) (Label, bool) {
	l := Label(s)
	if l == None {
		return None, true
	}
	if _, ok := labelTypes[l]; !ok {
		return None, false
	}
	return l, true
}

// BindableLabels lists every label that can be bound, in a stable order.
func BindableLabels() []Label {
	return []Label{
		Fist, OneFinger, TwoFingers, ThreeFingers, FourFingers, OpenHand, OK,
		SwipeLeft, SwipeRight, SwipeUp, SwipeDown, Push, Pull,
		Heart,
	}
}

// Channel identifies an independent debounce track.
type Channel string

const (
	ChannelLeft  Channel = "left"
	ChannelRight Channel = "right"
	ChannelBoth  Channel = "both"
)

// ChannelFor returns the single-hand channel for a handedness.
func ChannelFor(h detector.Handedness) Channel {
	if h == detector.Left {
		return ChannelLeft
	}
	return ChannelRight
}
