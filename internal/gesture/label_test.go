package gesture

import (
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

func TestParseLabel(t *testing.T) {
	for _, l := range BindableLabels() {
		got, ok := ParseLabel(string(l))
		if !ok || got != l {
			t.Errorf("ParseLabel(%q) = %q, %v", l, got, ok)
		}
	}

	if _, ok := ParseLabel("thumbs_up"); ok {
		t.Error("expected unknown label to be rejected")
	}
	if got, ok := ParseLabel("none"); !ok || got != None {
		t.Errorf("expected none to parse, got %q %v", got, ok)
	}
}

func TestLabel_Bindable(t *testing.T) {
	if HeartHalf.Bindable() {
		t.Error("heart_half must not be bindable")
	}
	if None.Bindable() {
		t.Error("none must not be bindable")
	}
	for _, l := range BindableLabels() {
		if !l.Bindable() {
			t.Errorf("%s should be bindable", l)
		}
	}
	if !SwipeUp.IsDynamic() || Heart.IsDynamic() || Heart.Type() != TypeCombined {
		t.Error("unexpected label types")
	}
}

func TestChannelFor(t *testing.T) {
	if ChannelFor(detector.Left) != ChannelLeft || ChannelFor(detector.Right) != ChannelRight {
		t.Error("unexpected channel mapping")
	}
}
