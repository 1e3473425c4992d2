package calibration

import (
	"math"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

func single(p detector.Point3D) detector.Observation {
	pts := make([]detector.Point3D, detector.NumLandmarks)
	for i := range pts {
		pts[i] = p
	}
	return detector.Observation{
		Hands:     []detector.RawHand{{Points: pts, Handedness: "Right", Score: 0.9}},
		Timestamp: time.Unix(100, 0),
	}
}

func near(a, b detector.Point3D) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 && math.Abs(a.Z-b.Z) < 1e-9
}

func TestCalibrator_Orientation(t *testing.T) {
	p := detector.Point3D{X: 0.3, Y: 0.4, Z: -0.1}

	tests := []struct {
		name      string
		cfg       Config
		want      detector.Point3D
		wantHand  string
	}{
		{"identity", Config{}, p, "Right"},
		{"mirror x", Config{MirrorX: true}, detector.Point3D{X: 0.7, Y: 0.4, Z: -0.1}, "Left"},
		{"mirror y", Config{MirrorY: true}, detector.Point3D{X: 0.3, Y: 0.6, Z: -0.1}, "Left"},
		{"mirror both", Config{MirrorX: true, MirrorY: true}, detector.Point3D{X: 0.7, Y: 0.6, Z: -0.1}, "Right"},
		{"rotate 90", Config{Rotation: 90}, detector.Point3D{X: 0.6, Y: 0.3, Z: -0.1}, "Right"},
		{"rotate 180", Config{Rotation: 180}, detector.Point3D{X: 0.7, Y: 0.6, Z: -0.1}, "Right"},
		{"rotate 270", Config{Rotation: 270}, detector.Point3D{X: 0.4, Y: 0.7, Z: -0.1}, "Right"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			out := c.Apply(single(p))
			if len(out.Hands) != 1 {
				t.Fatalf("expected 1 hand, got %d", len(out.Hands))
			}
			if got := out.Hands[0].Points[0]; !near(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if out.Hands[0].Handedness != tt.wantHand {
				t.Errorf("expected handedness %s, got %s", tt.wantHand, out.Hands[0].Handedness)
			}
		})
	}
}

func TestCalibrator_SafeZone(t *testing.T) {
	c, err := New(Config{SafeZone: SafeZone{Enabled: true, MinX: 0.2, MinY: 0.2, MaxX: 0.8, MaxY: 0.8}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("inside is stretched", func(t *testing.T) {
		out := c.Apply(single(detector.Point3D{X: 0.5, Y: 0.35}))
		if len(out.Hands) != 1 {
			t.Fatalf("expected hand kept, got %d", len(out.Hands))
		}
		if got := out.Hands[0].Points[0]; !near(got, detector.Point3D{X: 0.5, Y: 0.25}) {
			t.Errorf("unexpected stretched point %+v", got)
		}
	})

	t.Run("outside is dropped", func(t *testing.T) {
		out := c.Apply(single(detector.Point3D{X: 0.9, Y: 0.5}))
		if len(out.Hands) != 0 {
			t.Errorf("expected hand dropped, got %d", len(out.Hands))
		}
		if !out.Timestamp.Equal(time.Unix(100, 0)) {
			t.Error("expected timestamp preserved")
		}
	})

	t.Run("malformed passes through", func(t *testing.T) {
		obs := detector.Observation{Hands: []detector.RawHand{{Points: make([]detector.Point3D, 3), Handedness: "Left"}}}
		out := c.Apply(obs)
		if len(out.Hands) != 1 || len(out.Hands[0].Points) != 3 {
			t.Errorf("expected malformed hand untouched, got %+v", out.Hands)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		obs := single(detector.Point3D{X: 0.5, Y: 0.35})
		c.Apply(obs)
		if obs.Hands[0].Points[0].Y != 0.35 {
			t.Error("Apply mutated its input")
		}
	})
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Rotation: 45}); err == nil {
		t.Error("expected error for 45 degree rotation")
	}
	if _, err := New(Config{SafeZone: SafeZone{Enabled: true, MinX: 0.5, MaxX: 0.5, MaxY: 1}}); err == nil {
		t.Error("expected error for empty safe zone")
	}
	if _, err := New(DefaultConfig()); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}
