// Package calibration corrects landmark coordinates for camera placement:
// mirroring, rotation and the active safe zone.
package calibration

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// SafeZone is the region of the frame, in normalized coordinates, where hands
// are tracked. Coordinates inside it are stretched to the unit square.
type SafeZone struct {
	Enabled bool    `json:"enabled"`
	MinX    float64 `json:"min_x" validate:"gte=0,ltfield=MaxX"`
	MinY    float64 `json:"min_y" validate:"gte=0,ltfield=MaxY"`
	MaxX    float64 `json:"max_x" validate:"lte=1"`
	MaxY    float64 `json:"max_y" validate:"lte=1"`
}

// Config describes how the camera is mounted.
type Config struct {
	MirrorX bool `json:"mirror_x"`
	MirrorY bool `json:"mirror_y"`
	// Rotation is clockwise, in degrees: 0, 90, 180 or 270.
	Rotation int      `json:"rotation" validate:"oneof=0 90 180 270"`
	SafeZone SafeZone `json:"safe_zone"`
}

// DefaultConfig returns a selfie-camera setup: mirrored, upright, with a
// safe zone covering the central 60% of the frame.
func DefaultConfig() Config {
	return Config{
		MirrorX:  true,
		Rotation: 0,
		SafeZone: SafeZone{Enabled: true, MinX: 0.2, MinY: 0.2, MaxX: 0.8, MaxY: 0.8},
	}
}

// Calibrator applies a Config to observations. It is immutable and safe for
// concurrent use.
type Calibrator struct {
	cfg Config
}

// New validates cfg and returns a Calibrator for it.
func New(cfg Config) (*Calibrator, error) {
	switch cfg.Rotation {
	case 0, 90, 180, 270:
	default:
		return nil, fmt.Errorf("unsupported rotation %d", cfg.Rotation)
	}
	if z := cfg.SafeZone; z.Enabled && (z.MinX >= z.MaxX || z.MinY >= z.MaxY) {
		return nil, fmt.Errorf("empty safe zone %+v", z)
	}
	return &Calibrator{cfg: cfg}, nil
}

// Apply returns a corrected copy of obs. Hands whose palm centre falls
// outside the safe zone are removed. Hands with the wrong number of points
// are passed through untouched for the adapter to reject.
func (c *Calibrator) Apply(obs detector.Observation) detector.Observation {
	out := detector.Observation{Timestamp: obs.Timestamp}
	for _, h := range obs.Hands {
		if len(h.Points) != detector.NumLandmarks {
			out.Hands = append(out.Hands, h)
			continue
		}

		pts := make([]detector.Point3D, len(h.Points))
		for i, p := range h.Points {
			pts[i] = c.orient(p)
		}

		if c.cfg.SafeZone.Enabled {
			if !c.inZone(palmCenter(pts)) {
				continue
			}
			for i := range pts {
				pts[i] = c.stretch(pts[i])
			}
		}

		h.Points = pts
		// a single reflection turns a right hand into a left one
		if c.cfg.MirrorX != c.cfg.MirrorY {
			h.Handedness = swapHandedness(h.Handedness)
		}
		out.Hands = append(out.Hands, h)
	}
	return out
}

func (c *Calibrator) orient(p detector.Point3D) detector.Point3D {
	if c.cfg.MirrorX {
		p.X = 1 - p.X
	}
	if c.cfg.MirrorY {
		p.Y = 1 - p.Y
	}
	switch c.cfg.Rotation {
	case 90:
		p.X, p.Y = 1-p.Y, p.X
	case 180:
		p.X, p.Y = 1-p.X, 1-p.Y
	case 270:
		p.X, p.Y = p.Y, 1-p.X
	}
	return p
}

func (c *Calibrator) inZone(p detector.Point3D) bool {
	z := c.cfg.SafeZone
	return p.X >= z.MinX && p.X <= z.MaxX && p.Y >= z.MinY && p.Y <= z.MaxY
}

func (c *Calibrator) stretch(p detector.Point3D) detector.Point3D {
	z := c.cfg.SafeZone
	p.X = (p.X - z.MinX) / (z.MaxX - z.MinX)
	p.Y = (p.Y - z.MinY) / (z.MaxY - z.MinY)
	return p
}

func palmCenter(pts []detector.Point3D) detector.Point3D {
	var h detector.HandLandmarks
	copy(h.Points[:], pts)
	return h.PalmCenter()
}

func swapHandedness(s string) string {
	switch detector.Handedness(s) {
	case detector.Left:
		return string(detector.Right)
	case detector.Right:
		return string(detector.Left)
	}
	return s
}
