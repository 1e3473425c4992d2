package gesture

import (
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const frame = 33 * time.Millisecond

// path builds one pose per offset, each a frame apart.
func path(offsets []detector.Point3D, step time.Duration) []detector.HandLandmarks {
	base := detector.OpenPalmLandmarks()
	poses := make([]detector.HandLandmarks, len(offsets))
	for i, o := range offsets {
		p := detector.Shifted(base, o.X, o.Y, o.Z)
		p.Timestamp = t0.Add(time.Duration(i) * step)
		poses[i] = p
	}
	return poses
}

func linear(n int, dx, dy, dz float64) []detector.Point3D {
	out := make([]detector.Point3D, n)
	for i := range out {
		f := float64(i)
		out[i] = detector.Point3D{X: f * dx, Y: f * dy, Z: f * dz}
	}
	return out
}

func xs(vals ...float64) []detector.Point3D {
	out := make([]detector.Point3D, len(vals))
	for i, v := range vals {
		out[i] = detector.Point3D{X: v}
	}
	return out
}

// feed runs every pose through the tracker and returns the non-None labels.
func feed(tr *Tracker, traj *Trajectory, poses []detector.HandLandmarks) []Label {
	var got []Label
	for i := range poses {
		if r := tr.Update(&poses[i], traj); r.Label != None {
			got = append(got, r.Label)
		}
	}
	return got
}

func TestTrajectory_Ring(t *testing.T) {
	traj := NewTrajectory(10)

	for i := 0; i < 12; i++ {
		ok := traj.Push(Sample{Position: detector.Point3D{X: float64(i)}, Time: t0.Add(time.Duration(i) * frame)})
		if !ok {
			t.Fatalf("push %d rejected", i)
		}
	}

	if traj.Len() != 10 || !traj.Full() {
		t.Fatalf("expected a full buffer of 10, got %d", traj.Len())
	}
	s := traj.Samples()
	if s[0].Position.X != 2 || s[9].Position.X != 11 {
		t.Errorf("expected samples 2..11, got %v..%v", s[0].Position.X, s[9].Position.X)
	}

	t.Run("rejects stale timestamps", func(t *testing.T) {
		last := s[9].Time
		if traj.Push(Sample{Time: last}) {
			t.Error("expected equal timestamp to be rejected")
		}
		if traj.Push(Sample{Time: last.Add(-time.Millisecond)}) {
			t.Error("expected older timestamp to be rejected")
		}
		if traj.Len() != 10 {
			t.Errorf("buffer changed by rejected push, len %d", traj.Len())
		}
	})

	t.Run("clear", func(t *testing.T) {
		traj.Clear()
		if traj.Len() != 0 || len(traj.Samples()) != 0 {
			t.Error("expected empty buffer after Clear")
		}
	})
}

func TestTracker_Directions(t *testing.T) {
	tests := []struct {
		name    string
		offsets []detector.Point3D
		want    Label
	}{
		{"swipe right", linear(10, 0.02, 0.001, 0), SwipeRight},
		{"swipe left", linear(10, -0.02, 0, 0), SwipeLeft},
		{"swipe up", linear(10, 0, -0.02, 0), SwipeUp},
		{"swipe down", linear(10, 0.002, 0.02, 0), SwipeDown},
		{"push", linear(10, 0, 0, -0.015), Push},
		{"pull", linear(10, 0, 0, 0.015), Pull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultTrackerConfig())
			traj := tr.NewTrajectory()

			got := feed(tr, traj, path(tt.offsets, frame))

			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("expected [%s], got %v", tt.want, got)
			}
			if traj.Len() != 0 {
				t.Errorf("expected buffer cleared after classification, len %d", traj.Len())
			}
		})
	}
}

func TestTracker_RequiresFullBuffer(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig())
	traj := tr.NewTrajectory()

	// nine samples covering far more than the swipe distance
	if got := feed(tr, traj, path(linear(9, 0.05, 0, 0), frame)); len(got) != 0 {
		t.Errorf("expected nothing before the buffer is full, got %v", got)
	}
}

func TestTracker_RejectsReversals(t *testing.T) {
	t.Run("left-right-left never swipes", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()

		var offsets []detector.Point3D
		for i := 0; i < 60; i++ {
			// triangle wave, 0.1 per frame, period 8 frames
			phase := i % 8
			x := float64(phase) * 0.1
			if phase > 4 {
				x = float64(8-phase) * 0.1
			}
			offsets = append(offsets, detector.Point3D{X: x})
		}

		for _, l := range feed(tr, traj, path(offsets, frame)) {
			if l == SwipeLeft || l == SwipeRight {
				t.Fatalf("reversing motion classified as %s", l)
			}
		}
	})

	t.Run("large net travel with backtracking", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()

		got := feed(tr, traj, path(xs(0, 0.1, 0.2, 0.3, 0.2, 0.1, 0.2, 0.3, 0.4, 0.35), frame))
		if len(got) != 0 {
			t.Errorf("expected no swipe, got %v", got)
		}
	})
}

func TestTracker_Rejects(t *testing.T) {
	t.Run("too slow", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()
		if got := feed(tr, traj, path(linear(10, 0.03, 0, 0), 200*time.Millisecond)); len(got) != 0 {
			t.Errorf("expected no swipe over 1.8s, got %v", got)
		}
	})

	t.Run("diagonal", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()
		if got := feed(tr, traj, path(linear(10, 0.02, 0.0167, 0), frame)); len(got) != 0 {
			t.Errorf("expected no swipe for diagonal motion, got %v", got)
		}
	})

	t.Run("too short", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()
		if got := feed(tr, traj, path(linear(10, 0.01, 0, 0), frame)); len(got) != 0 {
			t.Errorf("expected no swipe for 0.09 travel, got %v", got)
		}
	})

	t.Run("stale frame", func(t *testing.T) {
		tr := NewTracker(DefaultTrackerConfig())
		traj := tr.NewTrajectory()
		poses := path(linear(2, 0.01, 0, 0), frame)
		poses[1].Timestamp = poses[0].Timestamp

		feed(tr, traj, poses)
		if traj.Len() != 1 {
			t.Errorf("expected stale sample to be dropped, len %d", traj.Len())
		}
	})
}

func TestTracker_NoOverlappingRetrigger(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig())
	traj := tr.NewTrajectory()

	// 15 frames of steady motion: one swipe at frame 10, then only 5 fresh samples
	got := feed(tr, traj, path(linear(15, 0.02, 0, 0), frame))
	if len(got) != 1 {
		t.Errorf("expected exactly one swipe, got %v", got)
	}
}
