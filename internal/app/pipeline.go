package app

import (
	"context"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/sirupsen/logrus"
)

// capture is the frame loop. It reads at the gate's frame rate, keeps the
// latest frame for the stream, and only runs the detector while motion keeps
// the gate active. Idle ticks submit an empty observation so hand loss and
// channel resets still progress.
func (a *App) capture(ctx context.Context) {
	ticker := time.NewTicker(a.gate.Interval())
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !a.enabled.Load() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if !failing {
					a.log.WithError(err).Warn("frame read failed")
					failing = true
				}
				continue
			}
			if failing {
				a.log.Info("frame reads recovered")
				failing = false
			}
			a.keepFrame(frame)

			moved, fraction := a.motion.Detect(frame)
			if a.gate.Observe(moved, now) {
				a.camera.SetFPS(a.gate.FPS())
				ticker.Reset(a.gate.Interval())
				a.active.Store(a.gate.Active())
				a.fps.Store(int32(a.gate.FPS()))
				a.log.WithFields(logrus.Fields{
					"active": a.gate.Active(),
					"fps":    a.gate.FPS(),
					"motion": fraction,
				}).Debug("capture mode changed")
			}

			if !a.gate.Active() {
				frame.Close()
				a.runner.Submit(detector.Observation{Timestamp: now})
				continue
			}

			obs, err := a.detector.Detect(frame)
			frame.Close()
			if err != nil {
				a.log.WithError(err).Debug("hand detection failed")
				continue
			}
			a.runner.Submit(obs)
		}
	}
}
