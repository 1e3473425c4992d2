// Package engine runs the per-frame recognition pipeline: adapt, classify,
// track, combine and debounce.
package engine

import (
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/sirupsen/logrus"
)

// Config is the immutable recognition configuration for a session.
type Config struct {
	// MinConfidence is the detection score below which a hand counts as absent.
	MinConfidence float64
	// HandLossTimeout is how long a hand may be missing before its channel resets.
	HandLossTimeout time.Duration
	Classifier      gesture.ClassifierConfig
	Tracker         gesture.TrackerConfig
	Combiner        gesture.CombinerConfig
	Debounce        gesture.DebounceConfig
}

// DefaultConfig returns the default recognition configuration.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.7,
		HandLossTimeout: 300 * time.Millisecond,
		Classifier:      gesture.DefaultClassifierConfig(),
		Tracker:         gesture.DefaultTrackerConfig(),
		Combiner:        gesture.DefaultCombinerConfig(),
		Debounce:        gesture.DefaultDebounceConfig(),
	}
}

// handTrack is the per-hand state that outlives a frame.
type handTrack struct {
	traj     *gesture.Trajectory
	lastSeen time.Time
	present  bool
}

// Engine turns observations into confirmed gesture events. It owns all
// channel and trajectory state and must be driven from a single goroutine,
// one frame at a time.
type Engine struct {
	cfg        Config
	log        logrus.FieldLogger
	calibrator *calibration.Calibrator
	adapter    *detector.Adapter
	classifier *gesture.Classifier
	tracker    *gesture.Tracker
	combiner   *gesture.Combiner
	debouncer  *gesture.Debouncer
	hands      map[detector.Handedness]*handTrack
}

// Option configures an Engine.
type Option func(*Engine)

// WithCalibrator corrects every observation before it is adapted.
func WithCalibrator(c *calibration.Calibrator) Option {
	return func(e *Engine) { e.calibrator = c }
}

// New creates an Engine with every channel idle.
func New(cfg Config, log logrus.FieldLogger, opts ...Option) *Engine {
	tracker := gesture.NewTracker(cfg.Tracker)
	e := &Engine{
		cfg:        cfg,
		log:        log,
		adapter:    detector.NewAdapter(cfg.MinConfidence, log),
		classifier: gesture.NewClassifier(cfg.Classifier),
		tracker:    tracker,
		combiner:   gesture.NewCombiner(cfg.Combiner),
		debouncer:  gesture.NewDebouncer(cfg.Debounce),
		hands: map[detector.Handedness]*handTrack{
			detector.Left:  {traj: tracker.NewTrajectory()},
			detector.Right: {traj: tracker.NewTrajectory()},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs one frame through the pipeline. now is the wall-clock time
// read once for this frame; hand loss and cooldowns are judged against it.
func (e *Engine) Process(obs detector.Observation, now time.Time) []gesture.Event {
	if e.calibrator != nil {
		obs = e.calibrator.Apply(obs)
	}

	var results [2]*gesture.HandResult
	seen := map[detector.Handedness]*detector.HandLandmarks{}

	poses := e.adapter.Adapt(obs)
	for i := range poses {
		seen[poses[i].Handedness] = &poses[i]
	}

	for i, h := range []detector.Handedness{detector.Left, detector.Right} {
		track := e.hands[h]
		pose, ok := seen[h]
		if !ok {
			e.expire(h, track, now)
			continue
		}
		track.present = true
		track.lastSeen = now

		results[i] = &gesture.HandResult{Pose: pose, Static: e.classifier.Classify(pose)}
	}

	var events []gesture.Event
	emit := func(ch gesture.Channel, in gesture.Input) {
		if ev, ok := e.debouncer.Step(ch, in, now); ok {
			e.log.WithFields(logrus.Fields{
				"gesture":    ev.Label,
				"channel":    ev.Channel,
				"confidence": ev.Confidence,
			}).Debug("gesture confirmed")
			events = append(events, ev)
		}
	}

	comb := e.combiner.Combine(results[0], results[1])
	if comb.Label != gesture.None {
		emit(gesture.ChannelBoth, gesture.Input{
			Label:      comb.Label,
			Confidence: comb.Confidence,
			Position:   midpoint(results[0].Pose.Points[detector.IndexTip], results[1].Pose.Points[detector.IndexTip]),
		})
	} else {
		emit(gesture.ChannelBoth, gesture.Input{Label: gesture.None})
	}

	// Heart owns the frame: the trackers skip it so a motion in progress is
	// not classified and cleared behind the combined gesture.
	if comb.Consumed {
		return events
	}

	for i, h := range []detector.Handedness{detector.Left, detector.Right} {
		r := results[i]
		if r == nil {
			continue
		}
		in := gesture.Input{Label: r.Static.Label, Confidence: r.Static.Confidence, Position: r.Pose.PalmCenter()}
		if dyn := e.tracker.Update(r.Pose, e.hands[h].traj); dyn.Label != gesture.None {
			in.Label = dyn.Label
			in.Confidence = dyn.Confidence
			in.Immediate = true
		}
		// half a heart only counts together with the other half
		if in.Label == gesture.HeartHalf {
			in.Label = gesture.None
		}
		emit(gesture.ChannelFor(h), in)
	}

	return events
}

// expire resets a hand's channel and trajectory once it has been missing
// longer than the hand-loss timeout. Until then its state is left frozen.
func (e *Engine) expire(h detector.Handedness, track *handTrack, now time.Time) {
	if !track.present || now.Sub(track.lastSeen) <= e.cfg.HandLossTimeout {
		return
	}
	track.present = false
	track.traj.Clear()
	e.debouncer.Reset(gesture.ChannelFor(h))
	e.debouncer.Reset(gesture.ChannelBoth)
	e.log.WithField("hand", h).Debug("hand lost")
}

// ResetAll returns every channel to Idle and clears both trajectories, as if
// all hands had been lost. Call it from the goroutine driving Process.
func (e *Engine) ResetAll() {
	for h, track := range e.hands {
		track.present = false
		track.traj.Clear()
		e.debouncer.Reset(gesture.ChannelFor(h))
	}
	e.debouncer.Reset(gesture.ChannelBoth)
	e.log.Debug("recognition state reset")
}

// ChannelState returns a snapshot of a channel's debounce state.
func (e *Engine) ChannelState(ch gesture.Channel) gesture.ChannelState {
	return e.debouncer.State(ch)
}

// TrajectoryLen returns the number of samples buffered for a hand.
func (e *Engine) TrajectoryLen(h detector.Handedness) int {
	return e.hands[h].traj.Len()
}

func midpoint(a, b detector.Point3D) detector.Point3D {
	return detector.Point3D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}
