package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/sirupsen/logrus"
)

// Handler receives confirmed events on the runner goroutine. It must not block.
type Handler func(gesture.Event)

// Runner feeds observations to an Engine from a single goroutine. Its queue
// holds one frame: a frame that arrives while another is waiting replaces it.
type Runner struct {
	engine *Engine
	handle Handler
	log    logrus.FieldLogger
	frames chan detector.Observation
	clock  func() time.Time

	processed atomic.Uint64
	dropped   atomic.Uint64
	reset     atomic.Bool
}

// NewRunner creates a Runner that passes every event to handle.
func NewRunner(e *Engine, handle Handler, log logrus.FieldLogger) *Runner {
	return &Runner{
		engine: e,
		handle: handle,
		log:    log,
		frames: make(chan detector.Observation, 1),
		clock:  time.Now,
	}
}

// Submit queues obs for processing without blocking. A frame still waiting
// in the queue is discarded in favour of obs.
func (r *Runner) Submit(obs detector.Observation) {
	for {
		select {
		case r.frames <- obs:
			return
		default:
		}
		select {
		case <-r.frames:
			r.dropped.Add(1)
		default:
		}
	}
}

// Reset discards the queued frame and asks the runner goroutine to reset the
// engine before it processes the next one.
func (r *Runner) Reset() {
	r.reset.Store(true)
	select {
	case <-r.frames:
		r.dropped.Add(1)
	default:
	}
}

// Run processes frames until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.log.WithFields(logrus.Fields{
				"processed": r.processed.Load(),
				"dropped":   r.dropped.Load(),
			}).Info("recognition stopped")
			return ctx.Err()
		case obs := <-r.frames:
			if r.reset.Swap(false) {
				r.engine.ResetAll()
			}
			events := r.engine.Process(obs, r.clock())
			r.processed.Add(1)
			for _, ev := range events {
				r.handle(ev)
			}
		}
	}
}

// Processed returns the number of frames processed.
func (r *Runner) Processed() uint64 { return r.processed.Load() }

// Dropped returns the number of frames superseded before processing.
func (r *Runner) Dropped() uint64 { return r.dropped.Load() }
