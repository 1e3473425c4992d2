// Package app wires capture, recognition and dispatch into the running
// Mudra application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// EventRetention is how long gesture history is kept.
	EventRetention = 30 * 24 * time.Hour

	outboxSize     = 256
	publishTimeout = 2 * time.Second
)

// ErrNoFrame is returned by Snapshot before the first frame is captured.
var ErrNoFrame = errors.New("no frame captured yet")

// Broadcaster pushes live messages to UI clients.
type Broadcaster interface {
	Broadcast(typ string, data interface{}) error
}

// Options holds the collaborators of an App. Store, Camera, Detector and
// Sink are required.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Sink     action.Sink
	Plugins  *plugin.Manager
	Hub      Broadcaster
	Bus      bus.Publisher
	Log      logrus.FieldLogger
}

// outboxItem is deferred work that must not run on the recognition goroutine.
type outboxItem struct {
	event  *gesture.Event
	result *action.Result
}

// App is the main application that orchestrates gesture detection and action execution.
type App struct {
	cfg        *config.Config
	store      *store.Store
	camera     capture.Camera
	motion     *capture.MotionDetector
	gate       *capture.Gate
	detector   detector.Detector
	engine     *engine.Engine
	runner     *engine.Runner
	dispatcher *action.Dispatcher
	plugins    *plugin.Manager
	hub        Broadcaster
	bus        bus.Publisher
	log        logrus.FieldLogger

	enabled atomic.Bool
	active  atomic.Bool
	fps     atomic.Int32
	last    atomic.Pointer[gesture.Event]
	outbox  chan outboxItem

	frameMu     sync.Mutex
	frame       gocv.Mat
	frameClosed bool

	listenMu  sync.RWMutex
	listeners []func(gesture.Event)

	running atomic.Bool
}

// New builds an App from opts, loading the binding table and the persisted
// enabled flag from the store.
func New(ctx context.Context, opts Options) (*App, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("app: config is required")
	case opts.Store == nil:
		return nil, errors.New("app: store is required")
	case opts.Camera == nil:
		return nil, errors.New("app: camera is required")
	case opts.Detector == nil:
		return nil, errors.New("app: detector is required")
	case opts.Sink == nil:
		return nil, errors.New("app: sink is required")
	}
	cfg := opts.Config

	cal, err := calibration.New(cfg.Calibration)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	table, err := opts.Store.Bindings().Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}

	enabled, err := opts.Store.Settings().Bool(ctx, store.SettingRecognitionEnabled, true)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	a := &App{
		cfg:      cfg,
		store:    opts.Store,
		camera:   opts.Camera,
		motion:   capture.NewMotionDetector(cfg.Camera.MotionThreshold),
		gate:     capture.NewGate(capture.GateConfig{IdleFPS: cfg.Camera.IdleFPS, ActiveFPS: cfg.Camera.ActiveFPS, IdleAfter: capture.DefaultGateConfig().IdleAfter}),
		detector: opts.Detector,
		plugins:  opts.Plugins,
		hub:      opts.Hub,
		bus:      opts.Bus,
		log:      opts.Log,
		outbox:   make(chan outboxItem, outboxSize),
		frame:    gocv.NewMat(),
	}
	if a.bus == nil {
		a.bus = bus.Nop{}
	}
	a.enabled.Store(enabled)
	a.fps.Store(int32(a.gate.FPS()))

	a.engine = engine.New(cfg.Engine(), a.log, engine.WithCalibrator(cal))
	a.runner = engine.NewRunner(a.engine, a.handle, a.log)
	a.dispatcher = action.NewDispatcher(cfg.Action(), table, opts.Sink, a.log)
	a.dispatcher.OnResult = a.onResult

	a.log.WithFields(logrus.Fields{
		"bindings": table.Len(),
		"enabled":  enabled,
	}).Info("app initialized")

	return a, nil
}

// OnGesture registers fn to be called for every confirmed gesture. fn runs on
// the recognition goroutine and must not block.
func (a *App) OnGesture(fn func(gesture.Event)) {
	a.listenMu.Lock()
	defer a.listenMu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Enabled reports whether recognition is on.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled turns recognition on or off and persists the choice.
func (a *App) SetEnabled(ctx context.Context, enabled bool) error {
	if err := a.store.Settings().SetBool(ctx, store.SettingRecognitionEnabled, enabled); err != nil {
		return fmt.Errorf("persist enabled: %w", err)
	}
	if a.enabled.Swap(enabled) != enabled {
		// frames seen before the pause must not count toward a confirmation
		if enabled {
			a.runner.Reset()
		}
		a.log.WithField("enabled", enabled).Info("recognition toggled")
		if a.hub != nil {
			if err := a.hub.Broadcast("status", a.Status()); err != nil {
				a.log.WithError(err).Warn("broadcast status failed")
			}
		}
	}
	return nil
}

// ReloadBindings rebuilds the dispatcher table from the store.
func (a *App) ReloadBindings(ctx context.Context) error {
	table, err := a.store.Bindings().Table(ctx)
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	a.dispatcher.SetTable(table)
	a.log.WithField("bindings", table.Len()).Info("bindings reloaded")
	return nil
}

// Status returns a snapshot of the running state.
func (a *App) Status() server.Status {
	st := server.Status{
		Enabled:     a.enabled.Load(),
		Active:      a.active.Load(),
		FPS:         int(a.fps.Load()),
		Processed:   a.runner.Processed(),
		Dropped:     a.runner.Dropped(),
		Bindings:    a.dispatcher.Table().Len(),
		LastGesture: a.last.Load(),
	}
	if a.plugins != nil {
		st.Plugins = len(a.plugins.List())
	}
	return st
}

// LastGesture returns the most recent confirmed gesture, if any.
func (a *App) LastGesture() (gesture.Event, bool) {
	ev := a.last.Load()
	if ev == nil {
		return gesture.Event{}, false
	}
	return *ev, true
}

// Snapshot returns a copy of the latest captured frame. The caller must
// close it.
func (a *App) Snapshot() (*gocv.Mat, error) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if a.frameClosed || a.frame.Empty() {
		return nil, ErrNoFrame
	}
	m := a.frame.Clone()
	return &m, nil
}

func (a *App) keepFrame(frame *gocv.Mat) {
	a.frameMu.Lock()
	if !a.frameClosed {
		frame.CopyTo(&a.frame)
	}
	a.frameMu.Unlock()
}

// handle receives confirmed events from the runner.
func (a *App) handle(ev gesture.Event) {
	a.last.Store(&ev)

	a.dispatcher.Dispatch(ev)

	if a.hub != nil {
		if err := a.hub.Broadcast("gesture", ev); err != nil {
			a.log.WithError(err).Warn("broadcast gesture failed")
		}
	}

	a.enqueue(outboxItem{event: &ev})

	a.listenMu.RLock()
	for _, fn := range a.listeners {
		fn(ev)
	}
	a.listenMu.RUnlock()
}

// onResult receives every dispatch decision.
func (a *App) onResult(r action.Result) {
	a.enqueue(outboxItem{result: &r})
}

func (a *App) enqueue(item outboxItem) {
	select {
	case a.outbox <- item:
	default:
		a.log.Warn("outbox full, dropping history entry")
	}
}

// drainOutbox persists results and publishes events until ctx is cancelled,
// then flushes what is already queued.
func (a *App) drainOutbox(ctx context.Context) {
	for {
		select {
		case item := <-a.outbox:
			a.process(item)
		case <-ctx.Done():
			for {
				select {
				case item := <-a.outbox:
					a.process(item)
				default:
					return
				}
			}
		}
	}
}

func (a *App) process(item outboxItem) {
	if item.event != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.bus.Publish(ctx, *item.event); err != nil {
			a.log.WithError(err).Warn("publish gesture failed")
		}
		cancel()
	}

	if item.result != nil {
		rec := store.EventFromResult(*item.result)
		if err := a.store.Events().Record(context.Background(), rec); err != nil {
			a.log.WithError(err).Error("record gesture event failed")
		}
		if a.hub != nil {
			if err := a.hub.Broadcast("result", rec); err != nil {
				a.log.WithError(err).Warn("broadcast result failed")
			}
		}
	}
}

// Run captures frames and drives recognition until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("app: already running")
	}
	defer a.running.Store(false)

	if n, err := a.store.Events().Prune(ctx, time.Now().Add(-EventRetention)); err != nil {
		a.log.WithError(err).Warn("prune gesture history failed")
	} else if n > 0 {
		a.log.WithField("removed", n).Info("pruned gesture history")
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.gate.FPS())

	runCtx, stopRunner := context.WithCancel(context.Background())
	outCtx, stopOutbox := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	outboxDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		a.runner.Run(runCtx)
	}()
	go func() {
		defer close(outboxDone)
		a.drainOutbox(outCtx)
	}()

	a.log.Info("detection pipeline started")
	a.capture(ctx)

	// Stop producing events, let in-flight actions report, then flush.
	stopRunner()
	<-runnerDone
	a.dispatcher.Wait()
	stopOutbox()
	<-outboxDone

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("close camera failed")
	}
	a.log.Info("detection pipeline stopped")
	return nil
}

// Close releases resources held by the App. Call it after Run has returned.
func (a *App) Close() error {
	a.dispatcher.Close()
	a.motion.Close()

	a.frameMu.Lock()
	if !a.frameClosed {
		a.frame.Close()
		a.frameClosed = true
	}
	a.frameMu.Unlock()

	var errs []error
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if err := a.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	return errors.Join(errs...)
}
