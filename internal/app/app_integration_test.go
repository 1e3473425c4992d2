package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []action.Invocation
	fired chan action.Invocation
}

func newRecordingSink() *recordingSink {
	return &recordingSink{fired: make(chan action.Invocation, 16)}
}

func (s *recordingSink) Execute(_ context.Context, inv action.Invocation) error {
	s.mu.Lock()
	s.calls = append(s.calls, inv)
	s.mu.Unlock()
	select {
	case s.fired <- inv:
	default:
	}
	return nil
}

type recordingHub struct {
	mu    sync.Mutex
	types []string
}

func (h *recordingHub) Broadcast(typ string, _ interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, typ)
	return nil
}

func (h *recordingHub) count(typ string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.types {
		if t == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	camera   *capture.MockCamera
	detector *detector.MockDetector
	sink     *recordingSink
	hub      *recordingHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Camera.IdleFPS = 20
	cfg.Camera.ActiveFPS = 40

	s, err := store.New(filepath.Join(cfg.DataDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Bindings().Seed(context.Background(), cfg.Seeds()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	// alternating frames keep the motion gate active
	dark := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	light := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() {
		dark.Close()
		light.Close()
	})

	return &fixture{
		cfg:      cfg,
		store:    s,
		camera:   capture.NewMockCamera([]*gocv.Mat{&dark, &light}, true),
		detector: detector.NewMockDetector(),
		sink:     newRecordingSink(),
		hub:      &recordingHub{},
	}
}

func (f *fixture) newApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), Options{
		Config:   f.cfg,
		Store:    f.store,
		Camera:   f.camera,
		Detector: f.detector,
		Sink:     f.sink,
		Hub:      f.hub,
		Log:      mlog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

// start runs a in the background and returns a function that stops it.
func start(t *testing.T, a *App) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
		a.Close()
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	full := Options{Config: f.cfg, Store: f.store, Camera: f.camera, Detector: f.detector, Sink: f.sink, Log: mlog.Nop()}

	tests := []struct {
		name  string
		strip func(o *Options)
	}{
		{"config", func(o *Options) { o.Config = nil }},
		{"store", func(o *Options) { o.Store = nil }},
		{"camera", func(o *Options) { o.Camera = nil }},
		{"detector", func(o *Options) { o.Detector = nil }},
		{"sink", func(o *Options) { o.Sink = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.strip(&opts)
			if _, err := New(context.Background(), opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_RejectsBadCalibration(t *testing.T) {
	f := newFixture(t)
	f.cfg.Calibration.Rotation = 45
	_, err := New(context.Background(), Options{Config: f.cfg, Store: f.store, Camera: f.camera, Detector: f.detector, Sink: f.sink, Log: mlog.Nop()})
	if err == nil {
		t.Error("expected calibration error")
	}
}

func TestApp_RecognizesAndDispatches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	f := newFixture(t)
	f.detector.SetHands([]detector.HandLandmarks{detector.OneFingerLandmarks()})

	a := f.newApp(t)
	var seen []gesture.Label
	var seenMu sync.Mutex
	a.OnGesture(func(ev gesture.Event) {
		seenMu.Lock()
		seen = append(seen, ev.Label)
		seenMu.Unlock()
	})

	stop := start(t, a)

	select {
	case inv := <-f.sink.fired:
		if inv.ActionID != "play-pause-space" {
			t.Errorf("dispatched action %q, want play-pause-space", inv.ActionID)
		}
		if inv.Label != gesture.OneFinger {
			t.Errorf("event label = %s, want one_finger", inv.Label)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no action dispatched")
	}

	stop()

	ev, ok := a.LastGesture()
	if !ok || ev.Label != gesture.OneFinger {
		t.Errorf("LastGesture() = %+v, %v", ev, ok)
	}
	seenMu.Lock()
	if len(seen) == 0 {
		t.Error("OnGesture listener not called")
	}
	seenMu.Unlock()

	events, err := f.store.Events().List(context.Background(), store.EventFilter{Label: gesture.OneFinger})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected the dispatched gesture in history")
	}
	if events[len(events)-1].Outcome != action.OutcomeDispatched {
		t.Errorf("first outcome = %s, want dispatched", events[len(events)-1].Outcome)
	}

	if f.hub.count("gesture") == 0 || f.hub.count("result") == 0 {
		t.Errorf("hub saw %d gesture and %d result messages", f.hub.count("gesture"), f.hub.count("result"))
	}
	if f.detector.Calls() == 0 {
		t.Error("detector never called")
	}
}

func TestApp_DisabledSkipsCapture(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	f := newFixture(t)
	f.detector.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})

	a := f.newApp(t)
	if err := a.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	stop := start(t, a)
	time.Sleep(300 * time.Millisecond)
	if _, err := a.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Snapshot() error = %v, want ErrNoFrame", err)
	}
	stop()

	if n := f.camera.Reads(); n != 0 {
		t.Errorf("camera read %d frames while disabled", n)
	}
	if n := f.detector.Calls(); n != 0 {
		t.Errorf("detector called %d times while disabled", n)
	}
}

func TestApp_EnabledPersists(t *testing.T) {
	f := newFixture(t)

	a := f.newApp(t)
	if !a.Enabled() {
		t.Fatal("expected recognition enabled by default")
	}
	if err := a.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if f.hub.count("status") != 1 {
		t.Errorf("status broadcasts = %d, want 1", f.hub.count("status"))
	}
	a.Close()

	b := f.newApp(t)
	defer b.Close()
	if b.Enabled() {
		t.Error("enabled flag was not persisted")
	}
	if b.Status().Enabled {
		t.Error("Status().Enabled = true, want false")
	}
}

func TestApp_ReenableDropsStaleCandidate(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t)
	defer a.Close()

	hand := detector.OneFingerLandmarks()
	hand.Score = 0.9

	// two of three frames seen before the pause
	now := time.Now()
	a.engine.Process(detector.ObservationOf(now, hand), now)
	now = now.Add(30 * time.Millisecond)
	a.engine.Process(detector.ObservationOf(now, hand), now)

	ctx := context.Background()
	if err := a.SetEnabled(ctx, false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if err := a.SetEnabled(ctx, true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.runner.Run(runCtx)
	}()
	a.runner.Submit(detector.ObservationOf(time.Now(), hand))

	deadline := time.Now().Add(2 * time.Second)
	for a.runner.Processed() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	a.dispatcher.Wait()

	if _, ok := a.LastGesture(); ok {
		t.Error("gesture confirmed from frames seen before recognition was paused")
	}
	select {
	case inv := <-f.sink.fired:
		t.Errorf("unexpected dispatch %s", inv.ActionID)
	default:
	}
	for _, ch := range []gesture.Channel{gesture.ChannelLeft, gesture.ChannelRight} {
		if st := a.engine.ChannelState(ch); st.Count > 1 {
			t.Errorf("%s channel count = %d, want at most 1", ch, st.Count)
		}
	}
	if f.hub.count("status") != 2 {
		t.Errorf("status broadcasts = %d, want 2", f.hub.count("status"))
	}
}

type closedHub struct{}

func (closedHub) Broadcast(string, interface{}) error { return errors.New("hub closed") }

func TestApp_BroadcastFailuresLogged(t *testing.T) {
	f := newFixture(t)
	logger, hook := test.NewNullLogger()
	a, err := New(context.Background(), Options{
		Config:   f.cfg,
		Store:    f.store,
		Camera:   f.camera,
		Detector: f.detector,
		Sink:     f.sink,
		Hub:      closedHub{},
		Log:      logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	a.process(outboxItem{result: &action.Result{
		Event:   gesture.Event{ID: "01TEST", Label: gesture.Fist, Channel: gesture.ChannelRight, Timestamp: time.Now()},
		Outcome: action.OutcomeUnbound,
	}})

	warned := map[string]bool{}
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned[e.Message] = true
		}
	}
	for _, msg := range []string{"broadcast status failed", "broadcast result failed"} {
		if !warned[msg] {
			t.Errorf("missing warning %q", msg)
		}
	}
}

func TestApp_ReloadBindings(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t)
	defer a.Close()

	before := a.Status().Bindings
	err := f.store.Bindings().Create(context.Background(), &store.Binding{
		Label:  gesture.Push,
		Action: action.Descriptor{ID: "zoom-in", Kind: action.KindKey, Params: map[string]string{"key": "cmd+="}, Enabled: true},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := a.ReloadBindings(context.Background()); err != nil {
		t.Fatalf("ReloadBindings() error = %v", err)
	}
	if got := a.Status().Bindings; got != before+1 {
		t.Errorf("Bindings = %d, want %d", got, before+1)
	}
}

func TestApp_SnapshotAfterCapture(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	f := newFixture(t)
	a := f.newApp(t)
	stop := start(t, a)
	defer stop()

	deadline := time.Now().Add(3 * time.Second)
	for {
		m, err := a.Snapshot()
		if err == nil {
			if m.Rows() != 120 || m.Cols() != 160 {
				t.Errorf("snapshot size = %dx%d, want 160x120", m.Cols(), m.Rows())
			}
			m.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Snapshot() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestApp_RunTwice(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t)
	defer a.Close()

	a.running.Store(true)
	if err := a.Run(context.Background()); err == nil {
		t.Error("expected error when already running")
	}
}
