package action

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/mdobak/go-xerrors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Outcome is what the dispatcher decided for an event.
type Outcome string

const (
	OutcomeDispatched  Outcome = "dispatched"
	OutcomeUnbound     Outcome = "unbound"
	OutcomeDisabled    Outcome = "disabled"
	OutcomeCoolingDown Outcome = "cooling_down"
	OutcomeThrottled   Outcome = "throttled"
)

// Config controls dispatch timing.
type Config struct {
	// DefaultCooldown applies to actions without their own cooldown.
	DefaultCooldown time.Duration
	// Timeout bounds a single sink call.
	Timeout time.Duration
	// MaxPerSecond caps dispatches across all actions. Zero disables the cap.
	MaxPerSecond float64
	Burst        int
}

// DefaultConfig returns the default dispatch settings.
func DefaultConfig() Config {
	return Config{
		DefaultCooldown: 500 * time.Millisecond,
		Timeout:         5 * time.Second,
		MaxPerSecond:    10,
		Burst:           3,
	}
}

// Result reports what happened to one event.
type Result struct {
	Event    gesture.Event
	Action   Descriptor
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Dispatcher routes confirmed gestures to the sink. Dispatch is cheap and
// never blocks on the sink: calls for distinct actions run concurrently while
// calls for the same action are serialized.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	log     logrus.FieldLogger
	table   atomic.Pointer[Table]
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	lastFired map[string]time.Time
	locks     map[string]*sync.Mutex
	wg        sync.WaitGroup

	// OnResult, if set, is called once per Dispatch. For dispatched events it
	// runs after the sink returns, on the sink goroutine.
	OnResult func(Result)
}

// NewDispatcher creates a Dispatcher for table and sink.
func NewDispatcher(cfg Config, table *Table, sink Sink, log logrus.FieldLogger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		lastFired: make(map[string]time.Time),
		locks:     make(map[string]*sync.Mutex),
	}
	if cfg.MaxPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), burst)
	}
	d.table.Store(table)
	return d
}

// SetTable replaces the binding table for subsequent events.
func (d *Dispatcher) SetTable(t *Table) {
	d.table.Store(t)
}

// Table returns the active binding table.
func (d *Dispatcher) Table() *Table {
	return d.table.Load()
}

// Dispatch routes ev to its bound action.
func (d *Dispatcher) Dispatch(ev gesture.Event) Outcome {
	desc, ok := d.table.Load().Lookup(ev.Label)
	if !ok {
		d.report(Result{Event: ev, Outcome: OutcomeUnbound})
		return OutcomeUnbound
	}
	if !desc.Enabled {
		d.report(Result{Event: ev, Action: desc, Outcome: OutcomeDisabled})
		return OutcomeDisabled
	}

	cooldown := d.cfg.DefaultCooldown
	if desc.Cooldown != nil {
		cooldown = *desc.Cooldown
	}

	d.mu.Lock()
	if last, fired := d.lastFired[desc.ID]; fired && ev.Timestamp.Sub(last) < cooldown {
		d.mu.Unlock()
		d.report(Result{Event: ev, Action: desc, Outcome: OutcomeCoolingDown})
		return OutcomeCoolingDown
	}
	if d.limiter != nil && !d.limiter.AllowN(ev.Timestamp, 1) {
		d.mu.Unlock()
		d.log.WithFields(logrus.Fields{"gesture": ev.Label, "action_id": desc.ID}).Warn("dispatch throttled")
		d.report(Result{Event: ev, Action: desc, Outcome: OutcomeThrottled})
		return OutcomeThrottled
	}
	d.lastFired[desc.ID] = ev.Timestamp
	lock := d.actionLock(desc.ID)
	d.mu.Unlock()

	inv := Invocation{
		ActionID: desc.ID,
		Kind:     desc.Kind,
		Name:     desc.Name,
		Plugin:   desc.Plugin,
		Params:   desc.Params,
		Label:    ev.Label,
		Channel:  ev.Channel,
		Position: ev.Position,
		FiredAt:  ev.Timestamp,
	}

	d.wg.Add(1)
	go d.execute(lock, ev, desc, inv)

	return OutcomeDispatched
}

// actionLock returns the mutex serializing desc.ID. Callers hold d.mu.
func (d *Dispatcher) actionLock(id string) *sync.Mutex {
	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}
	return l
}

func (d *Dispatcher) execute(lock *sync.Mutex, ev gesture.Event, desc Descriptor, inv Invocation) {
	defer d.wg.Done()

	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Execute(ctx, inv)
	elapsed := time.Since(start)

	fields := logrus.Fields{
		"gesture":   ev.Label,
		"channel":   ev.Channel,
		"action_id": desc.ID,
		"kind":      desc.Kind,
		"duration":  elapsed,
	}
	if err != nil {
		err = xerrors.New(err)
		d.log.WithFields(fields).WithError(err).Error("action failed")
	} else {
		d.log.WithFields(fields).Info("action executed")
	}

	d.report(Result{Event: ev, Action: desc, Outcome: OutcomeDispatched, Err: err, Duration: elapsed})
}

func (d *Dispatcher) report(r Result) {
	if d.OnResult != nil {
		d.OnResult(r)
	}
}

// Wait blocks until every in-flight sink call has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight sink calls and waits for them to return.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
