package gesture

import (
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// DebounceConfig controls confirmation and cooldown of gesture channels.
type DebounceConfig struct {
	// Persistence is the number of consecutive matching frames that confirm a static gesture.
	Persistence int
	// FlickerTolerance is how many consecutive mismatched frames a candidate
	// survives. Zero resets on any mismatch.
	FlickerTolerance int
	// Cooldown is the quiet period after a confirmation.
	Cooldown time.Duration
}

// DefaultDebounceConfig returns the default debounce settings.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Persistence:      3,
		FlickerTolerance: 0,
		Cooldown:         700 * time.Millisecond,
	}
}

// Phase is the state of a gesture channel.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCandidate
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCandidate:
		return "candidate"
	case PhaseCooldown:
		return "cooldown"
	}
	return "unknown"
}

// ChannelState is the debounce state of one channel. Confirmation is not a
// resting phase: a confirming frame emits an event and enters Cooldown.
type ChannelState struct {
	Phase           Phase
	Candidate       Label
	Count           int
	Misses          int
	Confidence      float64
	// Pending is the label seen during the current misses and PendingCount
	// its consecutive run, so a real pose change keeps its frames.
	Pending         Label
	PendingCount    int
	LastConfirmed   Label
	LastConfirmedAt time.Time
	CooldownUntil   time.Time
}

// Input is one frame's classification for a channel.
type Input struct {
	Label      Label
	Confidence float64
	Position   detector.Point3D
	// Immediate marks results that are already confirmed at the source,
	// such as dynamic gestures. They skip persistence but not cooldown.
	Immediate bool
}

// Debouncer runs the confirmation state machine for every channel.
// It is owned by the frame pipeline and is not safe for concurrent use.
type Debouncer struct {
	cfg      DebounceConfig
	channels map[Channel]*ChannelState
	ids      *idSource
}

// NewDebouncer creates a Debouncer with all channels idle.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	if cfg.Persistence < 1 {
		cfg.Persistence = 1
	}
	return &Debouncer{
		cfg:      cfg,
		channels: make(map[Channel]*ChannelState, 3),
		ids:      newIDSource(),
	}
}

func (d *Debouncer) state(ch Channel) *ChannelState {
	st, ok := d.channels[ch]
	if !ok {
		st = &ChannelState{Candidate: None, LastConfirmed: None, Pending: None}
		d.channels[ch] = st
	}
	return st
}

// State returns a snapshot of the channel's state.
func (d *Debouncer) State(ch Channel) ChannelState {
	return *d.state(ch)
}

// Reset forces the channel to Idle, dropping any candidate and cooldown.
func (d *Debouncer) Reset(ch Channel) {
	st := d.state(ch)
	*st = ChannelState{
		Candidate:       None,
		Pending:         None,
		LastConfirmed:   st.LastConfirmed,
		LastConfirmedAt: st.LastConfirmedAt,
	}
}

// Step advances the channel by one frame observed at now. It returns the
// confirmed event, if this frame confirmed one.
func (d *Debouncer) Step(ch Channel, in Input, now time.Time) (Event, bool) {
	st := d.state(ch)

	if st.Phase == PhaseCooldown {
		if now.Before(st.CooldownUntil) {
			return Event{}, false
		}
		d.idle(st)
	}

	if in.Immediate && in.Label != None {
		return d.confirm(ch, st, in, now), true
	}

	switch st.Phase {
	case PhaseIdle:
		if in.Label == None {
			return Event{}, false
		}
		d.start(st, in)

	case PhaseCandidate:
		switch {
		case in.Label == st.Candidate:
			st.Count++
			st.Misses = 0
			st.Pending, st.PendingCount = None, 0
			if in.Confidence > st.Confidence {
				st.Confidence = in.Confidence
			}
		case in.Label == None && st.Misses >= d.cfg.FlickerTolerance:
			d.idle(st)
			return Event{}, false
		default:
			run := 1
			if in.Label != None && in.Label == st.Pending {
				run = st.PendingCount + 1
			}
			if st.Misses < d.cfg.FlickerTolerance && run < d.cfg.Persistence {
				st.Misses++
				st.Pending, st.PendingCount = None, 0
				if in.Label != None {
					st.Pending, st.PendingCount = in.Label, run
				}
				return Event{}, false
			}
			d.start(st, in)
			st.Count = run
		}
	}

	if st.Count >= d.cfg.Persistence {
		in.Label = st.Candidate
		in.Confidence = st.Confidence
		return d.confirm(ch, st, in, now), true
	}
	return Event{}, false
}

func (d *Debouncer) idle(st *ChannelState) {
	st.Phase = PhaseIdle
	st.Candidate = None
	st.Count = 0
	st.Misses = 0
	st.Confidence = 0
	st.Pending, st.PendingCount = None, 0
	st.CooldownUntil = time.Time{}
}

func (d *Debouncer) start(st *ChannelState, in Input) {
	st.Phase = PhaseCandidate
	st.Candidate = in.Label
	st.Count = 1
	st.Misses = 0
	st.Pending, st.PendingCount = None, 0
	st.Confidence = in.Confidence
}

func (d *Debouncer) confirm(ch Channel, st *ChannelState, in Input, now time.Time) Event {
	d.idle(st)
	st.Phase = PhaseCooldown
	st.CooldownUntil = now.Add(d.cfg.Cooldown)
	st.LastConfirmed = in.Label
	st.LastConfirmedAt = now

	return Event{
		ID:         d.ids.next(now),
		Label:      in.Label,
		Channel:    ch,
		Confidence: in.Confidence,
		Position:   in.Position,
		Timestamp:  now,
	}
}
