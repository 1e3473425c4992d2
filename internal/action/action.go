// Package action maps confirmed gestures to actions and dispatches them to
// an execution sink.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// Kind is the type of side effect an action performs.
type Kind string

const (
	KindKey     Kind = "key"
	KindPointer Kind = "pointer"
	KindSystem  Kind = "system"
	KindShell   Kind = "shell"
	KindScript  Kind = "script"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindKey, KindPointer, KindSystem, KindShell, KindScript:
		return true
	}
	return false
}

// Descriptor describes what an action does.
type Descriptor struct {
	ID     string            `json:"id"`
	Kind   Kind              `json:"kind"`
	Name   string            `json:"name"`
	Plugin string            `json:"plugin,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	// Cooldown overrides the dispatcher default when set.
	Cooldown *time.Duration `json:"cooldown,omitempty"`
	Enabled  bool           `json:"enabled"`
}

// Binding maps a gesture label to an action.
type Binding struct {
	Label  gesture.Label `json:"label"`
	Action Descriptor    `json:"action"`
}

var (
	ErrDuplicateLabel = errors.New("label already bound")
	ErrInvalidBinding = errors.New("invalid binding")
)

// Table is an immutable label to action lookup.
type Table struct {
	byLabel map[gesture.Label]Descriptor
}

// NewTable validates bindings and builds a Table from them.
func NewTable(bindings []Binding) (*Table, error) {
	t := &Table{byLabel: make(map[gesture.Label]Descriptor, len(bindings))}
	for _, b := range bindings {
		if err := validate(b); err != nil {
			return nil, err
		}
		if _, dup := t.byLabel[b.Label]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, b.Label)
		}
		d := b.Action
		if d.Params != nil {
			params := make(map[string]string, len(d.Params))
			for k, v := range d.Params {
				params[k] = v
			}
			d.Params = params
		}
		t.byLabel[b.Label] = d
	}
	return t, nil
}

func validate(b Binding) error {
	switch {
	case !b.Label.Bindable():
		return fmt.Errorf("%w: label %q cannot be bound", ErrInvalidBinding, b.Label)
	case b.Action.ID == "":
		return fmt.Errorf("%w: %s has no action id", ErrInvalidBinding, b.Label)
	case !b.Action.Kind.Valid():
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidBinding, b.Label, b.Action.Kind)
	case b.Action.Cooldown != nil && *b.Action.Cooldown < 0:
		return fmt.Errorf("%w: %s has negative cooldown", ErrInvalidBinding, b.Label)
	}
	return nil
}

// Lookup returns the action bound to label.
func (t *Table) Lookup(label gesture.Label) (Descriptor, bool) {
	if t == nil {
		return Descriptor{}, false
	}
	d, ok := t.byLabel[label]
	return d, ok
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byLabel)
}

// Invocation is a request to the execution sink.
type Invocation struct {
	ActionID string            `json:"action_id"`
	Kind     Kind              `json:"kind"`
	Name     string            `json:"name"`
	Plugin   string            `json:"plugin,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Label    gesture.Label     `json:"label"`
	Channel  gesture.Channel   `json:"channel"`
	Position detector.Point3D  `json:"position"`
	FiredAt  time.Time         `json:"fired_at"`
}

// Sink performs actions. Implementations may block; the dispatcher calls
// them off the frame pipeline.
type Sink interface {
	Execute(ctx context.Context, inv Invocation) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, inv Invocation) error

// Execute calls f.
func (f SinkFunc) Execute(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}
