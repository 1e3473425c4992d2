package store

import (
	"context"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/jmoiron/sqlx"
)

// Event is a confirmed gesture together with the dispatch outcome.
type Event struct {
	ID         string          `json:"id" db:"id"`
	Label      gesture.Label   `json:"label" db:"label"`
	Channel    gesture.Channel `json:"channel" db:"channel"`
	Confidence float64         `json:"confidence" db:"confidence"`
	X          float64         `json:"x" db:"x"`
	Y          float64         `json:"y" db:"y"`
	Outcome    action.Outcome  `json:"outcome" db:"outcome"`
	ActionID   string          `json:"action_id,omitempty" db:"action_id"`
	Error      string          `json:"error,omitempty" db:"error"`
	DurationMS int64           `json:"duration_ms" db:"duration_ms"`
	OccurredAt time.Time       `json:"occurred_at" db:"-"`
}

type eventRow struct {
	Event
	OccurredAtMS int64 `db:"occurred_at"`
}

// EventFromResult converts a dispatch result into a history record.
func EventFromResult(r action.Result) *Event {
	e := &Event{
		ID:         r.Event.ID,
		Label:      r.Event.Label,
		Channel:    r.Event.Channel,
		Confidence: r.Event.Confidence,
		X:          r.Event.Position.X,
		Y:          r.Event.Position.Y,
		Outcome:    r.Outcome,
		ActionID:   r.Action.ID,
		DurationMS: r.Duration.Milliseconds(),
		OccurredAt: r.Event.Timestamp,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// EventFilter narrows a history query. Zero fields match everything.
type EventFilter struct {
	Label   gesture.Label
	Channel gesture.Channel
	Since   time.Time
	Limit   int
}

// EventRepository records and queries gesture history.
type EventRepository struct {
	db *sqlx.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record inserts e.
func (r *EventRepository) Record(ctx context.Context, e *Event) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO events (id, label, channel, confidence, x, y, outcome, action_id, error, duration_ms, occurred_at)
		 VALUES (:id, :label, :channel, :confidence, :x, :y, :outcome, :action_id, :error, :duration_ms, :occurred_at)`,
		eventRow{Event: *e, OccurredAtMS: toMillis(e.OccurredAt)},
	)
	return err
}

// List returns events matching f, newest first. The limit defaults to 100.
func (r *EventRepository) List(ctx context.Context, f EventFilter) ([]*Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Label != "" {
		where = append(where, "label = ?")
		args = append(args, string(f.Label))
	}
	if f.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, string(f.Channel))
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, label, channel, confidence, x, y, outcome, action_id, error, duration_ms, occurred_at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// ULIDs sort by time, so id breaks ties within a millisecond
	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(rows))
	for i := range rows {
		e := rows[i].Event
		e.OccurredAt = fromMillis(rows[i].OccurredAtMS)
		events = append(events, &e)
	}
	return events, nil
}

// LabelCount is the number of events seen for a label.
type LabelCount struct {
	Label gesture.Label `json:"label" db:"label"`
	Count int           `json:"count" db:"count"`
}

// Counts returns per-label event counts since the given time.
func (r *EventRepository) Counts(ctx context.Context, since time.Time) ([]LabelCount, error) {
	var counts []LabelCount
	err := r.db.SelectContext(ctx, &counts,
		`SELECT label, COUNT(*) AS count FROM events WHERE occurred_at >= ? GROUP BY label ORDER BY count DESC, label`,
		toMillis(since),
	)
	return counts, err
}

// Prune deletes events older than before and reports how many were removed.
func (r *EventRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE occurred_at < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
