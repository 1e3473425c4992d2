package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/store"
)

func seedEvents(t *testing.T, s *store.Store, now time.Time) {
	t.Helper()
	events := []*store.Event{
		{ID: "01A", Label: gesture.Fist, Channel: gesture.ChannelRight, Confidence: 0.9, Outcome: action.OutcomeDispatched, ActionID: "click", OccurredAt: now.Add(-2 * time.Hour)},
		{ID: "01B", Label: gesture.Fist, Channel: gesture.ChannelLeft, Confidence: 0.8, Outcome: action.OutcomeCoolingDown, ActionID: "click", OccurredAt: now.Add(-10 * time.Minute)},
		{ID: "01C", Label: gesture.SwipeLeft, Channel: gesture.ChannelRight, Confidence: 0.85, Outcome: action.OutcomeUnbound, OccurredAt: now.Add(-5 * time.Minute)},
		{ID: "01D", Label: gesture.Heart, Channel: gesture.ChannelBoth, Confidence: 0.95, Outcome: action.OutcomeDispatched, ActionID: "play", OccurredAt: now.Add(-48 * time.Hour)},
	}
	for _, e := range events {
		if err := s.Events().Record(context.Background(), e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
}

func decodeEvents(t *testing.T, h http.Handler, path string) []*store.Event {
	t.Helper()
	rec := do(t, h, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, body %s", path, rec.Code, rec.Body.String())
	}
	var resp struct {
		Events []*store.Event `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Events
}

func TestEventHandler_List(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedEvents(t, s, now)
	h := NewEventHandler(s, mlog.Nop())

	tests := []struct {
		path    string
		wantIDs []string
	}{
		{"/api/events", []string{"01C", "01B", "01A", "01D"}},
		{"/api/events?label=fist", []string{"01B", "01A"}},
		{"/api/events?channel=both", []string{"01D"}},
		{"/api/events?since=1h", []string{"01C", "01B"}},
		{"/api/events?limit=1", []string{"01C"}},
		{"/api/events?label=fist&channel=right", []string{"01A"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			events := decodeEvents(t, h, tt.path)
			if len(events) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if events[i].ID != id {
					t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, id)
				}
			}
		})
	}

	t.Run("rfc3339 since", func(t *testing.T) {
		since := now.Add(-3 * time.Hour).UTC().Format(time.RFC3339)
		events := decodeEvents(t, h, "/api/events?since="+since)
		if len(events) != 3 {
			t.Errorf("got %d events, want 3", len(events))
		}
	})
}

func TestEventHandler_BadQuery(t *testing.T) {
	h := NewEventHandler(newTestStore(t), mlog.Nop())

	for _, path := range []string{
		"/api/events?label=wave",
		"/api/events?channel=middle",
		"/api/events?since=yesterday",
		"/api/events?limit=0",
		"/api/events?limit=5000",
		"/api/events/stats?since=-1h",
	} {
		t.Run(path, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if rec := do(t, h, http.MethodDelete, "/api/events", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events/other", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown subpath status = %d, want 404", rec.Code)
	}
}

func TestEventHandler_Stats(t *testing.T) {
	s := newTestStore(t)
	seedEvents(t, s, time.Now())
	h := NewEventHandler(s, mlog.Nop())

	rec := do(t, h, http.MethodGet, "/api/events/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Counts []store.LabelCount `json:"counts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// the heart event is older than the default 24h window
	if len(resp.Counts) != 2 {
		t.Fatalf("counts = %+v, want 2 labels", resp.Counts)
	}
	if resp.Counts[0].Label != gesture.Fist || resp.Counts[0].Count != 2 {
		t.Errorf("counts[0] = %+v, want fist x2", resp.Counts[0])
	}
}

func TestEventHandler_StatsEmpty(t *testing.T) {
	h := NewEventHandler(newTestStore(t), mlog.Nop())

	rec := do(t, h, http.MethodGet, "/api/events/stats?since=1h", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	counts, ok := resp["counts"].([]interface{})
	if !ok || len(counts) != 0 {
		t.Errorf("counts = %v, want empty array", resp["counts"])
	}
}
