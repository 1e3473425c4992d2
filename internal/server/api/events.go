package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/sirupsen/logrus"
)

const maxEventLimit = 1000

// EventHandler serves gesture history.
type EventHandler struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(s *store.Store, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{store: s, log: log, now: time.Now}
}

// ServeHTTP routes GET /api/events and GET /api/events/stats.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/events"), "/") {
	case "":
		h.list(w, r)
	case "stats":
		h.stats(w, r)
	default:
		http.NotFound(w, r)
	}
}

// parseSince accepts an RFC 3339 time or a look-back duration such as "15m".
func (h *EventHandler) parseSince(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return h.now().Add(-d), true
	}
	return time.Time{}, false
}

// list handles GET /api/events?label=&channel=&since=&limit=.
func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.EventFilter

	if v := q.Get("label"); v != "" {
		label, ok := gesture.ParseLabel(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown label: "+v)
			return
		}
		f.Label = label
	}
	if v := q.Get("channel"); v != "" {
		switch ch := gesture.Channel(v); ch {
		case gesture.ChannelLeft, gesture.ChannelRight, gesture.ChannelBoth:
			f.Channel = ch
		default:
			writeError(w, http.StatusBadRequest, "Unknown channel: "+v)
			return
		}
	}
	since, ok := h.parseSince(q.Get("since"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid since")
		return
	}
	f.Since = since
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		f.Limit = n
	}

	events, err := h.store.Events().List(r.Context(), f)
	if err != nil {
		h.log.WithError(err).Error("list events failed")
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Events []*store.Event `json:"events"`
	}{Events: events})
}

// stats handles GET /api/events/stats?since=, defaulting to the last 24 hours.
func (h *EventHandler) stats(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("since")
	if v == "" {
		v = "24h"
	}
	since, ok := h.parseSince(v)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid since")
		return
	}

	counts, err := h.store.Events().Counts(r.Context(), since)
	if err != nil {
		h.log.WithError(err).Error("count events failed")
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}
	if counts == nil {
		counts = []store.LabelCount{}
	}
	writeJSON(w, http.StatusOK, struct {
		Since  time.Time          `json:"since"`
		Counts []store.LabelCount `json:"counts"`
	}{Since: since, Counts: counts})
}
