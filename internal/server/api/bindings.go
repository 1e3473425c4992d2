package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/sirupsen/logrus"
)

// BindingHandler handles HTTP requests for binding resources.
type BindingHandler struct {
	store    *store.Store
	onChange func()
	log      logrus.FieldLogger
}

// NewBindingHandler creates a BindingHandler. onChange, if set, runs after
// every successful write so the dispatcher can reload its table.
func NewBindingHandler(s *store.Store, onChange func(), log logrus.FieldLogger) *BindingHandler {
	return &BindingHandler{store: s, onChange: onChange, log: log}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodPatch:
		h.patch(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type bindingRequest struct {
	Label      string            `json:"label" validate:"required"`
	ActionID   string            `json:"action_id" validate:"required,max=64"`
	Kind       string            `json:"kind" validate:"required,oneof=key pointer system shell script"`
	Name       string            `json:"name" validate:"max=64"`
	Plugin     string            `json:"plugin" validate:"max=64"`
	Params     map[string]string `json:"params" validate:"max=32"`
	CooldownMS *int64            `json:"cooldown_ms" validate:"omitempty,gte=0,lte=600000"`
	Enabled    *bool             `json:"enabled"`
}

type patchBindingRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type bindingResponse struct {
	ID         string            `json:"id"`
	Label      gesture.Label     `json:"label"`
	ActionID   string            `json:"action_id"`
	Kind       action.Kind       `json:"kind"`
	Name       string            `json:"name"`
	Plugin     string            `json:"plugin,omitempty"`
	Params     map[string]string `json:"params"`
	CooldownMS *int64            `json:"cooldown_ms"`
	Enabled    bool              `json:"enabled"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	params := b.Action.Params
	if params == nil {
		params = map[string]string{}
	}
	resp := bindingResponse{
		ID:        b.ID,
		Label:     b.Label,
		ActionID:  b.Action.ID,
		Kind:      b.Action.Kind,
		Name:      b.Action.Name,
		Plugin:    b.Action.Plugin,
		Params:    params,
		Enabled:   b.Action.Enabled,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
	if b.Action.Cooldown != nil {
		ms := b.Action.Cooldown.Milliseconds()
		resp.CooldownMS = &ms
	}
	return resp
}

// decodeBinding parses and validates a binding body.
func decodeBinding(w http.ResponseWriter, r *http.Request) (*store.Binding, bool) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return nil, false
	}
	label, ok := gesture.ParseLabel(req.Label)
	if !ok || !label.Bindable() {
		writeError(w, http.StatusBadRequest, "Label cannot be bound: "+req.Label)
		return nil, false
	}

	b := &store.Binding{
		Label: label,
		Action: action.Descriptor{
			ID:      req.ActionID,
			Kind:    action.Kind(req.Kind),
			Name:    req.Name,
			Plugin:  req.Plugin,
			Params:  req.Params,
			Enabled: req.Enabled == nil || *req.Enabled,
		},
	}
	if req.CooldownMS != nil {
		cd := time.Duration(*req.CooldownMS) * time.Millisecond
		b.Action.Cooldown = &cd
	}
	return b, true
}

func (h *BindingHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

func (h *BindingHandler) writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Binding not found")
	case errors.Is(err, action.ErrDuplicateLabel):
		writeError(w, http.StatusConflict, "Label already bound")
	case errors.Is(err, action.ErrInvalidBinding):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error(op + " failed")
		writeError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}

// list handles GET /api/bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List(r.Context())
	if err != nil {
		h.writeStoreError(w, err, "list bindings")
		return
	}

	resp := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		resp.Bindings = append(resp.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	b, ok := decodeBinding(w, r)
	if !ok {
		return
	}
	if err := h.store.Bindings().Create(r.Context(), b); err != nil {
		h.writeStoreError(w, err, "create binding")
		return
	}

	h.log.WithFields(logrus.Fields{"gesture": b.Label, "action_id": b.Action.ID}).Info("binding created")
	h.changed()
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}, replacing the whole binding.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.store.Bindings().Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get binding")
		return
	}

	b, ok := decodeBinding(w, r)
	if !ok {
		return
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt

	if err := h.store.Bindings().Update(r.Context(), b); err != nil {
		h.writeStoreError(w, err, "update binding")
		return
	}

	h.log.WithFields(logrus.Fields{"gesture": b.Label, "action_id": b.Action.ID}).Info("binding updated")
	h.changed()
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// patch handles PATCH /api/bindings/{id}, which only toggles enabled.
func (h *BindingHandler) patch(w http.ResponseWriter, r *http.Request, id string) {
	var req patchBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.store.Bindings().SetEnabled(r.Context(), id, *req.Enabled); err != nil {
		h.writeStoreError(w, err, "update binding")
		return
	}
	b, err := h.store.Bindings().Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get binding")
		return
	}

	h.changed()
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete binding")
		return
	}

	h.log.WithField("id", id).Info("binding deleted")
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}
