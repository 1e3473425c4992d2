// Package server provides the HTTP server for the Mudra gesture engine.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	mlog "github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is a snapshot of the running engine.
type Status struct {
	Enabled     bool           `json:"enabled"`
	Active      bool           `json:"active"`
	FPS         int            `json:"fps"`
	Processed   uint64         `json:"processed"`
	Dropped     uint64         `json:"dropped"`
	Bindings    int            `json:"bindings"`
	Plugins     int            `json:"plugins"`
	LiveClients int            `json:"live_clients"`
	LastGesture *gesture.Event `json:"last_gesture,omitempty"`
}

// Controller is the engine surface exposed over HTTP.
type Controller interface {
	Status() Status
	SetEnabled(ctx context.Context, enabled bool) error
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Hub        *Hub
	Frames     FrameSource
	StreamFPS  int
	Controller Controller
	Log        logrus.FieldLogger

	// RateLimit is requests per second per client on /api. Zero disables it.
	RateLimit float64
	RateBurst int

	// OnBindingsChanged runs after every successful binding write.
	OnBindingsChanged func()
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	start   time.Time
	log     logrus.FieldLogger
	srv     *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = mlog.Nop()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/health", s.handleHealth)
	apiMux.HandleFunc("/api/labels", api.LabelsHandler)

	if s.config.Controller != nil {
		apiMux.HandleFunc("/api/status", s.handleStatus)
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.OnBindingsChanged, s.log)
		apiMux.Handle("/api/bindings", bindings)
		apiMux.Handle("/api/bindings/", bindings)

		events := api.NewEventHandler(s.config.Store, s.log)
		apiMux.Handle("/api/events", events)
		apiMux.Handle("/api/events/", events)
	}

	var apiHandler http.Handler = apiMux
	if s.config.RateLimit > 0 {
		burst := s.config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		apiHandler = newRateLimiter(rate.Limit(s.config.RateLimit), burst, s.log).middleware(apiMux)
	}
	s.mux.Handle("/api/", apiHandler)

	// Long-lived endpoints bypass the limiter.
	if s.config.Hub != nil {
		s.mux.Handle("/api/live", s.config.Hub)
	}
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, s.config.StreamFPS))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// handleStatus reports engine state on GET and toggles recognition on PUT.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Body must be {\"enabled\": bool}"})
			return
		}
		if err := s.config.Controller.SetEnabled(r.Context(), *req.Enabled); err != nil {
			s.log.WithError(err).Error("set enabled failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update status"})
			return
		}
		s.log.WithField("enabled", *req.Enabled).Info("recognition toggled")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.config.Controller.Status()
	if s.config.Hub != nil {
		st.LiveClients = s.config.Hub.Clients()
	}
	writeJSON(w, http.StatusOK, st)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
