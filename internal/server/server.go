package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/engine"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

const maxBodyBytes = 4 << 20

// Config carries the HTTP listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server exposes the orchestration control API.
type Server struct {
	logger   *slog.Logger
	executor *engine.Executor
	registry *engine.Registry
	bus      *events.Bus
}

// New creates a Server backed by the given executor and run registry.
func New(logger *slog.Logger, executor *engine.Executor, registry *engine.Registry, bus *events.Bus) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger,
		executor: executor,
		registry: registry,
		bus:      bus,
	}
}

// Handler builds the routing table with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /orchestrations", s.handleList)
	mux.HandleFunc("POST /orchestrations", s.handleCreate)
	mux.HandleFunc("POST /orchestrations/{id}/control", s.handleControl)
	mux.HandleFunc("GET /orchestrations/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /orchestrations/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /orchestrations/{id}/report", s.handleReport)
	mux.HandleFunc("GET /orchestrations/{id}/export", s.handleExport)
	return wrap(s.logger, mux)
}

// Run serves the API until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout stays zero so event streams can run indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "chaosd",
		"status":  "ok",
	})
}

type runSummary struct {
	RunID         string `json:"runId"`
	Orchestration string `json:"orchestration"`
	Status        string `json:"status"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	runs := s.registry.List()
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary{
			RunID:         run.ID().String(),
			Orchestration: run.Definition().Name,
			Status:        string(run.Status()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// handleCreate accepts a JSON or YAML orchestration definition, validates
// it, and registers an idle run for it. Execution starts only when a start
// control command arrives.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	var def *orchestration.Orchestration
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "yaml") {
		def, err = orchestration.ParseYAML(body)
	} else {
		def, err = orchestration.ParseJSON(body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.executor.NewRun(def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.Register(run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("orchestration registered",
		"run_id", run.ID().String(),
		"orchestration", def.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"runId":  run.ID().String(),
		"status": string(run.Status()),
	})
}

type controlRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	var req controlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding control request: "+err.Error())
		return
	}
	action, err := engine.ParseControlAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := run.Control(action); err != nil {
		var ctrlErr *engine.ControlError
		if errors.As(err, &ctrlErr) {
			writeError(w, http.StatusConflict, ctrlErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":  run.ID().String(),
		"action": string(action),
		"status": string(run.Status()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.StatusSnapshot())
}

// handleEvents streams run events as server-sent events. The stream begins
// with a synthetic status_update snapshot so late subscribers see current
// state before live events arrive.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := events.Filter{RunID: run.ID()}
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			filter.Types = append(filter.Types, events.EventType(strings.TrimSpace(t)))
		}
	}

	ch, unsubscribe := s.bus.Subscribe(r.Context(), filter, 0)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := run.StatusSnapshot()
	writeSSE(w, events.Event{
		Type: events.EventStatusUpdate,
		Data: snapshot,
	})
	flusher.Flush()
	if engine.RunStatus(snapshot.Status).IsTerminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
			if update, ok := event.Data.(events.StatusUpdate); ok &&
				engine.RunStatus(update.Status).IsTerminal() {
				return
			}
		}
	}
}

func writeSSE(w io.Writer, event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	report := run.Report()
	if report == nil {
		writeError(w, http.StatusNotFound, "report not available")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExport returns the run's definition in JSON or YAML form.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		data, err := run.Definition().ToJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case "yaml":
		data, err := run.Definition().ToYAML()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unknown export format: "+format)
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*engine.Run, bool) {
	id, err := types.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}
	run, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return run, true
}
