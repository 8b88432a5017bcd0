// Package server exposes the form-task pipeline over HTTP: field extraction,
// editor declarations, task config storage and script preview.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-formscript/internal/store"
	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/session"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
	"github.com/goliatone/go-formscript/pkg/typings"
	"github.com/goliatone/go-formscript/pkg/visibility"
)

// TaskStore is the persistence the server needs.
type TaskStore interface {
	Get(ctx context.Context, taskID string) (store.Record, error)
	Put(ctx context.Context, taskID string, cfg taskconfig.TaskConfig) (store.Record, error)
	Delete(ctx context.Context, taskID string) error
	List(ctx context.Context) ([]store.Record, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExecutor sets the executor used for previews.
func WithExecutor(executor *script.Executor) Option {
	return func(s *Server) {
		if executor != nil {
			s.executor = executor
		}
	}
}

// WithEvaluator sets the field rule dialect used for previews.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(s *Server) {
		if evaluator != nil {
			s.evaluator = evaluator
		}
	}
}

// WithDefaultEventMode sets the mode applied to saved configs without one.
func WithDefaultEventMode(mode script.EventMode) Option {
	return func(s *Server) {
		if mode.Valid() {
			s.defaultMode = mode
		}
	}
}

// Server holds the HTTP handlers.
type Server struct {
	tasks       TaskStore
	logger      *slog.Logger
	executor    *script.Executor
	evaluator   visibility.Evaluator
	defaultMode script.EventMode
	router      chi.Router
}

// New builds the router.
func New(tasks TaskStore, options ...Option) *Server {
	s := &Server{
		tasks:       tasks,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultMode: script.DefaultEventMode,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	if s.executor == nil {
		s.executor = script.NewExecutor(script.WithLogger(s.logger))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/fields", s.handleFields)
		r.Post("/typings", s.handleTypings)
		r.Get("/tasks", s.handleListTasks)
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Put("/", s.handlePutTask)
			r.Delete("/", s.handleDeleteTask)
			r.Post("/evaluate", s.handleEvaluate)
		})
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Config holds listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Run serves handler until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

type designRequest struct {
	Design      json.RawMessage `json:"design"`
	OpenAPI     string          `json:"openapi,omitempty"`
	OperationID string          `json:"operationId,omitempty"`
}

func (s *Server) parseDesign(ctx context.Context, req designRequest) (formschema.Design, error) {
	if req.OpenAPI != "" {
		return formschema.FromOpenAPI(ctx, []byte(req.OpenAPI), req.OperationID)
	}
	return formschema.ParseDesign(designBytes(req.Design))
}

// designOrEmpty parses the request design. A malformed design is logged and
// replaced by the empty design; the returned message is non-empty in that case.
func (s *Server) designOrEmpty(ctx context.Context, req designRequest) (formschema.Design, string) {
	design, err := s.parseDesign(ctx, req)
	if err != nil {
		s.logger.Warn("malformed design, continuing without fields", "error", err)
		return formschema.Design{}, err.Error()
	}
	return design, ""
}

type fieldsResponse struct {
	Fields   []formschema.FormField                 `json:"fields"`
	Settings map[string]fieldsettings.FieldSetting  `json:"settings"`
	Buttons  []formschema.Button                    `json:"buttons"`
	Visible  map[string]fieldsettings.ButtonSetting `json:"buttonSettings"`
	// SchemaError is set when the design could not be parsed; the form then
	// degrades to zero fields.
	SchemaError string `json:"schemaError,omitempty"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	var req designRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	design, schemaErr := s.designOrEmpty(r.Context(), req)
	fields := formschema.Extract(design.Schema)
	buttons, _ := fieldsettings.InitializeButtons(design.Buttons, nil)
	s.writeJSON(w, http.StatusOK, fieldsResponse{
		Fields:      fields,
		Settings:    fieldsettings.Initialize(fields, nil).Snapshot(),
		Buttons:     buttons.Buttons(),
		Visible:     buttons.Snapshot(),
		SchemaError: schemaErr,
	})
}

func (s *Server) handleTypings(w http.ResponseWriter, r *http.Request) {
	var req designRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	design, _ := s.designOrEmpty(r.Context(), req)
	declarations, err := typings.Declarations(formschema.Extract(design.Schema))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "TYPINGS_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"declarations": declarations})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	records, err := s.tasks.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	record, err := s.tasks.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handlePutTask(w http.ResponseWriter, r *http.Request) {
	var cfg taskconfig.TaskConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := cfg.Assignment.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "INVALID_ASSIGNMENT", err.Error())
		return
	}
	cfg.Assignment = cfg.Assignment.Normalize()
	if cfg.ScriptEventType == "" {
		cfg.ScriptEventType = s.defaultMode
	}
	if !cfg.ScriptEventType.Valid() {
		s.writeError(w, http.StatusUnprocessableEntity, "INVALID_EVENT_MODE", fmt.Sprintf("unknown event mode %q", cfg.ScriptEventType))
		return
	}

	record, err := s.tasks.Put(r.Context(), chi.URLParam(r, "taskID"), cfg)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type evaluateRequest struct {
	designRequest
	// Config overrides the stored config for unsaved edits.
	Config  *taskconfig.TaskConfig `json:"config,omitempty"`
	Trigger string                 `json:"trigger"`
	Values  map[string]any         `json:"values"`
	Field   string                 `json:"field,omitempty"`
	Value   any                    `json:"value,omitempty"`
	Extras  map[string]any         `json:"extras,omitempty"`
}

type evaluateResponse struct {
	SessionID string                                `json:"sessionId"`
	RunID     string                                `json:"runId,omitempty"`
	Trigger   string                                `json:"trigger"`
	Ran       bool                                  `json:"ran"`
	Settings  map[string]fieldsettings.FieldSetting `json:"settings"`
	Values    map[string]any                        `json:"values"`
	Changes   map[string]any                        `json:"changes"`
	Error     string                                `json:"error,omitempty"`
	Dropped   []string                              `json:"droppedFields,omitempty"`
	// LoadRan reports that a change evaluation also ran the script on load.
	// Changes then merges both runs, the change run winning per field.
	LoadRan     bool   `json:"loadRan,omitempty"`
	SchemaError string `json:"schemaError,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	trigger, err := script.ParseTrigger(req.Trigger)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_TRIGGER", err.Error())
		return
	}
	if trigger == script.TriggerChange && req.Field == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "change evaluations need a field")
		return
	}

	cfg := req.Config
	if cfg == nil {
		record, err := s.tasks.Get(r.Context(), chi.URLParam(r, "taskID"))
		if err != nil {
			s.storeError(w, err)
			return
		}
		cfg = &record.Config
	}

	design, schemaErr := s.designOrEmpty(r.Context(), req.designRequest)

	options := []session.Option{
		session.WithLogger(s.logger),
		session.WithExecutor(s.executor),
		session.WithExtras(req.Extras),
	}
	if s.evaluator != nil {
		options = append(options, session.WithEvaluator(s.evaluator))
	}
	sess := session.OpenDesign(r.Context(), design, cfg, options...)

	// A change is evaluated against a loaded form, so the load run happens
	// first whenever the mode includes it.
	out := sess.Load(r.Context(), req.Values)
	changes := out.Changes
	loadRan := false
	if trigger == script.TriggerChange {
		loadRan = out.Ran
		loaded := out.Changes
		out = sess.Change(r.Context(), req.Field, req.Value)
		changes = out.Changes
		if len(loaded) > 0 {
			changes = make(map[string]any, len(loaded)+len(out.Changes))
			maps.Copy(changes, loaded)
			maps.Copy(changes, out.Changes)
		}
	}

	resp := evaluateResponse{
		SessionID:   out.SessionID,
		RunID:       out.RunID,
		Trigger:     trigger.String(),
		Ran:         out.Ran,
		Settings:    out.Settings,
		Values:      out.Values,
		Changes:     changes,
		Dropped:     sess.Report().DroppedFields,
		LoadRan:     loadRan,
		SchemaError: schemaErr,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	s.logger.Error("store failure", "error", err)
	s.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
}
