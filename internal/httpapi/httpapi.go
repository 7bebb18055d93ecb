// Package httpapi exposes the sandbox over HTTP. Every request runs against the
// server policy, clients can only make its ceilings tighter.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/luabox/internal/app/check"
	"github.com/slok/luabox/internal/app/run"
	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/metrics"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
)

const defaultMaxSourceBytes = 1024 * 1024

// Runner executes programs.
type Runner interface {
	Run(ctx context.Context, req run.Request) (*model.ExecutionOutcome, error)
}

// Checker validates programs without executing them.
type Checker interface {
	Run(ctx context.Context, req check.Request) ([]model.CheckResult, error)
}

// Config is the configuration of the HTTP API handler.
type Config struct {
	Runner  Runner
	Checker Checker
	// Policy is the base policy of every request.
	Policy  model.SandboxPolicy
	Metrics metrics.Recorder
	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
	// MaxSourceBytes is the maximum request body size.
	MaxSourceBytes int64
	Logger         log.Logger
}

func (c *Config) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Checker == nil {
		return fmt.Errorf("checker is required")
	}
	c.Policy.Defaults()
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.MaxSourceBytes == 0 {
		c.MaxSourceBytes = defaultMaxSourceBytes
	}
	if c.MaxSourceBytes < 0 {
		return fmt.Errorf("max source bytes can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "httpapi.Handler"})
	return nil
}

type handler struct {
	runner   Runner
	checker  Checker
	policy   model.SandboxPolicy
	metrics  metrics.Recorder
	maxBytes int64
	logger   log.Logger
}

// New returns the HTTP handler of the API.
func New(cfg Config) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{
		runner:   cfg.Runner,
		checker:  cfg.Checker,
		policy:   cfg.Policy,
		metrics:  cfg.Metrics,
		maxBytes: cfg.MaxSourceBytes,
		logger:   cfg.Logger,
	}

	mux := http.NewServeMux()
	h.route(mux, "POST /v1/run", "/v1/run", http.HandlerFunc(h.run))
	h.route(mux, "POST /v1/check", "/v1/check", http.HandlerFunc(h.check))
	h.route(mux, "GET /healthz", "/healthz", http.HandlerFunc(h.health))
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return mux, nil
}

// ProgramRequest is the body of the run and check endpoints.
type ProgramRequest struct {
	Source string `json:"source"`
	// Timeout is a duration string, it can't be bigger than the server one.
	Timeout string `json:"timeout,omitempty"`
	// InstructionCeiling can't be bigger than the server one.
	InstructionCeiling int64 `json:"instruction_ceiling,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handler) run(w http.ResponseWriter, r *http.Request) {
	req, policy, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.runner.Run(r.Context(), run.Request{Source: req.Source, Policy: policy})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, printer.NewOutcomeJSON(*o))
}

func (h handler) check(w http.ResponseWriter, r *http.Request) {
	req, policy, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.checker.Run(r.Context(), check.Request{Source: req.Source, Policy: policy})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	code := http.StatusOK
	if model.HasErrors(results) {
		code = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, code, printer.NewCheckJSON(results))
}

func (h handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h handler) decode(w http.ResponseWriter, r *http.Request) (*ProgramRequest, model.SandboxPolicy, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ProgramRequest
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, model.SandboxPolicy{}, errTooLarge
		}
		return nil, model.SandboxPolicy{}, fmt.Errorf("invalid request body: %s: %w", err, model.ErrNotValid)
	}
	if req.Source == "" {
		return nil, model.SandboxPolicy{}, fmt.Errorf("source is required: %w", model.ErrNotValid)
	}

	policy, err := tighten(h.policy, req)
	if err != nil {
		return nil, model.SandboxPolicy{}, err
	}

	return &req, policy, nil
}

// tighten returns the server policy with the request overrides applied.
func tighten(base model.SandboxPolicy, req ProgramRequest) (model.SandboxPolicy, error) {
	p := base.Clone()

	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return p, fmt.Errorf("invalid timeout: %s: %w", err, model.ErrNotValid)
		}
		if d <= 0 || d > p.Timeout {
			return p, fmt.Errorf("timeout must be in (0, %s]: %w", p.Timeout, model.ErrNotValid)
		}
		p.Timeout = d
	}

	if req.InstructionCeiling != 0 {
		if req.InstructionCeiling < 0 || req.InstructionCeiling > p.InstructionCeiling {
			return p, fmt.Errorf("instruction ceiling must be in (0, %d]: %w", p.InstructionCeiling, model.ErrNotValid)
		}
		p.InstructionCeiling = req.InstructionCeiling
	}

	return p, nil
}

var errTooLarge = errors.New("request body too large")

func (h handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errTooLarge):
		code = http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrNotValid):
		code = http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		// Client went away.
		code = 499
	}

	if code == http.StatusInternalServerError {
		h.logger.WithCtxValues(r.Context()).Errorf("request failed: %s", err)
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (h handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warningf("could not write response: %s", err)
	}
}

// route registers a handler measured under a fixed path label.
func (h handler) route(mux *http.ServeMux, pattern, path string, next http.Handler) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.metrics.ObserveHTTPRequest(r.Context(), path, rec.code, time.Since(start))
		h.logger.Debugf("%s %s %d", r.Method, path, rec.code)
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}
