package run

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/metrics"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/sandbox"
	"github.com/slok/luabox/internal/storage"
)

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Engine     sandbox.Engine
	Repository storage.Repository
	Metrics    metrics.Recorder
	Logger     log.Logger

	// Used for testing.
	NewID func() string
	Now   func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	if c.NewID == nil {
		c.NewID = func() string { return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String() }
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return nil
}

// Service runs untrusted programs and keeps the history of the runs.
type Service struct {
	engine  sandbox.Engine
	repo    storage.Repository
	metrics metrics.Recorder
	logger  log.Logger
	newID   func() string
	now     func() time.Time
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine:  cfg.Engine,
		repo:    cfg.Repository,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		newID:   cfg.NewID,
		now:     cfg.Now,
	}, nil
}

// Request is the run request.
type Request struct {
	Source string
	Policy model.SandboxPolicy
}

// Run executes the program and records it. Program failures are returned in the
// outcome, the error is only for requests that could not be run.
func (s *Service) Run(ctx context.Context, req Request) (*model.ExecutionOutcome, error) {
	id := s.newID()
	ctx = log.CtxWithValues(ctx, log.Kv{"run-id": id})
	logger := s.logger.WithCtxValues(ctx)

	policy := req.Policy
	tools, err := metrics.InstrumentToolSet(policy.Tools, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("could not instrument tools: %w", err)
	}
	policy.Tools = tools

	createdAt := s.now()
	outcome, err := s.engine.Run(ctx, req.Source, policy)
	if err != nil {
		return nil, fmt.Errorf("could not run program: %w", err)
	}
	outcome.RunID = id

	if err := outcome.Validate(); err != nil {
		return nil, fmt.Errorf("engine returned an invalid outcome: %w", err)
	}

	s.metrics.ObserveRun(ctx, *outcome)

	// History is best effort, the program already ran.
	if err := s.repo.CreateRun(ctx, model.NewRunRecord(req.Source, *outcome, createdAt)); err != nil {
		logger.Warningf("could not save run history: %s", err)
	}

	logger.Infof("Run finished with status %s in %s", outcome.Status, outcome.Duration)

	return outcome, nil
}
