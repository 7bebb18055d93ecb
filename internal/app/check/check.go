package check

import (
	"context"
	"fmt"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/metrics"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/sandbox"
)

// ServiceConfig is the configuration for the check service.
type ServiceConfig struct {
	Engine  sandbox.Engine
	Metrics metrics.Recorder
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Check"})
	return nil
}

// Service validates programs without running them.
type Service struct {
	engine  sandbox.Engine
	metrics metrics.Recorder
	logger  log.Logger
}

// NewService creates a new check service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine:  cfg.Engine,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Request is the check request.
type Request struct {
	Source string
	Policy model.SandboxPolicy
}

// Run checks the program against the policy.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CheckResult, error) {
	results, err := s.engine.Check(ctx, req.Source, req.Policy)
	if err != nil {
		return nil, fmt.Errorf("could not check program: %w", err)
	}

	ok := !model.HasErrors(results)
	s.metrics.ObserveCheck(ctx, ok)
	s.logger.Debugf("program checked, allowed: %t", ok)

	return results, nil
}
