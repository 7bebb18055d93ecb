package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
)

// EngineConfig is the configuration for the fake engine.
type EngineConfig struct {
	// Outcome is returned by every run, when missing runs complete without output.
	Outcome *model.ExecutionOutcome
	Logger  log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Outcome == nil {
		c.Outcome = model.NewCompletedOutcome("")
	}
	if err := c.Outcome.Validate(); err != nil {
		return fmt.Errorf("invalid outcome: %w", err)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// Engine is a fake implementation of the sandbox.Engine interface.
// It doesn't execute anything, it records the received programs.
type Engine struct {
	outcome model.ExecutionOutcome
	sources []string
	mu      sync.Mutex
	logger  log.Logger
}

// NewEngine creates a new fake engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		outcome: *cfg.Outcome,
		logger:  cfg.Logger,
	}, nil
}

// Run returns the configured outcome.
func (e *Engine) Run(ctx context.Context, source string, policy model.SandboxPolicy) (*model.ExecutionOutcome, error) {
	policy.Defaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sources = append(e.sources, source)
	o := e.outcome
	e.logger.Debugf("Fake run %d: %s", len(e.sources), o.Status)

	return &o, nil
}

// Check always accepts the program.
func (e *Engine) Check(ctx context.Context, source string, policy model.SandboxPolicy) ([]model.CheckResult, error) {
	policy.Defaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return []model.CheckResult{
		{ID: model.CheckIDSyntax, Message: "Fake engine accepts everything", Status: model.CheckStatusOK},
		{ID: model.CheckIDInstructions, Message: "Fake engine accepts everything", Status: model.CheckStatusOK},
	}, nil
}

// Sources returns the programs received by the engine.
func (e *Engine) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.sources...)
}
