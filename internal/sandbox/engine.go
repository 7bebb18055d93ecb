package sandbox

import (
	"context"

	"github.com/slok/luabox/internal/model"
)

//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name Engine

// Engine is the interface for running untrusted programs.
type Engine interface {
	// Run validates and executes a program under the policy. The returned error is
	// only for engine or policy misuse, program failures are part of the outcome.
	Run(ctx context.Context, source string, policy model.SandboxPolicy) (*model.ExecutionOutcome, error)

	// Check runs only the validation stages of a program, nothing is executed.
	Check(ctx context.Context, source string, policy model.SandboxPolicy) ([]model.CheckResult, error)
}
