package lua

import (
	"context"
	"errors"
	"fmt"
	"time"

	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
)

// EngineConfig is the configuration for the Lua engine.
type EngineConfig struct {
	// ChunkName is the name programs get in error messages.
	ChunkName string
	Logger    log.Logger

	// Used for testing.
	readHeap heapReader
	collect  func()
}

func (c *EngineConfig) defaults() error {
	if c.ChunkName == "" {
		c.ChunkName = "script"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.lua.Engine"})

	return nil
}

// Engine runs untrusted Lua programs. Every run validates the source, compiles
// it, validates the instructions and executes it against a fresh environment
// under the policy resource ceilings.
type Engine struct {
	chunkName string
	logger    log.Logger
	readHeap  heapReader
	collect   func()
}

// NewEngine returns a new Lua engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		chunkName: cfg.ChunkName,
		logger:    cfg.Logger,
		readHeap:  cfg.readHeap,
		collect:   cfg.collect,
	}, nil
}

type runState string

const (
	stateParsing               runState = "parsing"
	stateSyntaxValidating      runState = "syntax-validating"
	stateCompiling             runState = "compiling"
	stateInstructionValidating runState = "instruction-validating"
	stateExecuting             runState = "executing"
)

// Run executes a program. The returned error is only used for engine or policy
// problems, everything the program does is reported in the outcome.
func (e *Engine) Run(ctx context.Context, source string, policy model.SandboxPolicy) (*model.ExecutionOutcome, error) {
	start := time.Now()
	policy, err := preparePolicy(policy)
	if err != nil {
		return nil, err
	}

	logger := e.logger.WithCtxValues(ctx)
	m := NewPolicyMatcher(policy)

	prog, err := e.validate(logger, source, m)
	if err != nil {
		o := outcomeFromError(err)
		o.Duration = time.Since(start)
		logger.Debugf("run rejected: %s", err)
		return o, nil
	}

	o, err := e.execute(ctx, logger, prog, policy, m)
	if err != nil {
		return nil, err
	}
	o.Duration = time.Since(start)
	logger.Debugf("run finished: %s", o.Status)

	return o, nil
}

// Check only runs the validation stages of a program, nothing is executed.
func (e *Engine) Check(ctx context.Context, source string, policy model.SandboxPolicy) ([]model.CheckResult, error) {
	policy, err := preparePolicy(policy)
	if err != nil {
		return nil, err
	}

	logger := e.logger.WithCtxValues(ctx)
	m := NewPolicyMatcher(policy)
	results := moduleChecks(policy)

	chunk, err := e.validateSyntax(logger, source, m)
	if err != nil {
		return append(results, model.CheckResult{ID: model.CheckIDSyntax, Message: err.Error(), Status: model.CheckStatusError}), nil
	}
	results = append(results, model.CheckResult{ID: model.CheckIDSyntax, Message: "Source structure is allowed", Status: model.CheckStatusOK})

	if _, err := e.compile(logger, chunk, source, m); err != nil {
		return append(results, model.CheckResult{ID: model.CheckIDInstructions, Message: err.Error(), Status: model.CheckStatusError}), nil
	}
	results = append(results, model.CheckResult{ID: model.CheckIDInstructions, Message: "Compiled instructions are allowed", Status: model.CheckStatusOK})

	return results, nil
}

func preparePolicy(policy model.SandboxPolicy) (model.SandboxPolicy, error) {
	policy = policy.Clone()
	policy.Defaults()
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("invalid policy: %w", err)
	}
	return policy, nil
}

func moduleChecks(policy model.SandboxPolicy) []model.CheckResult {
	var results []model.CheckResult
	for _, mod := range policy.AllowedModules {
		if _, ok := moduleCatalogue[mod]; ok {
			continue
		}
		results = append(results, model.CheckResult{
			ID:      model.CheckIDModulePrefix + mod,
			Message: fmt.Sprintf("Module %q is allowed but it's not available", mod),
			Status:  model.CheckStatusWarning,
		})
	}
	return results
}

func (e *Engine) validate(logger log.Logger, source string, m *PolicyMatcher) (*program, error) {
	chunk, err := e.validateSyntax(logger, source, m)
	if err != nil {
		return nil, err
	}
	return e.compile(logger, chunk, source, m)
}

func (e *Engine) validateSyntax(logger log.Logger, source string, m *PolicyMatcher) ([]ast.Stmt, error) {
	logger.Debugf("run state: %s", stateParsing)
	logger.Debugf("run state: %s", stateSyntaxValidating)
	return validateSyntax(source, e.chunkName, m)
}

func (e *Engine) compile(logger log.Logger, chunk []ast.Stmt, source string, m *PolicyMatcher) (*program, error) {
	logger.Debugf("run state: %s", stateCompiling)
	proto, err := glua.Compile(chunk, e.chunkName)
	if err != nil {
		return nil, &SyntaxError{Message: err.Error()}
	}

	logger.Debugf("run state: %s", stateInstructionValidating)
	if err := validateInstructions(proto, m); err != nil {
		return nil, err
	}

	return &program{proto: proto, source: source, chunkName: e.chunkName}, nil
}

type workerResult struct {
	err error
}

// errTimedOut is recorded on the violation flag when the time budget is exhausted.
var errTimedOut = errors.New("timed out")

func (e *Engine) execute(ctx context.Context, logger log.Logger, prog *program, policy model.SandboxPolicy, m *PolicyMatcher) (*model.ExecutionOutcome, error) {
	logger.Debugf("run state: %s", stateExecuting)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	violation := newViolationFlag(cancel)
	sample := &resourceSample{}
	budget := newInstructionBudget(runCtx, policy.InstructionCeiling, sample, violation)
	output := newOutputBuffer(policy.MaxOutputBytes)

	L := glua.NewState(glua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       policy.CallStackSize,
		MinimizeStackMemory: true,
	})
	env, err := newEnvironment(runCtx, L, policy, m, violation, output)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("could not create environment: %w", err)
	}
	fn := L.NewFunctionFromProto(prog.proto)
	fn.Env = env
	// From now on every instruction goes through the budget.
	L.SetContext(budget)

	monitor := newMemoryMonitor(policy, sample, violation, logger)
	if e.readHeap != nil {
		monitor.read = e.readHeap
	}
	if e.collect != nil {
		monitor.collect = e.collect
	}

	execStart := time.Now()
	done := make(chan workerResult, 1)
	go monitor.Run(runCtx)
	go func() {
		done <- runWorker(L, fn)
	}()

	timer := time.NewTimer(policy.Timeout)
	defer timer.Stop()

	var o *model.ExecutionOutcome
	select {
	case res := <-done:
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		switch verr := violation.Err(); {
		case verr != nil:
			o = outcomeFromError(verr)
		case res.err != nil:
			o = model.NewRuntimeFaultOutcome(faultMessage(res.err))
		default:
			o = model.NewCompletedOutcome(output.String())
		}

	case <-violation.Tripped():
		o = outcomeFromError(violation.Err())

	case <-timer.C:
		if violation.Trip(errTimedOut) {
			o = model.NewTimedOutOutcome(time.Since(execStart))
			logger.Warningf("run timed out after %s, worker cancelled", policy.Timeout)
		} else {
			o = outcomeFromError(violation.Err())
		}

	case <-ctx.Done():
		return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
	}

	o.Instructions = budget.executed()
	o.PeakMemory = sample.peakMemory.Load()

	return o, nil
}

// runWorker runs the program, it owns the state and closes it when done.
func runWorker(L *glua.LState, fn *glua.LFunction) (res workerResult) {
	defer L.Close()
	defer func() {
		if r := recover(); r != nil {
			res = workerResult{err: fmt.Errorf("internal error: %v", r)}
		}
	}()

	L.Push(fn)
	return workerResult{err: L.PCall(0, 0, nil)}
}

func faultMessage(err error) string {
	var apiErr *glua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
