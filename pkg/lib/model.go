package lib

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/slok/luabox/internal/model"
)

// EngineType identifies the sandbox engine implementation.
type EngineType string

const (
	// EngineLua validates and executes programs on the Lua sandbox.
	EngineLua EngineType = "lua"

	// EngineFake accepts every program and executes nothing, runs complete
	// without output. Use this for unit testing code that uses the SDK.
	EngineFake EngineType = "fake"
)

// OutcomeStatus is the terminal state of a run.
type OutcomeStatus string

const (
	// OutcomeStatusCompleted indicates the program ran to completion.
	OutcomeStatusCompleted OutcomeStatus = "completed"
	// OutcomeStatusSyntaxError indicates the source could not be parsed.
	OutcomeStatusSyntaxError OutcomeStatus = "syntax_error"
	// OutcomeStatusPolicyViolation indicates the program used something the policy doesn't allow.
	OutcomeStatusPolicyViolation OutcomeStatus = "policy_violation"
	// OutcomeStatusResourceExceeded indicates the memory or instruction ceiling was crossed.
	OutcomeStatusResourceExceeded OutcomeStatus = "resource_exceeded"
	// OutcomeStatusTimedOut indicates the time budget was exhausted.
	OutcomeStatusTimedOut OutcomeStatus = "timed_out"
	// OutcomeStatusRuntimeFault indicates the program raised an error.
	OutcomeStatusRuntimeFault OutcomeStatus = "runtime_fault"
)

// Outcome is the result of a run.
type Outcome struct {
	// RunID is the unique identifier (ULID) of the run.
	RunID  string
	Status OutcomeStatus
	// Output is the captured program output, only set on completed runs.
	Output string
	// ErrorKind classifies the failure (e.g. "import", "instructions", "timeout").
	// Empty on completed runs.
	ErrorKind string
	// ErrorDetail is the human readable failure description.
	ErrorDetail     string
	Instructions    int64
	Duration        time.Duration
	PeakMemoryBytes int64
}

// Success returns true if the program completed.
func (o Outcome) Success() bool { return o.Status == OutcomeStatusCompleted }

// Tool is a named host operation that programs can call as a global function.
// Arguments and results are plain Go values: nil, bool, float64, string, []any
// and map[string]any. Tools receive untrusted arguments.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args []any) (any, error)
}

// Policy is the configuration a program runs with. Zero fields get the
// default values, see [DefaultPolicy].
type Policy struct {
	Timeout            time.Duration
	MemoryCeiling      int64
	InstructionCeiling int64
	// AllowedModules are the modules that can be required. Nil means the
	// default modules, an empty slice allows none.
	AllowedModules []string
	// ModuleAttributeAllowlist restricts modules to a subset of their attributes.
	ModuleAttributeAllowlist map[string][]string
	// ForbiddenCallNames and ForbiddenAttributeNames are added to the builtin ones.
	ForbiddenCallNames      []string
	ForbiddenAttributeNames []string
	MaxOutputBytes          int
	Tools                   []Tool
}

// DefaultPolicy returns the policy used when none is given.
func DefaultPolicy() Policy {
	return fromInternalPolicy(model.DefaultSandboxPolicy())
}

// RunRecord is the history entry of a run. Program output is not recorded.
type RunRecord struct {
	ID           string
	SourceSHA256 string
	Status       OutcomeStatus
	ErrorKind    string
	ErrorDetail  string
	Instructions int64
	Duration     time.Duration
	CreatedAt    time.Time
}

// ListRunsOpts are the options to list the run history.
type ListRunsOpts struct {
	// Status filters by status when set.
	Status *OutcomeStatus
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

// CheckStatus is the status of a validation check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// CheckResult is the result of a single validation check.
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

// Sentinel errors, use [errors.Is] to check them.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotValid      = errors.New("not valid")
)

func fromInternalOutcome(o model.ExecutionOutcome) Outcome {
	s := o.Summary()
	out := Outcome{
		RunID:           o.RunID,
		Status:          OutcomeStatus(o.Status),
		ErrorKind:       s.ErrorKind,
		ErrorDetail:     s.ErrorDetail,
		Instructions:    o.Instructions,
		Duration:        o.Duration,
		PeakMemoryBytes: o.PeakMemory,
	}
	if s.Output != nil {
		out.Output = *s.Output
	}
	return out
}

func fromInternalRunRecord(r model.RunRecord) RunRecord {
	return RunRecord{
		ID:           r.ID,
		SourceSHA256: r.SourceDigest,
		Status:       OutcomeStatus(r.Status),
		ErrorKind:    r.ErrorKind,
		ErrorDetail:  r.ErrorDetail,
		Instructions: r.Instructions,
		Duration:     r.Duration,
		CreatedAt:    r.CreatedAt,
	}
}

func fromInternalRunRecordList(rs []model.RunRecord) []RunRecord {
	result := make([]RunRecord, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRunRecord(r)
	}
	return result
}

func fromInternalCheckResults(rs []model.CheckResult) []CheckResult {
	result := make([]CheckResult, len(rs))
	for i, r := range rs {
		result[i] = CheckResult{ID: r.ID, Message: r.Message, Status: CheckStatus(r.Status)}
	}
	return result
}

func fromInternalPolicy(p model.SandboxPolicy) Policy {
	pol := Policy{
		Timeout:                  p.Timeout,
		MemoryCeiling:            p.MemoryCeiling,
		InstructionCeiling:       p.InstructionCeiling,
		AllowedModules:           p.AllowedModules,
		ModuleAttributeAllowlist: p.ModuleAttributeAllowlist,
		MaxOutputBytes:           p.MaxOutputBytes,
	}
	for _, name := range p.Tools.Names() {
		t, _ := p.Tools.Get(name)
		pol.Tools = append(pol.Tools, t)
	}
	return pol
}

func toInternalPolicy(p *Policy) (model.SandboxPolicy, error) {
	if p == nil {
		return model.DefaultSandboxPolicy(), nil
	}

	ip := model.DefaultSandboxPolicy()
	if p.Timeout != 0 {
		ip.Timeout = p.Timeout
	}
	if p.MemoryCeiling != 0 {
		ip.MemoryCeiling = p.MemoryCeiling
	}
	if p.InstructionCeiling != 0 {
		ip.InstructionCeiling = p.InstructionCeiling
	}
	if p.MaxOutputBytes != 0 {
		ip.MaxOutputBytes = p.MaxOutputBytes
	}
	if p.AllowedModules != nil {
		ip.AllowedModules = append([]string{}, p.AllowedModules...)
		for mod := range ip.ModuleAttributeAllowlist {
			if !slices.Contains(ip.AllowedModules, mod) {
				delete(ip.ModuleAttributeAllowlist, mod)
			}
		}
	}
	for mod, attrs := range p.ModuleAttributeAllowlist {
		ip.ModuleAttributeAllowlist[mod] = append([]string{}, attrs...)
	}
	ip.ForbiddenCallNames = append(ip.ForbiddenCallNames, p.ForbiddenCallNames...)
	ip.ForbiddenAttributeNames = append(ip.ForbiddenAttributeNames, p.ForbiddenAttributeNames...)

	tools := make([]model.Tool, 0, len(p.Tools))
	for _, t := range p.Tools {
		tools = append(tools, t)
	}
	ts, err := model.NewToolSet(tools...)
	if err != nil {
		return model.SandboxPolicy{}, err
	}
	ip.Tools = ts

	ip.Defaults()
	if err := ip.Validate(); err != nil {
		return model.SandboxPolicy{}, err
	}

	return ip, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return &mappedError{original: err, sentinel: ErrNotFound}
	case errors.Is(err, model.ErrAlreadyExists):
		return &mappedError{original: err, sentinel: ErrAlreadyExists}
	case errors.Is(err, model.ErrNotValid):
		return &mappedError{original: err, sentinel: ErrNotValid}
	default:
		return err
	}
}

// mappedError exposes an internal error as one of the public sentinels.
type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
