package model

import (
	"fmt"
	"time"
)

// OutcomeStatus is the terminal state of a run.
type OutcomeStatus string

const (
	// OutcomeStatusCompleted indicates the program ran to completion.
	OutcomeStatusCompleted OutcomeStatus = "completed"
	// OutcomeStatusSyntaxError indicates the source text could not be parsed.
	OutcomeStatusSyntaxError OutcomeStatus = "syntax_error"
	// OutcomeStatusPolicyViolation indicates a disallowed construct, call, attribute, import or instruction.
	OutcomeStatusPolicyViolation OutcomeStatus = "policy_violation"
	// OutcomeStatusResourceExceeded indicates the memory or instruction ceiling was crossed.
	OutcomeStatusResourceExceeded OutcomeStatus = "resource_exceeded"
	// OutcomeStatusTimedOut indicates the wall-clock budget was exhausted.
	OutcomeStatusTimedOut OutcomeStatus = "timed_out"
	// OutcomeStatusRuntimeFault indicates the program raised its own error.
	OutcomeStatusRuntimeFault OutcomeStatus = "runtime_fault"
)

// ResourceKind is the kind of resource that has a ceiling.
type ResourceKind string

const (
	ResourceKindMemory       ResourceKind = "memory"
	ResourceKindInstructions ResourceKind = "instructions"
)

// ViolationKind classifies policy violations.
type ViolationKind string

const (
	ViolationKindNode        ViolationKind = "node"
	ViolationKindCall        ViolationKind = "call"
	ViolationKindAttribute   ViolationKind = "attribute"
	ViolationKindImport      ViolationKind = "import"
	ViolationKindSuspension  ViolationKind = "suspension"
	ViolationKindInstruction ViolationKind = "instruction"
)

// CompletedResult is the payload of a completed run.
type CompletedResult struct {
	Output string
}

// SyntaxErrorResult is the payload of a run whose source could not be parsed.
type SyntaxErrorResult struct {
	Message string
	Line    int
}

// PolicyViolationResult is the payload of a run rejected by the policy.
// Line is 0 when the violation was detected at runtime without position.
type PolicyViolationResult struct {
	Reason string
	Kind   ViolationKind
	Name   string
	Line   int
}

// ResourceExceededResult is the payload of a run aborted by a resource ceiling.
type ResourceExceededResult struct {
	Kind     ResourceKind
	Observed int64
	Limit    int64
}

// TimedOutResult is the payload of a run that exhausted its time budget.
type TimedOutResult struct {
	Elapsed time.Duration
}

// RuntimeFaultResult is the payload of a run where the program raised an error.
type RuntimeFaultResult struct {
	Message string
}

// ExecutionOutcome is the result of a run. Exactly one of the payloads is set,
// the one that matches Status.
type ExecutionOutcome struct {
	RunID        string
	Status       OutcomeStatus
	Duration     time.Duration
	Instructions int64
	PeakMemory   int64

	Completed        *CompletedResult
	SyntaxError      *SyntaxErrorResult
	PolicyViolation  *PolicyViolationResult
	ResourceExceeded *ResourceExceededResult
	TimedOut         *TimedOutResult
	RuntimeFault     *RuntimeFaultResult
}

// NewCompletedOutcome returns a completed outcome.
func NewCompletedOutcome(output string) *ExecutionOutcome {
	return &ExecutionOutcome{Status: OutcomeStatusCompleted, Completed: &CompletedResult{Output: output}}
}

// NewSyntaxErrorOutcome returns a syntax error outcome.
func NewSyntaxErrorOutcome(msg string, line int) *ExecutionOutcome {
	return &ExecutionOutcome{Status: OutcomeStatusSyntaxError, SyntaxError: &SyntaxErrorResult{Message: msg, Line: line}}
}

// NewPolicyViolationOutcome returns a policy violation outcome.
func NewPolicyViolationOutcome(v PolicyViolationResult) *ExecutionOutcome {
	return &ExecutionOutcome{Status: OutcomeStatusPolicyViolation, PolicyViolation: &v}
}

// NewResourceExceededOutcome returns a resource exceeded outcome.
func NewResourceExceededOutcome(kind ResourceKind, observed, limit int64) *ExecutionOutcome {
	return &ExecutionOutcome{
		Status:           OutcomeStatusResourceExceeded,
		ResourceExceeded: &ResourceExceededResult{Kind: kind, Observed: observed, Limit: limit},
	}
}

// NewTimedOutOutcome returns a timed out outcome.
func NewTimedOutOutcome(elapsed time.Duration) *ExecutionOutcome {
	return &ExecutionOutcome{Status: OutcomeStatusTimedOut, TimedOut: &TimedOutResult{Elapsed: elapsed}}
}

// NewRuntimeFaultOutcome returns a runtime fault outcome.
func NewRuntimeFaultOutcome(msg string) *ExecutionOutcome {
	return &ExecutionOutcome{Status: OutcomeStatusRuntimeFault, RuntimeFault: &RuntimeFaultResult{Message: msg}}
}

// Success returns true if the program completed.
func (o ExecutionOutcome) Success() bool { return o.Status == OutcomeStatusCompleted }

// Validate checks the outcome has one, and only one, payload matching its status.
func (o ExecutionOutcome) Validate() error {
	set := 0
	var matching bool
	check := func(present bool, status OutcomeStatus) {
		if !present {
			return
		}
		set++
		if status == o.Status {
			matching = true
		}
	}
	check(o.Completed != nil, OutcomeStatusCompleted)
	check(o.SyntaxError != nil, OutcomeStatusSyntaxError)
	check(o.PolicyViolation != nil, OutcomeStatusPolicyViolation)
	check(o.ResourceExceeded != nil, OutcomeStatusResourceExceeded)
	check(o.TimedOut != nil, OutcomeStatusTimedOut)
	check(o.RuntimeFault != nil, OutcomeStatusRuntimeFault)

	if set != 1 {
		return fmt.Errorf("outcome must have exactly one payload, got %d: %w", set, ErrNotValid)
	}
	if !matching {
		return fmt.Errorf("outcome payload doesn't match status %q: %w", o.Status, ErrNotValid)
	}

	return nil
}

// OutcomeSummary is the serializable form of an outcome.
type OutcomeSummary struct {
	Status      string  `json:"status"`
	Output      *string `json:"output,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	ErrorDetail string  `json:"error_detail,omitempty"`
}

// Summary returns the serializable form of the outcome.
func (o ExecutionOutcome) Summary() OutcomeSummary {
	s := OutcomeSummary{Status: string(o.Status)}

	switch {
	case o.Completed != nil:
		out := o.Completed.Output
		s.Output = &out
	case o.SyntaxError != nil:
		s.ErrorKind = "syntax"
		s.ErrorDetail = fmt.Sprintf("line %d: %s", o.SyntaxError.Line, o.SyntaxError.Message)
	case o.PolicyViolation != nil:
		s.ErrorKind = string(o.PolicyViolation.Kind)
		s.ErrorDetail = o.PolicyViolation.Reason
		if o.PolicyViolation.Line > 0 {
			s.ErrorDetail = fmt.Sprintf("line %d: %s", o.PolicyViolation.Line, o.PolicyViolation.Reason)
		}
	case o.ResourceExceeded != nil:
		r := o.ResourceExceeded
		s.ErrorKind = string(r.Kind)
		s.ErrorDetail = fmt.Sprintf("%s ceiling exceeded: observed %d, limit %d", r.Kind, r.Observed, r.Limit)
	case o.TimedOut != nil:
		s.ErrorKind = "timeout"
		s.ErrorDetail = fmt.Sprintf("timed out after %s", o.TimedOut.Elapsed.Round(time.Millisecond))
	case o.RuntimeFault != nil:
		s.ErrorKind = "runtime"
		s.ErrorDetail = o.RuntimeFault.Message
	}

	return s
}
