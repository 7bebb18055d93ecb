package lua

import (
	"errors"
	"fmt"

	"github.com/slok/luabox/internal/model"
)

// SyntaxError is returned when the source text can't be parsed.
type SyntaxError struct {
	Message string
	Line    int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Message)
}

// PolicyViolationError is returned when a program uses something the policy doesn't allow.
type PolicyViolationError struct {
	Kind model.ViolationKind
	Name string
	// Line is 0 when the violation has no known position.
	Line   int
	Reason string
}

func (e *PolicyViolationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("policy violation at line %d: %s", e.Line, e.Reason)
	}
	return "policy violation: " + e.Reason
}

// ResourceExceededError is returned when a run crosses a resource ceiling.
type ResourceExceededError struct {
	Kind     model.ResourceKind
	Observed int64
	Limit    int64
}

func (e *ResourceExceededError) Error() string {
	return fmt.Sprintf("%s ceiling exceeded: observed %d, limit %d", e.Kind, e.Observed, e.Limit)
}

func newViolation(kind model.ViolationKind, name string, line int, format string, args ...any) *PolicyViolationError {
	return &PolicyViolationError{
		Kind:   kind,
		Name:   name,
		Line:   line,
		Reason: fmt.Sprintf(format, args...),
	}
}

// outcomeFromError maps the engine typed errors to an outcome.
// Unknown errors are runtime faults.
func outcomeFromError(err error) *model.ExecutionOutcome {
	var (
		synErr *SyntaxError
		polErr *PolicyViolationError
		resErr *ResourceExceededError
	)
	switch {
	case errors.As(err, &synErr):
		return model.NewSyntaxErrorOutcome(synErr.Message, synErr.Line)
	case errors.As(err, &polErr):
		return model.NewPolicyViolationOutcome(model.PolicyViolationResult{
			Reason: polErr.Reason,
			Kind:   polErr.Kind,
			Name:   polErr.Name,
			Line:   polErr.Line,
		})
	case errors.As(err, &resErr):
		return model.NewResourceExceededOutcome(resErr.Kind, resErr.Observed, resErr.Limit)
	}

	return model.NewRuntimeFaultOutcome(err.Error())
}
