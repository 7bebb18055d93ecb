// Package metrics records what the sandbox runs do.
package metrics

import (
	"context"
	"time"

	"github.com/slok/luabox/internal/model"
)

// Recorder knows how to record run metrics.
type Recorder interface {
	ObserveRun(ctx context.Context, o model.ExecutionOutcome)
	ObserveCheck(ctx context.Context, ok bool)
	ObserveToolCall(ctx context.Context, tool string, success bool, duration time.Duration)
	ObserveHTTPRequest(ctx context.Context, path string, code int, duration time.Duration)
}

// Noop is a recorder that doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) ObserveRun(context.Context, model.ExecutionOutcome)             {}
func (noop) ObserveCheck(context.Context, bool)                             {}
func (noop) ObserveToolCall(context.Context, string, bool, time.Duration)   {}
func (noop) ObserveHTTPRequest(context.Context, string, int, time.Duration) {}

// InstrumentTool wraps a tool to record its calls.
func InstrumentTool(t model.Tool, rec Recorder) model.Tool {
	return instrumentedTool{Tool: t, rec: rec}
}

type instrumentedTool struct {
	model.Tool
	rec Recorder
}

func (t instrumentedTool) Call(ctx context.Context, args []any) (res any, err error) {
	defer func(start time.Time) {
		t.rec.ObserveToolCall(ctx, t.Name(), err == nil, time.Since(start))
	}(time.Now())
	return t.Tool.Call(ctx, args)
}

// InstrumentToolSet returns a tool set with all the tools instrumented.
func InstrumentToolSet(ts model.ToolSet, rec Recorder) (model.ToolSet, error) {
	names := ts.Names()
	tools := make([]model.Tool, 0, len(names))
	for _, name := range names {
		t, _ := ts.Get(name)
		tools = append(tools, InstrumentTool(t, rec))
	}
	return model.NewToolSet(tools...)
}
