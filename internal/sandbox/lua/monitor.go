package lua

import (
	"context"
	"errors"
	"runtime"
	"runtime/metrics"
	"sync/atomic"
	"time"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
)

// violationFlag is a write-once flag shared by the worker, the monitor and the orchestrator.
// The first violation recorded wins, the rest are ignored.
type violationFlag struct {
	err     atomic.Pointer[error]
	tripped chan struct{}
	cancel  context.CancelFunc
}

func newViolationFlag(cancel context.CancelFunc) *violationFlag {
	return &violationFlag{
		tripped: make(chan struct{}),
		cancel:  cancel,
	}
}

// Trip records the violation and cancels the run. Returns false if a violation
// was already recorded.
func (v *violationFlag) Trip(err error) bool {
	if !v.err.CompareAndSwap(nil, &err) {
		return false
	}
	close(v.tripped)
	v.cancel()
	return true
}

// Err returns the recorded violation, if any.
func (v *violationFlag) Err() error {
	if p := v.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Tripped returns a channel that is closed when a violation is recorded.
func (v *violationFlag) Tripped() <-chan struct{} { return v.tripped }

// resourceSample holds the resource usage of a run. The worker VM writes the
// instruction count and the monitor writes the memory.
type resourceSample struct {
	instructions atomic.Int64
	memory       atomic.Int64
	peakMemory   atomic.Int64
}

func (r *resourceSample) setMemory(v int64) {
	r.memory.Store(v)
	for {
		peak := r.peakMemory.Load()
		if v <= peak || r.peakMemory.CompareAndSwap(peak, v) {
			return
		}
	}
}

var errInstructionBudget = errors.New("instruction budget exhausted")

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// instructionBudget is the context given to the VM. The VM checks Done once per
// executed instruction, that is the instruction counting hook.
type instructionBudget struct {
	context.Context
	limit     int64
	sample    *resourceSample
	violation *violationFlag
	exhausted atomic.Bool
}

func newInstructionBudget(ctx context.Context, limit int64, sample *resourceSample, violation *violationFlag) *instructionBudget {
	return &instructionBudget{
		Context:   ctx,
		limit:     limit,
		sample:    sample,
		violation: violation,
	}
}

func (b *instructionBudget) Done() <-chan struct{} {
	n := b.sample.instructions.Add(1)
	if n > b.limit {
		if b.exhausted.CompareAndSwap(false, true) {
			b.violation.Trip(&ResourceExceededError{
				Kind:     model.ResourceKindInstructions,
				Observed: n,
				Limit:    b.limit,
			})
		}
		return closedDone
	}

	return b.Context.Done()
}

func (b *instructionBudget) Err() error {
	if b.exhausted.Load() {
		return errInstructionBudget
	}
	return b.Context.Err()
}

// executed returns the instructions executed, without the one that crossed the ceiling.
func (b *instructionBudget) executed() int64 {
	n := b.sample.instructions.Load()
	if n > b.limit {
		return b.limit
	}
	return n
}

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// heapReader returns the current approximate memory in use.
type heapReader func() int64

func readHeapObjects() int64 {
	s := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(s)
	if s[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(s[0].Value.Uint64())
}

// memoryMonitor polls the memory used since the start of the run.
// The Go heap is shared by the whole process so this is an approximation: it
// confirms the growth after a collection before tripping.
type memoryMonitor struct {
	interval  time.Duration
	limit     int64
	sample    *resourceSample
	violation *violationFlag
	read      heapReader
	collect   func()
	logger    log.Logger
}

func (m memoryMonitor) Run(ctx context.Context) {
	baseline := m.read()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		used := m.read() - baseline
		m.sample.setMemory(used)
		if used <= m.limit {
			continue
		}

		// Confirm without garbage.
		m.collect()
		used = m.read() - baseline
		m.sample.setMemory(used)
		if used <= m.limit {
			continue
		}

		m.logger.Debugf("memory ceiling crossed: %d > %d", used, m.limit)
		m.violation.Trip(&ResourceExceededError{
			Kind:     model.ResourceKindMemory,
			Observed: used,
			Limit:    m.limit,
		})
		return
	}
}

func newMemoryMonitor(policy model.SandboxPolicy, sample *resourceSample, violation *violationFlag, logger log.Logger) memoryMonitor {
	return memoryMonitor{
		interval:  policy.MonitorInterval,
		limit:     policy.MemoryCeiling,
		sample:    sample,
		violation: violation,
		read:      readHeapObjects,
		collect:   runtime.GC,
		logger:    logger,
	}
}
