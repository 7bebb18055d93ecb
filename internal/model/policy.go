package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the wall-clock budget of a run.
	DefaultTimeout = 30 * time.Second
	// DefaultMemoryCeiling is the approximate memory budget of a run in bytes.
	DefaultMemoryCeiling int64 = 100 * 1024 * 1024
	// DefaultInstructionCeiling is the maximum number of VM instructions a run can execute.
	DefaultInstructionCeiling int64 = 1_000_000
	// DefaultMonitorInterval is how often the memory monitor samples.
	DefaultMonitorInterval = 100 * time.Millisecond
	// DefaultMaxOutputBytes is the maximum captured output size of a run.
	DefaultMaxOutputBytes = 1024 * 1024
	// DefaultCallStackSize is the guest call stack depth.
	DefaultCallStackSize = 200
)

// BuiltinForbiddenCallNames are function and method names that can't be called by
// a guest program. They are always part of a policy, callers can only add more.
var BuiltinForbiddenCallNames = []string{
	"load", "loadstring", "loadfile", "dofile",
	"getfenv", "setfenv", "module",
	"collectgarbage", "newproxy",
	"setmetatable", "getmetatable",
	"debug", "io",
	"open", "popen", "execute", "exit",
	"input", "read", "dump",
}

// BuiltinForbiddenAttributeNames are attribute names that can't be accessed by
// a guest program. Globals are attributes of the environment table so they
// apply to identifiers too.
var BuiltinForbiddenAttributeNames = []string{
	"__index", "__newindex", "__metatable", "__gc", "__mode", "__call",
	"__tostring", "__len", "__eq", "__lt", "__le", "__concat", "__unm",
	"__add", "__sub", "__mul", "__div", "__mod", "__pow",
	"_G", "_ENV", "_LOADED", "_REGISTRY", "_VERSION",
}

// DefaultAllowedModules are the modules a program can require by default.
var DefaultAllowedModules = []string{"math", "string", "table", "os"}

// DefaultModuleAttributeAllowlist restricts modules to a subset of their attributes.
// Modules without an entry expose all their public attributes.
var DefaultModuleAttributeAllowlist = map[string][]string{
	"os": {"time", "date", "clock", "difftime"},
}

// SandboxPolicy is the configuration that a run is executed with.
// A policy is not mutated by the engine, it makes its own copy per run.
type SandboxPolicy struct {
	Timeout                  time.Duration
	MemoryCeiling            int64
	InstructionCeiling       int64
	AllowedModules           []string
	ModuleAttributeAllowlist map[string][]string
	ForbiddenCallNames       []string
	ForbiddenAttributeNames  []string

	MonitorInterval time.Duration
	MaxOutputBytes  int
	CallStackSize   int
	// Tools are the named host operations injected in the guest environment.
	Tools ToolSet
}

// DefaultSandboxPolicy returns the policy used when the user doesn't customize anything.
func DefaultSandboxPolicy() SandboxPolicy {
	p := SandboxPolicy{
		AllowedModules:           slices.Clone(DefaultAllowedModules),
		ModuleAttributeAllowlist: map[string][]string{},
	}
	for k, v := range DefaultModuleAttributeAllowlist {
		p.ModuleAttributeAllowlist[k] = slices.Clone(v)
	}
	p.Defaults()

	return p
}

// Defaults sets the defaults on the unset fields of the policy. The builtin forbidden
// names are always merged into the policy ones.
func (p *SandboxPolicy) Defaults() {
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MemoryCeiling == 0 {
		p.MemoryCeiling = DefaultMemoryCeiling
	}
	if p.InstructionCeiling == 0 {
		p.InstructionCeiling = DefaultInstructionCeiling
	}
	if p.MonitorInterval == 0 {
		p.MonitorInterval = DefaultMonitorInterval
	}
	if p.MaxOutputBytes == 0 {
		p.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if p.CallStackSize == 0 {
		p.CallStackSize = DefaultCallStackSize
	}
	if p.ModuleAttributeAllowlist == nil {
		p.ModuleAttributeAllowlist = map[string][]string{}
	}

	p.ForbiddenCallNames = union(BuiltinForbiddenCallNames, p.ForbiddenCallNames)
	p.ForbiddenAttributeNames = union(BuiltinForbiddenAttributeNames, p.ForbiddenAttributeNames)
}

// Validate checks the policy is usable. It should be called after Defaults.
func (p SandboxPolicy) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %w", ErrNotValid)
	}
	if p.MemoryCeiling <= 0 {
		return fmt.Errorf("memory ceiling must be positive: %w", ErrNotValid)
	}
	if p.InstructionCeiling <= 0 {
		return fmt.Errorf("instruction ceiling must be positive: %w", ErrNotValid)
	}
	if p.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive: %w", ErrNotValid)
	}
	if p.MaxOutputBytes <= 0 {
		return fmt.Errorf("max output bytes must be positive: %w", ErrNotValid)
	}
	if p.CallStackSize <= 0 {
		return fmt.Errorf("call stack size must be positive: %w", ErrNotValid)
	}

	for _, m := range p.AllowedModules {
		if m == "" || strings.HasPrefix(m, "_") {
			return fmt.Errorf("module %q is not a valid module name: %w", m, ErrNotValid)
		}
	}

	for mod, attrs := range p.ModuleAttributeAllowlist {
		if !slices.Contains(p.AllowedModules, mod) {
			return fmt.Errorf("attribute allow list for module %q that is not allowed: %w", mod, ErrNotValid)
		}
		for _, a := range attrs {
			if strings.HasPrefix(a, "_") {
				return fmt.Errorf("private attribute %q can't be allowed on module %q: %w", a, mod, ErrNotValid)
			}
		}
	}

	for _, name := range BuiltinForbiddenCallNames {
		if !slices.Contains(p.ForbiddenCallNames, name) {
			return fmt.Errorf("builtin forbidden call %q missing: %w", name, ErrNotValid)
		}
	}
	for _, name := range BuiltinForbiddenAttributeNames {
		if !slices.Contains(p.ForbiddenAttributeNames, name) {
			return fmt.Errorf("builtin forbidden attribute %q missing: %w", name, ErrNotValid)
		}
	}

	for _, name := range p.Tools.Names() {
		if slices.Contains(p.ForbiddenCallNames, name) || slices.Contains(p.ForbiddenAttributeNames, name) {
			return fmt.Errorf("tool %q uses a forbidden name: %w", name, ErrNotValid)
		}
	}

	return nil
}

// Clone returns a deep copy of the policy. Tools are immutable so they are shared.
func (p SandboxPolicy) Clone() SandboxPolicy {
	c := p
	c.AllowedModules = slices.Clone(p.AllowedModules)
	c.ForbiddenCallNames = slices.Clone(p.ForbiddenCallNames)
	c.ForbiddenAttributeNames = slices.Clone(p.ForbiddenAttributeNames)
	if p.ModuleAttributeAllowlist != nil {
		c.ModuleAttributeAllowlist = make(map[string][]string, len(p.ModuleAttributeAllowlist))
		for k, v := range p.ModuleAttributeAllowlist {
			c.ModuleAttributeAllowlist[k] = slices.Clone(v)
		}
	}

	return c
}

func union(base, extra []string) []string {
	set := map[string]struct{}{}
	for _, s := range base {
		set[s] = struct{}{}
	}
	for _, s := range extra {
		set[s] = struct{}{}
	}

	return slices.Sorted(maps.Keys(set))
}
