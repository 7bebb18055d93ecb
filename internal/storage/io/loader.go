package io

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/slok/luabox/internal/model"
)

// PolicyYAMLRepository loads sandbox policies from YAML files.
type PolicyYAMLRepository struct {
	fs    fs.FS
	tools model.ToolSet
}

// NewPolicyYAMLRepository creates a new YAML policy repository. The tools a policy
// enables are taken from the available tool set.
func NewPolicyYAMLRepository(filesystem fs.FS, available model.ToolSet) *PolicyYAMLRepository {
	return &PolicyYAMLRepository{fs: filesystem, tools: available}
}

// GetPolicy loads a policy from a YAML file and returns a validated domain model.
// Unset fields get the default policy values.
func (r *PolicyYAMLRepository) GetPolicy(ctx context.Context, path string) (model.SandboxPolicy, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.SandboxPolicy{}, fmt.Errorf("reading policy file: %w", err)
	}

	if ctx.Err() != nil {
		return model.SandboxPolicy{}, ctx.Err()
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.SandboxPolicy{}, fmt.Errorf("parsing YAML: %w", err)
	}

	p, err := cfg.toModel(r.tools)
	if err != nil {
		return model.SandboxPolicy{}, fmt.Errorf("invalid policy: %w", err)
	}

	p.Defaults()
	if err := p.Validate(); err != nil {
		return model.SandboxPolicy{}, fmt.Errorf("invalid policy: %w", err)
	}

	return p, nil
}

// PolicyConfig represents the YAML structure of a sandbox policy.
type PolicyConfig struct {
	Timeout            string `yaml:"timeout"`
	MemoryCeiling      string `yaml:"memory_ceiling"`
	InstructionCeiling int64  `yaml:"instruction_ceiling"`
	// AllowedModules replaces the default modules when set, an empty list allows none.
	AllowedModules           *[]string           `yaml:"allowed_modules"`
	ModuleAttributeAllowlist map[string][]string `yaml:"module_attribute_allowlist"`
	ForbiddenCallNames       []string            `yaml:"forbidden_call_names"`
	ForbiddenAttributeNames  []string            `yaml:"forbidden_attribute_names"`
	MonitorInterval          string              `yaml:"monitor_interval"`
	MaxOutput                string              `yaml:"max_output"`
	CallStackSize            int                 `yaml:"call_stack_size"`
	Tools                    []string            `yaml:"tools,omitempty"`
}

func (c PolicyConfig) toModel(available model.ToolSet) (model.SandboxPolicy, error) {
	p := model.DefaultSandboxPolicy()
	var err error

	if p.Timeout, err = parseDuration("timeout", c.Timeout, p.Timeout); err != nil {
		return p, err
	}
	if p.MonitorInterval, err = parseDuration("monitor_interval", c.MonitorInterval, p.MonitorInterval); err != nil {
		return p, err
	}
	if p.MemoryCeiling, err = parseBytes("memory_ceiling", c.MemoryCeiling, p.MemoryCeiling); err != nil {
		return p, err
	}
	maxOutput, err := parseBytes("max_output", c.MaxOutput, int64(p.MaxOutputBytes))
	if err != nil {
		return p, err
	}
	p.MaxOutputBytes = int(maxOutput)

	if c.InstructionCeiling < 0 {
		return p, fmt.Errorf("instruction_ceiling must be positive, got: %d", c.InstructionCeiling)
	}
	if c.InstructionCeiling > 0 {
		p.InstructionCeiling = c.InstructionCeiling
	}
	if c.CallStackSize < 0 {
		return p, fmt.Errorf("call_stack_size must be positive, got: %d", c.CallStackSize)
	}
	if c.CallStackSize > 0 {
		p.CallStackSize = c.CallStackSize
	}

	if c.AllowedModules != nil {
		p.AllowedModules = *c.AllowedModules
		// Default allow lists only make sense for the modules still allowed.
		for mod := range p.ModuleAttributeAllowlist {
			if !slices.Contains(p.AllowedModules, mod) {
				delete(p.ModuleAttributeAllowlist, mod)
			}
		}
	}
	for mod, attrs := range c.ModuleAttributeAllowlist {
		p.ModuleAttributeAllowlist[mod] = attrs
	}
	p.ForbiddenCallNames = append(p.ForbiddenCallNames, c.ForbiddenCallNames...)
	p.ForbiddenAttributeNames = append(p.ForbiddenAttributeNames, c.ForbiddenAttributeNames...)

	tools := make([]model.Tool, 0, len(c.Tools))
	for _, name := range c.Tools {
		t, ok := available.Get(name)
		if !ok {
			return p, fmt.Errorf("tool %q: %w", name, model.ErrNotFound)
		}
		tools = append(tools, t)
	}
	if p.Tools, err = model.NewToolSet(tools...); err != nil {
		return p, fmt.Errorf("tools: %w", err)
	}

	return p, nil
}

func parseDuration(field, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got: %s", field, v)
	}
	return d, nil
}

func parseBytes(field, v string, def int64) (int64, error) {
	if v == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s must be positive, got: %s", field, v)
	}
	return int64(n), nil
}

// MarshalPolicy returns the YAML representation of a policy, it can be loaded
// back with GetPolicy.
func MarshalPolicy(p model.SandboxPolicy) ([]byte, error) {
	modules := slices.Clone(p.AllowedModules)
	if modules == nil {
		modules = []string{}
	}

	cfg := PolicyConfig{
		Timeout:                  p.Timeout.String(),
		MemoryCeiling:            formatBytes(p.MemoryCeiling),
		InstructionCeiling:       p.InstructionCeiling,
		AllowedModules:           &modules,
		ModuleAttributeAllowlist: p.ModuleAttributeAllowlist,
		ForbiddenCallNames:       p.ForbiddenCallNames,
		ForbiddenAttributeNames:  p.ForbiddenAttributeNames,
		MonitorInterval:          p.MonitorInterval.String(),
		MaxOutput:                formatBytes(int64(p.MaxOutputBytes)),
		CallStackSize:            p.CallStackSize,
		Tools:                    p.Tools.Names(),
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not marshal policy: %w", err)
	}
	return data, nil
}

// formatBytes uses the human unit only when it doesn't lose precision.
func formatBytes(n int64) string {
	h := humanize.IBytes(uint64(n))
	if back, err := humanize.ParseBytes(h); err == nil && back == uint64(n) {
		return h
	}
	return strconv.FormatInt(n, 10)
}
