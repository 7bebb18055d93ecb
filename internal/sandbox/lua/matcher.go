package lua

import (
	"strings"

	"github.com/slok/luabox/internal/model"
)

// PolicyMatcher evaluates names used by a program against a sandbox policy.
type PolicyMatcher struct {
	forbiddenCalls map[string]struct{}
	forbiddenAttrs map[string]struct{}
	callPatterns   []string
	attrPatterns   []string
	modules        map[string]struct{}
	moduleAttrs    map[string]map[string]struct{}
}

// NewPolicyMatcher creates a policy matcher from a SandboxPolicy.
func NewPolicyMatcher(policy model.SandboxPolicy) *PolicyMatcher {
	m := &PolicyMatcher{
		forbiddenCalls: map[string]struct{}{},
		forbiddenAttrs: map[string]struct{}{},
		modules:        map[string]struct{}{},
		moduleAttrs:    map[string]map[string]struct{}{},
	}

	for _, n := range policy.ForbiddenCallNames {
		if isPattern(n) {
			m.callPatterns = append(m.callPatterns, n)
			continue
		}
		m.forbiddenCalls[n] = struct{}{}
	}
	for _, n := range policy.ForbiddenAttributeNames {
		if isPattern(n) {
			m.attrPatterns = append(m.attrPatterns, n)
			continue
		}
		m.forbiddenAttrs[n] = struct{}{}
	}
	for _, n := range policy.AllowedModules {
		m.modules[n] = struct{}{}
	}
	for mod, attrs := range policy.ModuleAttributeAllowlist {
		set := make(map[string]struct{}, len(attrs))
		for _, a := range attrs {
			set[a] = struct{}{}
		}
		m.moduleAttrs[mod] = set
	}

	return m
}

// ForbiddenCall returns true if the name can't be used as a call target.
func (m *PolicyMatcher) ForbiddenCall(name string) bool {
	if _, ok := m.forbiddenCalls[name]; ok {
		return true
	}
	return matchAny(m.callPatterns, name)
}

// ForbiddenAttribute returns true if the name can't be used as an attribute or global.
func (m *PolicyMatcher) ForbiddenAttribute(name string) bool {
	if _, ok := m.forbiddenAttrs[name]; ok {
		return true
	}
	return matchAny(m.attrPatterns, name)
}

// ForbiddenName returns true if the name is forbidden either as a call or as an attribute.
func (m *PolicyMatcher) ForbiddenName(name string) bool {
	return m.ForbiddenAttribute(name) || m.ForbiddenCall(name)
}

// AllowModule checks if a module can be required.
func (m *PolicyMatcher) AllowModule(name string) bool {
	_, ok := m.modules[name]
	return ok
}

// AllowModuleAttribute checks if a module attribute can be exposed to a program.
// Private (underscore prefixed) and forbidden names are never exposed.
func (m *PolicyMatcher) AllowModuleAttribute(module, attr string) bool {
	if !m.AllowModule(module) {
		return false
	}
	if attr == "" || strings.HasPrefix(attr, "_") || m.ForbiddenName(attr) {
		return false
	}

	allowed, ok := m.moduleAttrs[module]
	if !ok {
		return true
	}
	_, ok = allowed[attr]
	return ok
}

func isPattern(s string) bool { return strings.HasSuffix(s, "*") }

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchName(p, name) {
			return true
		}
	}
	return false
}

// matchName matches a name against a pattern.
// Supports exact match and wildcard suffix ("__*").
func matchName(pattern, name string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}

	return pattern == name
}
