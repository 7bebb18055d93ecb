package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/luabox/internal/model"
)

func TestPolicyMatcherNames(t *testing.T) {
	policy := model.DefaultSandboxPolicy()
	policy.ForbiddenCallNames = append(policy.ForbiddenCallNames, "danger_*")
	policy.ForbiddenAttributeNames = append(policy.ForbiddenAttributeNames, "secret")
	m := NewPolicyMatcher(policy)

	tests := map[string]struct {
		name         string
		expCall      bool
		expAttribute bool
	}{
		"A regular name should not be forbidden.": {
			name: "print",
		},
		"A builtin forbidden call should be forbidden as call.": {
			name:    "loadstring",
			expCall: true,
		},
		"A metamethod name should be forbidden as attribute.": {
			name:         "__index",
			expAttribute: true,
		},
		"The globals table should be forbidden as attribute.": {
			name:         "_G",
			expAttribute: true,
		},
		"A custom forbidden attribute should be forbidden.": {
			name:         "secret",
			expAttribute: true,
		},
		"A wildcard pattern should match the prefix.": {
			name:    "danger_zone",
			expCall: true,
		},
		"A wildcard pattern should not match other names.": {
			name: "dangerous",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(test.expCall, m.ForbiddenCall(test.name))
			assert.Equal(test.expAttribute, m.ForbiddenAttribute(test.name))
			assert.Equal(test.expCall || test.expAttribute, m.ForbiddenName(test.name))
		})
	}
}

func TestPolicyMatcherModules(t *testing.T) {
	m := NewPolicyMatcher(model.DefaultSandboxPolicy())

	tests := map[string]struct {
		module string
		attr   string
		expOk  bool
	}{
		"Allowed module without allow list should expose public attributes.": {
			module: "math",
			attr:   "floor",
			expOk:  true,
		},
		"Allowed module should not expose private attributes.": {
			module: "string",
			attr:   "__index",
			expOk:  false,
		},
		"Allowed module should not expose forbidden names.": {
			module: "string",
			attr:   "dump",
			expOk:  false,
		},
		"Allowed module with allow list should expose listed attributes.": {
			module: "os",
			attr:   "time",
			expOk:  true,
		},
		"Allowed module with allow list should not expose other attributes.": {
			module: "os",
			attr:   "getenv",
			expOk:  false,
		},
		"Not allowed module should not expose anything.": {
			module: "socket",
			attr:   "connect",
			expOk:  false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expOk, m.AllowModuleAttribute(test.module, test.attr))
		})
	}
}
