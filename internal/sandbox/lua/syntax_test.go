package lua

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/luabox/internal/model"
)

func TestValidateSyntax(t *testing.T) {
	tests := map[string]struct {
		source  string
		expErr  bool
		expKind model.ViolationKind
		expName string
		expLine int
		expSyn  bool
	}{
		"Benign code should be valid.": {
			source: `
local t = {1, 2, 3}
local sum = 0
for i, v in ipairs(t) do
  sum = sum + v
end
for i = 1, 10, 2 do sum = sum + i end
while sum > 100 do sum = sum - 1 end
repeat sum = sum + 1 until sum > 10
if sum > 5 then print("big") elseif sum > 2 then print("mid") else print("small") end
local function f(a, ...) return a, ... end
local obj = {name = "x"}
function obj.get(self) return self.name end
function obj:upper() return self.name end
print(f(1, 2), #t, not true, -sum, "a" .. "b", obj:get())
do local x = nil end
`,
		},

		"A parse error should be a syntax error.": {
			source:  "local = 1",
			expErr:  true,
			expSyn:  true,
			expLine: 1,
		},

		"Goto should be rejected.": {
			source:  "goto done\n::done::",
			expErr:  true,
			expKind: model.ViolationKindNode,
		},

		"A forbidden metamethod attribute should be rejected.": {
			source:  "local x = {}\nlocal y = x.__index",
			expErr:  true,
			expKind: model.ViolationKindAttribute,
			expName: "__index",
			expLine: 2,
		},

		"A forbidden attribute with subscript syntax should be rejected.": {
			source:  `local x = {} local y = x["__newindex"]`,
			expErr:  true,
			expKind: model.ViolationKindAttribute,
			expName: "__newindex",
		},

		"A forbidden attribute in a table constructor should be rejected.": {
			source:  `local x = {__gc = 1}`,
			expErr:  true,
			expKind: model.ViolationKindAttribute,
			expName: "__gc",
		},

		"The globals table should be rejected.": {
			source:  `print(_G)`,
			expErr:  true,
			expKind: model.ViolationKindAttribute,
			expName: "_G",
		},

		"A forbidden function call should be rejected.": {
			source:  `getmetatable("")`,
			expErr:  true,
			expKind: model.ViolationKindCall,
			expName: "getmetatable",
		},

		"A forbidden dynamic compilation call should be rejected.": {
			source:  `local f = loadstring("return 1")`,
			expErr:  true,
			expKind: model.ViolationKindCall,
			expName: "loadstring",
		},

		"A forbidden method call should be rejected.": {
			source:  `local f = {} f:read()`,
			expErr:  true,
			expKind: model.ViolationKindCall,
			expName: "read",
		},

		"A forbidden attribute call should be rejected.": {
			source:  `local x = string.dump(print)`,
			expErr:  true,
			expKind: model.ViolationKindCall,
			expName: "dump",
		},

		"A forbidden call inside a function should be rejected.": {
			source:  "local function f()\n  return dofile('x')\nend",
			expErr:  true,
			expKind: model.ViolationKindCall,
			expName: "dofile",
			expLine: 2,
		},

		"A coroutine reference should be rejected.": {
			source:  `local co = coroutine.create(function() end)`,
			expErr:  true,
			expKind: model.ViolationKindSuspension,
			expName: "coroutine",
		},

		"A yield call should be rejected.": {
			source:  `local t = {} t.yield()`,
			expErr:  true,
			expKind: model.ViolationKindSuspension,
			expName: "yield",
		},

		"Requiring an allowed module should be valid.": {
			source: `local m = require("math") local floor, max = require("math", "floor", "max")`,
		},

		"Requiring a not allowed module should be rejected.": {
			source:  `local socket = require("socket")`,
			expErr:  true,
			expKind: model.ViolationKindImport,
			expName: "socket",
		},

		"Requiring with a non literal module should be rejected.": {
			source:  `local n = "math" local m = require(n)`,
			expErr:  true,
			expKind: model.ViolationKindImport,
		},

		"Importing a not allowed attribute should be rejected.": {
			source:  `local getenv = require("os", "getenv")`,
			expErr:  true,
			expKind: model.ViolationKindImport,
			expName: "getenv",
		},

		"Importing a private attribute should be rejected.": {
			source:  `local x = require("string", "_secret")`,
			expErr:  true,
			expKind: model.ViolationKindImport,
			expName: "_secret",
		},

		"Importing an allowed attribute of a restricted module should be valid.": {
			source: `local time = require("os", "time")`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			m := NewPolicyMatcher(model.DefaultSandboxPolicy())
			chunk, err := validateSyntax(test.source, "test", m)

			if !test.expErr {
				assert.NoError(err)
				assert.NotEmpty(chunk)
				return
			}

			assert.Error(err)
			if test.expSyn {
				var synErr *SyntaxError
				if assert.True(errors.As(err, &synErr)) {
					assert.Equal(test.expLine, synErr.Line)
				}
				return
			}

			var polErr *PolicyViolationError
			if assert.True(errors.As(err, &polErr)) {
				assert.Equal(test.expKind, polErr.Kind)
				if test.expName != "" {
					assert.Equal(test.expName, polErr.Name)
				}
				if test.expLine != 0 {
					assert.Equal(test.expLine, polErr.Line)
				}
			}
		})
	}
}
