package lua

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	glua "github.com/yuin/gopher-lua"

	"github.com/slok/luabox/internal/model"
)

// baseFuncs are the base library functions exposed as they are.
var baseFuncs = []string{
	"assert", "error", "ipairs", "pairs", "next", "select",
	"tonumber", "tostring", "type", "unpack", "pcall", "rawequal",
}

// environment builds and backs the global table of a single run.
// It is owned by the worker goroutine.
type environment struct {
	ctx       context.Context
	L         *glua.LState
	policy    model.SandboxPolicy
	matcher   *PolicyMatcher
	violation *violationFlag
	output    *outputBuffer
	modules   map[string]*glua.LTable
}

// newEnvironment returns a fresh table to be used as the globals of a program.
// Nothing from the state globals is reachable from it except the copied functions.
func newEnvironment(ctx context.Context, L *glua.LState, policy model.SandboxPolicy, m *PolicyMatcher, violation *violationFlag, output *outputBuffer) (*glua.LTable, error) {
	e := &environment{
		ctx:       ctx,
		L:         L,
		policy:    policy,
		matcher:   m,
		violation: violation,
		output:    output,
		modules:   map[string]*glua.LTable{},
	}

	if _, err := openLib(L, glua.BaseLibName, glua.OpenBase); err != nil {
		return nil, fmt.Errorf("could not open base library: %w", err)
	}

	env := L.NewTable()
	for _, name := range baseFuncs {
		fn := L.GetGlobal(name)
		if fn == glua.LNil {
			return nil, fmt.Errorf("missing base function %q", name)
		}
		env.RawSetString(name, fn)
	}

	env.RawSetString("print", L.NewFunction(e.print))
	env.RawSetString("rawget", L.NewFunction(e.rawget))
	env.RawSetString("rawset", L.NewFunction(e.rawset))
	env.RawSetString("rawdelete", L.NewFunction(e.rawdelete))
	env.RawSetString(requireFuncName, L.NewFunction(e.require))

	for _, name := range policy.Tools.Names() {
		tool, _ := policy.Tools.Get(name)
		env.RawSetString(name, L.NewFunction(e.tool(tool)))
	}

	// String method syntax ("abc":upper()) goes through the string metatable.
	L.SetMetatable(glua.LString(""), glua.LNil)
	if m.AllowModule(glua.StringLibName) {
		strMod, err := e.module(glua.StringLibName)
		if err != nil {
			return nil, err
		}
		mt := L.NewTable()
		mt.RawSetString("__index", strMod)
		L.SetMetatable(glua.LString(""), mt)
	}

	return env, nil
}

// raiseViolation records the violation so a protected call can't hide it, and
// raises it as an error to stop the program.
func (e *environment) raiseViolation(err error) {
	e.violation.Trip(err)
	e.L.RaiseError("%s", err.Error())
}

func (e *environment) print(L *glua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	e.output.WriteString(strings.Join(parts, "\t") + "\n")
	return 0
}

func (e *environment) checkKey(key glua.LValue) {
	name, ok := key.(glua.LString)
	if !ok {
		return
	}
	if e.matcher.ForbiddenAttribute(string(name)) {
		e.raiseViolation(newViolation(model.ViolationKindAttribute, string(name), 0, "access to %q is not allowed", string(name)))
	}
}

func (e *environment) rawget(L *glua.LState) int {
	tb := L.CheckTable(1)
	key := L.CheckAny(2)
	e.checkKey(key)
	L.Push(tb.RawGet(key))
	return 1
}

func (e *environment) rawset(L *glua.LState) int {
	tb := L.CheckTable(1)
	key := L.CheckAny(2)
	value := L.CheckAny(3)
	e.checkKey(key)
	tb.RawSet(key, value)
	L.Push(tb)
	return 1
}

func (e *environment) rawdelete(L *glua.LState) int {
	tb := L.CheckTable(1)
	key := L.CheckAny(2)
	e.checkKey(key)
	tb.RawSet(key, glua.LNil)
	return 0
}

// require is the only way to get a module: require("mod") returns the module and
// require("mod", "a", "b") returns the requested attributes.
func (e *environment) require(L *glua.LState) int {
	name := L.CheckString(1)
	if !e.matcher.AllowModule(name) {
		e.raiseViolation(newViolation(model.ViolationKindImport, name, 0, "module %q is not allowed", name))
	}

	mod, err := e.module(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}

	top := L.GetTop()
	if top == 1 {
		L.Push(mod)
		return 1
	}

	for i := 2; i <= top; i++ {
		attr := L.CheckString(i)
		if strings.HasPrefix(attr, "_") || !e.matcher.AllowModuleAttribute(name, attr) {
			e.raiseViolation(newViolation(model.ViolationKindImport, attr, 0, "name %q is not allowed from module %q", attr, name))
		}
		L.Push(mod.RawGetString(attr))
	}

	return top - 1
}

func (e *environment) tool(tool model.Tool) glua.LGFunction {
	return func(L *glua.LState) int {
		top := L.GetTop()
		args := make([]any, 0, top)
		for i := 1; i <= top; i++ {
			v, err := toGo(L.Get(i))
			if err != nil {
				L.ArgError(i, err.Error())
			}
			args = append(args, v)
		}

		res, err := tool.Call(e.ctx, args)
		if err != nil {
			L.RaiseError("%s: %s", tool.Name(), err.Error())
		}

		lv, err := toLua(L, res)
		if err != nil {
			L.RaiseError("%s: invalid result: %s", tool.Name(), err.Error())
		}
		L.Push(lv)
		return 1
	}
}

const truncatedSuffix = "\n... [output truncated]"

// outputBuffer captures the program output up to a byte limit.
// Excess data is discarded.
type outputBuffer struct {
	buf       bytes.Buffer
	remaining int
	truncated bool
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{remaining: limit}
}

func (o *outputBuffer) WriteString(s string) {
	if len(s) > o.remaining {
		s = s[:o.remaining]
		o.truncated = true
	}
	o.buf.WriteString(s)
	o.remaining -= len(s)
}

func (o *outputBuffer) String() string {
	if o.truncated {
		return o.buf.String() + truncatedSuffix
	}
	return o.buf.String()
}
