package lua

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	glua "github.com/yuin/gopher-lua"

	"github.com/slok/luabox/internal/model"
)

// moduleCatalogue are the modules that a policy can allow.
var moduleCatalogue = map[string]glua.LGFunction{
	glua.MathLibName:   glua.OpenMath,
	glua.StringLibName: glua.OpenString,
	glua.TabLibName:    glua.OpenTable,
	glua.OsLibName:     glua.OpenOs,
}

// AvailableModules returns the names of the modules that can be allowed.
func AvailableModules() []string {
	return []string{glua.MathLibName, glua.StringLibName, glua.TabLibName, glua.OsLibName}
}

func openLib(L *glua.LState, name string, open glua.LGFunction) (*glua.LTable, error) {
	err := L.CallByParam(glua.P{
		Fn:      L.NewFunction(open),
		NRet:    1,
		Protect: true,
	}, glua.LString(name))
	if err != nil {
		return nil, err
	}

	lv := L.Get(-1)
	L.Pop(1)
	tb, ok := lv.(*glua.LTable)
	if !ok {
		return nil, fmt.Errorf("library %q is not a table", name)
	}
	return tb, nil
}

// module returns the filtered copy of a module, built once per run.
func (e *environment) module(name string) (*glua.LTable, error) {
	if mod, ok := e.modules[name]; ok {
		return mod, nil
	}

	open, ok := moduleCatalogue[name]
	if !ok {
		return nil, fmt.Errorf("module %q not found", name)
	}

	src, err := openLib(e.L, name, open)
	if err != nil {
		return nil, fmt.Errorf("could not open module %q: %w", name, err)
	}

	mod := e.L.NewTable()
	src.ForEach(func(k, v glua.LValue) {
		key, ok := k.(glua.LString)
		if !ok || !e.matcher.AllowModuleAttribute(name, string(key)) {
			return
		}
		mod.RawSetString(string(key), v)
	})

	switch name {
	case glua.StringLibName:
		if mod.RawGetString("rep") != glua.LNil {
			mod.RawSetString("rep", e.L.NewFunction(e.stringRep))
		}
		if format := mod.RawGetString("format"); format != glua.LNil {
			mod.RawSetString("format", e.L.NewFunction(e.stringFormat(format)))
		}
		if gsub := mod.RawGetString("gsub"); gsub != glua.LNil {
			mod.RawSetString("gsub", e.L.NewFunction(e.stringGsub(gsub)))
		}
	case glua.TabLibName:
		if concat := mod.RawGetString("concat"); concat != glua.LNil {
			mod.RawSetString("concat", e.L.NewFunction(e.tableConcat(concat)))
		}
	}

	e.modules[name] = mod
	return mod, nil
}

// checkMemory raises a memory violation when a string of size bytes would
// cross the memory ceiling.
func (e *environment) checkMemory(size int64) {
	if size > e.policy.MemoryCeiling {
		e.raiseViolation(&ResourceExceededError{
			Kind:     model.ResourceKindMemory,
			Observed: size,
			Limit:    e.policy.MemoryCeiling,
		})
	}
}

// stringRep refuses to build strings bigger than the memory ceiling.
func (e *environment) stringRep(L *glua.LState) int {
	s := L.CheckString(1)
	n := float64(L.CheckNumber(2))
	if n < 1 || len(s) == 0 {
		L.Push(glua.LString(""))
		return 1
	}

	if n > float64(e.policy.MemoryCeiling/int64(len(s))) {
		e.checkMemory(satMul(int64(len(s)), n))
	}

	L.Push(glua.LString(strings.Repeat(s, int(n))))
	return 1
}

// tableConcat sums the size of the pieces and separators before joining them.
func (e *environment) tableConcat(concat glua.LValue) glua.LGFunction {
	return func(L *glua.LState) int {
		tb := L.CheckTable(1)
		sep := int64(len(L.OptString(2, "")))
		i := L.OptInt(3, 1)
		j := L.OptInt(4, tb.Len())

		var size int64
	pieces:
		for k := i; k <= j; k++ {
			switch v := tb.RawGetInt(k).(type) {
			case glua.LString:
				size += int64(len(v))
			case glua.LNumber:
				size += int64(len(v.String()))
			default:
				// Invalid pieces are reported by concat itself.
				break pieces
			}
			if k < j {
				size += sep
			}
			e.checkMemory(size)
		}

		return callWrapped(L, concat)
	}
}

// stringGsub bounds the result of string.gsub. String replacements are checked
// with the worst case before running, table and function replacements are
// counted as they are produced.
func (e *environment) stringGsub(gsub glua.LValue) glua.LGFunction {
	return func(L *glua.LState) int {
		s := int64(len(L.CheckString(1)))
		matches := s + 1
		if n, ok := L.Get(4).(glua.LNumber); ok && n >= 0 && int64(n) < matches {
			matches = int64(n)
		}

		switch repl := L.Get(3).(type) {
		case glua.LString, glua.LNumber:
			r := repl.String()
			// Every capture reference can expand to a whole match.
			captures := int64(strings.Count(r, "%"))
			e.checkMemory(satAdd(s, satAdd(satMul(matches, float64(len(r))), satMul(captures, float64(s)))))
		case *glua.LTable:
			L.Replace(3, e.countedReplacement(s, func(L *glua.LState) glua.LValue {
				return L.GetTable(repl, L.Get(1))
			}))
		case *glua.LFunction:
			L.Replace(3, e.countedReplacement(s, func(L *glua.LState) glua.LValue {
				top := L.GetTop()
				L.Push(repl)
				for i := 1; i <= top; i++ {
					L.Push(L.Get(i))
				}
				L.Call(top, 1)
				v := L.Get(-1)
				L.Pop(1)
				return v
			}))
		}

		return callWrapped(L, gsub)
	}
}

// countedReplacement returns a gsub replacement function that adds the size of
// every produced replacement to the input size and stops at the memory ceiling.
func (e *environment) countedReplacement(inputSize int64, replace func(L *glua.LState) glua.LValue) *glua.LFunction {
	size := inputSize
	return e.L.NewFunction(func(L *glua.LState) int {
		v := replace(L)
		switch r := v.(type) {
		case glua.LString:
			size += int64(len(r))
		case glua.LNumber:
			size += int64(len(r.String()))
		}
		e.checkMemory(size)

		L.Push(v)
		return 1
	})
}

// callWrapped calls fn with the arguments of the current call and returns all
// its results.
func callWrapped(L *glua.LState, fn glua.LValue) int {
	top := L.GetTop()
	L.Push(fn)
	for i := 1; i <= top; i++ {
		L.Push(L.Get(i))
	}
	L.Call(top, glua.MultRet)
	return L.GetTop() - top
}

func satMul(a int64, b float64) int64 {
	v := float64(a) * b
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// formatDirective matches the flags, width and precision of a format directive.
var formatDirective = regexp.MustCompile(`%[-+ #0]*(\d*)(?:\.(\d*))?[a-zA-Z%]`)

// stringFormat wraps string.format to limit the width and precision to two digits.
func (e *environment) stringFormat(format glua.LValue) glua.LGFunction {
	return func(L *glua.LState) int {
		f := L.CheckString(1)
		for _, m := range formatDirective.FindAllStringSubmatch(f, -1) {
			if len(m[1]) > 2 || len(m[2]) > 2 {
				L.ArgError(1, "invalid format (width or precision too long)")
			}
		}

		return callWrapped(L, format)
	}
}
