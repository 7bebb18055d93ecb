package lua

import (
	"fmt"
	"reflect"
	"strconv"

	glua "github.com/yuin/gopher-lua"
)

const maxConvertDepth = 32

// toGo converts a Lua value into a plain Go value: nil, bool, float64, string,
// []any (sequences) or map[string]any.
func toGo(lv glua.LValue) (any, error) {
	return toGoDepth(lv, 0)
}

func toGoDepth(lv glua.LValue, depth int) (any, error) {
	if depth > maxConvertDepth {
		return nil, fmt.Errorf("value nested too deep")
	}

	switch v := lv.(type) {
	case *glua.LNilType:
		return nil, nil
	case glua.LBool:
		return bool(v), nil
	case glua.LNumber:
		return float64(v), nil
	case glua.LString:
		return string(v), nil
	case *glua.LTable:
		return tableToGo(v, depth)
	}

	return nil, fmt.Errorf("unsupported %s value", lv.Type().String())
}

func tableToGo(tb *glua.LTable, depth int) (any, error) {
	n := tb.Len()
	count := 0
	tb.ForEach(func(_, _ glua.LValue) { count++ })

	// Sequence.
	if n > 0 && n == count {
		s := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			v, err := toGoDepth(tb.RawGetInt(i), depth+1)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	}

	m := make(map[string]any, count)
	var err error
	tb.ForEach(func(k, v glua.LValue) {
		if err != nil {
			return
		}
		var key string
		switch k := k.(type) {
		case glua.LString:
			key = string(k)
		case glua.LNumber:
			key = k.String()
		default:
			err = fmt.Errorf("unsupported %s table key", k.Type().String())
			return
		}
		var gv any
		gv, err = toGoDepth(v, depth+1)
		m[key] = gv
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// toLua converts a Go value into a Lua value. Slices become sequences and maps
// with string keys become tables.
func toLua(L *glua.LState, v any) (glua.LValue, error) {
	return toLuaDepth(L, v, 0)
}

func toLuaDepth(L *glua.LState, v any, depth int) (glua.LValue, error) {
	if depth > maxConvertDepth {
		return nil, fmt.Errorf("value nested too deep")
	}

	switch v := v.(type) {
	case nil:
		return glua.LNil, nil
	case glua.LValue:
		return v, nil
	case bool:
		return glua.LBool(v), nil
	case string:
		return glua.LString(v), nil
	case []byte:
		return glua.LString(string(v)), nil
	case float64:
		return glua.LNumber(v), nil
	case int:
		return glua.LNumber(v), nil
	case int64:
		return glua.LNumber(v), nil
	case uint64:
		return glua.LNumber(v), nil
	case fmt.Stringer:
		return glua.LString(v.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return glua.LNumber(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return glua.LNumber(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return glua.LNumber(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		tb := L.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			lv, err := toLuaDepth(L, rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			tb.RawSetInt(i+1, lv)
		}
		return tb, nil
	case reflect.Map:
		tb := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			var key string
			switch k := iter.Key(); k.Kind() {
			case reflect.String:
				key = k.String()
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				key = strconv.FormatInt(k.Int(), 10)
			default:
				return nil, fmt.Errorf("unsupported map key type %s", k.Type())
			}
			lv, err := toLuaDepth(L, iter.Value().Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			tb.RawSetString(key, lv)
		}
		return tb, nil
	}

	return nil, fmt.Errorf("unsupported type %T", v)
}
