package lua

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/slok/luabox/internal/model"
)

const requireFuncName = "require"

// suspensionModule and suspensionCalls are the cooperative suspension constructs.
// A run is a single straight-line worker so they are never allowed.
const suspensionModule = "coroutine"

var suspensionCalls = map[string]struct{}{
	"yield":  {},
	"resume": {},
	"wrap":   {},
}

// validateSyntax parses the source and checks every node of the tree against the policy.
// It stops on the first violation.
func validateSyntax(source, chunkName string, m *PolicyMatcher) ([]ast.Stmt, error) {
	chunk, err := parse.Parse(strings.NewReader(source), chunkName)
	if err != nil {
		return nil, newSyntaxError(err)
	}

	v := syntaxValidator{m: m}
	if err := v.stmts(chunk); err != nil {
		return nil, err
	}

	return chunk, nil
}

func newSyntaxError(err error) *SyntaxError {
	var perr *parse.Error
	if errors.As(err, &perr) {
		msg := perr.Message
		if perr.Token != "" {
			msg = fmt.Sprintf("%s near '%s'", perr.Message, perr.Token)
		}
		return &SyntaxError{Message: msg, Line: perr.Pos.Line}
	}

	return &SyntaxError{Message: err.Error()}
}

type syntaxValidator struct {
	m *PolicyMatcher
}

func (v syntaxValidator) stmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := v.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (v syntaxValidator) exprs(exprs []ast.Expr) error {
	for _, e := range exprs {
		if err := v.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (v syntaxValidator) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.AssignStmt:
		if err := v.exprs(s.Lhs); err != nil {
			return err
		}
		return v.exprs(s.Rhs)

	case *ast.LocalAssignStmt:
		return v.exprs(s.Exprs)

	case *ast.FuncCallStmt:
		return v.expr(s.Expr)

	case *ast.DoBlockStmt:
		return v.stmts(s.Stmts)

	case *ast.WhileStmt:
		if err := v.expr(s.Condition); err != nil {
			return err
		}
		return v.stmts(s.Stmts)

	case *ast.RepeatStmt:
		if err := v.stmts(s.Stmts); err != nil {
			return err
		}
		return v.expr(s.Condition)

	case *ast.IfStmt:
		if err := v.expr(s.Condition); err != nil {
			return err
		}
		if err := v.stmts(s.Then); err != nil {
			return err
		}
		return v.stmts(s.Else)

	case *ast.NumberForStmt:
		for _, e := range []ast.Expr{s.Init, s.Limit, s.Step} {
			if e == nil {
				continue
			}
			if err := v.expr(e); err != nil {
				return err
			}
		}
		return v.stmts(s.Stmts)

	case *ast.GenericForStmt:
		if err := v.exprs(s.Exprs); err != nil {
			return err
		}
		return v.stmts(s.Stmts)

	case *ast.FuncDefStmt:
		if s.Name != nil {
			if s.Name.Func != nil {
				if err := v.expr(s.Name.Func); err != nil {
					return err
				}
			}
			if s.Name.Receiver != nil {
				if err := v.expr(s.Name.Receiver); err != nil {
					return err
				}
			}
			if s.Name.Method != "" {
				if err := v.attribute(s.Name.Method, s.Line()); err != nil {
					return err
				}
			}
		}
		return v.expr(s.Func)

	case *ast.ReturnStmt:
		return v.exprs(s.Exprs)

	case *ast.BreakStmt:
		return nil
	}

	return v.nodeViolation(s)
}

func (v syntaxValidator) expr(e ast.Expr) error {
	if e == nil {
		return nil
	}

	switch e := e.(type) {
	case *ast.TrueExpr, *ast.FalseExpr, *ast.NilExpr, *ast.NumberExpr, *ast.StringExpr, *ast.Comma3Expr:
		return nil

	case *ast.IdentExpr:
		if e.Value == suspensionModule {
			return newViolation(model.ViolationKindSuspension, e.Value, e.Line(), "cooperative suspension (%s) is not allowed", e.Value)
		}
		// Globals are fields of the environment table.
		return v.attribute(e.Value, e.Line())

	case *ast.AttrGetExpr:
		if key, ok := e.Key.(*ast.StringExpr); ok {
			if err := v.attribute(key.Value, e.Line()); err != nil {
				return err
			}
		}
		if err := v.expr(e.Object); err != nil {
			return err
		}
		return v.expr(e.Key)

	case *ast.TableExpr:
		for _, f := range e.Fields {
			if f.Key != nil {
				if key, ok := f.Key.(*ast.StringExpr); ok {
					if err := v.attribute(key.Value, e.Line()); err != nil {
						return err
					}
				}
				if err := v.expr(f.Key); err != nil {
					return err
				}
			}
			if err := v.expr(f.Value); err != nil {
				return err
			}
		}
		return nil

	case *ast.FuncCallExpr:
		return v.call(e)

	case *ast.LogicalOpExpr:
		return v.exprs([]ast.Expr{e.Lhs, e.Rhs})
	case *ast.RelationalOpExpr:
		return v.exprs([]ast.Expr{e.Lhs, e.Rhs})
	case *ast.StringConcatOpExpr:
		return v.exprs([]ast.Expr{e.Lhs, e.Rhs})
	case *ast.ArithmeticOpExpr:
		return v.exprs([]ast.Expr{e.Lhs, e.Rhs})
	case *ast.UnaryMinusOpExpr:
		return v.expr(e.Expr)
	case *ast.UnaryNotOpExpr:
		return v.expr(e.Expr)
	case *ast.UnaryLenOpExpr:
		return v.expr(e.Expr)

	case *ast.FunctionExpr:
		return v.stmts(e.Stmts)
	}

	return v.nodeViolation(e)
}

func (v syntaxValidator) call(e *ast.FuncCallExpr) error {
	line := e.Line()

	// Method call form: recv:method(...).
	if e.Method != "" {
		if err := v.callName(e.Method, line); err != nil {
			return err
		}
		if err := v.attribute(e.Method, line); err != nil {
			return err
		}
		if err := v.expr(e.Receiver); err != nil {
			return err
		}
		return v.exprs(e.Args)
	}

	switch fn := e.Func.(type) {
	case *ast.IdentExpr:
		if fn.Value == requireFuncName {
			if err := v.require(e); err != nil {
				return err
			}
		}
		if err := v.callName(fn.Value, line); err != nil {
			return err
		}
	case *ast.AttrGetExpr:
		if key, ok := fn.Key.(*ast.StringExpr); ok {
			if err := v.callName(key.Value, line); err != nil {
				return err
			}
		}
	}

	if err := v.expr(e.Func); err != nil {
		return err
	}
	return v.exprs(e.Args)
}

func (v syntaxValidator) callName(name string, line int) error {
	if _, ok := suspensionCalls[name]; ok {
		return newViolation(model.ViolationKindSuspension, name, line, "cooperative suspension (%s) is not allowed", name)
	}
	if v.m.ForbiddenCall(name) {
		return newViolation(model.ViolationKindCall, name, line, "call to %q is not allowed", name)
	}
	return nil
}

func (v syntaxValidator) attribute(name string, line int) error {
	if v.m.ForbiddenAttribute(name) {
		return newViolation(model.ViolationKindAttribute, name, line, "access to %q is not allowed", name)
	}
	return nil
}

// require checks the import form: require("module", "name1", "name2"...).
func (v syntaxValidator) require(e *ast.FuncCallExpr) error {
	line := e.Line()
	if len(e.Args) == 0 {
		return newViolation(model.ViolationKindImport, "", line, "require needs a module name")
	}

	modExpr, ok := e.Args[0].(*ast.StringExpr)
	if !ok {
		return newViolation(model.ViolationKindImport, "", line, "require module name must be a string literal")
	}
	mod := modExpr.Value
	if !v.m.AllowModule(mod) {
		return newViolation(model.ViolationKindImport, mod, line, "module %q is not allowed", mod)
	}

	for _, arg := range e.Args[1:] {
		nameExpr, ok := arg.(*ast.StringExpr)
		if !ok {
			return newViolation(model.ViolationKindImport, mod, line, "names imported from module %q must be string literals", mod)
		}
		name := nameExpr.Value
		if strings.HasPrefix(name, "_") {
			return newViolation(model.ViolationKindImport, name, line, "private name %q can't be imported from module %q", name, mod)
		}
		if !v.m.AllowModuleAttribute(mod, name) {
			return newViolation(model.ViolationKindImport, name, line, "name %q is not allowed from module %q", name, mod)
		}
	}

	return nil
}

func (v syntaxValidator) nodeViolation(n ast.PositionHolder) error {
	kind := strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
	return newViolation(model.ViolationKindNode, kind, n.Line(), "%s is not allowed", kind)
}
