package lints

import (
	"strings"

	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

var integerTypes = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "u256": true,
}

// global storage operators
var (
	globalReads = map[string]bool{"borrow_global": true, "exists": true}
	globalMuts  = map[string]bool{"borrow_global_mut": true, "move_from": true, "move_to": true}
)

func isIntegerType(t *ast.Type) bool {
	return t != nil && len(t.Elems) == 0 && integerTypes[t.Path]
}

// callBase returns the last segment of the callee path.
func callBase(c *ast.CallExpr) string {
	return ast.LastSegment(c.FuncName())
}

func isGlobalRead(c *ast.CallExpr) bool {
	return c.Receiver == nil && globalReads[c.FuncName()]
}

func isGlobalMut(c *ast.CallExpr) bool {
	return c.Receiver == nil && globalMuts[c.FuncName()]
}

// isAssert reports whether n is an assert! style macro and returns its
// condition.
func isAssert(n ast.Node) (ast.Expr, bool) {
	m, ok := n.(*ast.MacroCall)
	if !ok || len(m.Args) == 0 {
		return nil, false
	}
	switch m.Name {
	case "assert", "assert_eq", "assert_ne":
		return m.Args[0], true
	}
	return nil, false
}

// abortGuard reports whether s has the shape `if (cond) abort e` and
// returns the condition.
func abortGuard(s *ast.IfStmt) (ast.Expr, bool) {
	if s == nil || s.Else != nil || s.Then == nil {
		return nil, false
	}
	if len(s.Then.Stmts) == 0 {
		return nil, false
	}
	if _, ok := s.Then.Stmts[0].(*ast.AbortStmt); !ok {
		return nil, false
	}
	return s.Cond, true
}

// localCallee resolves a call to a function declared in m.
func localCallee(m *ast.Module, c *ast.CallExpr) *ast.FunctionDef {
	if m == nil || c.Receiver != nil {
		return nil
	}
	name := c.FuncName()
	if i := strings.LastIndex(name, "::"); i >= 0 {
		prefix := name[:i]
		if prefix != "Self" && prefix != m.Name && prefix != m.Address+"::"+m.Name {
			return nil
		}
		name = name[i+2:]
	}
	return m.Function(name)
}

// isExternalCall reports whether c calls into another module.
func isExternalCall(m *ast.Module, c *ast.CallExpr) bool {
	if c.Receiver != nil || !strings.Contains(c.FuncName(), "::") {
		return false
	}
	return localCallee(m, c) == nil && !isGlobalMut(c) && !isGlobalRead(c)
}

// collectCalls returns the calls under n in pre-order.
func collectCalls(n ast.Node) []*ast.CallExpr {
	var calls []*ast.CallExpr
	ast.Inspect(n, func(n ast.Node) bool {
		if c, ok := n.(*ast.CallExpr); ok {
			calls = append(calls, c)
		}
		return true
	})
	return calls
}

// identNames returns the value identifiers under n, excluding callee
// names, in pre-order without duplicates.
func identNames(n ast.Node) []string {
	var names []string
	seen := make(map[string]bool)
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		ast.Inspect(n, func(n ast.Node) bool {
			switch x := n.(type) {
			case *ast.CallExpr:
				if x.Receiver != nil {
					visit(x.Receiver)
				}
				for _, a := range x.Args {
					visit(a)
				}
				return false
			case *ast.Ident:
				if !seen[x.Name] && !strings.Contains(x.Name, "::") {
					seen[x.Name] = true
					names = append(names, x.Name)
				}
			}
			return true
		})
	}
	visit(n)
	return names
}

// headerRange covers a function from its first token up to its body.
func headerRange(fn *ast.FunctionDef) tt.Range {
	r := fn.Range()
	if fn.Body != nil {
		r.End = fn.Body.Range().Start
	}
	return r
}

// within reports whether inner lies inside outer.
func within(inner, outer tt.Range) bool {
	return inner.Start.Offset >= outer.Start.Offset && inner.End.Offset <= outer.End.Offset
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}
