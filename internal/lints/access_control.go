package lints

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// name segments that mark a function or field as privileged
var privilegedWords = map[string]bool{
	"admin": true, "owner": true, "fee": true, "fees": true, "pause": true,
	"unpause": true, "paused": true, "mint": true, "burn": true,
	"upgrade": true, "configurable": true, "config": true, "configure": true,
	"treasury": true, "authority": true,
}

// DetectMissingAccessControl reports exported functions that look
// privileged, by name or because they write a privileged field of global
// state, but never check the caller identity.
//
// The caller is considered checked when the function
//   - asserts on a comparison involving signer::address_of or
//     tx_context::sender, directly or through a local bound to it,
//   - calls a function of the same module that does so,
//   - calls an assert_* or only_* authority helper of another module, or
//   - takes a capability parameter (a type named *Cap or *Capability).
func DetectMissingAccessControl(pass *Pass) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, m := range pass.modules(true) {
		checks := newIdentityIndex(m)
		for _, fn := range m.Functions() {
			if !fn.IsExported() || fn.IsTest() || fn.Native || fn.Body == nil {
				continue
			}
			if err := pass.Err(); err != nil {
				return issues, err
			}
			reason, privileged := privilegeOf(fn, pass.Options.PrivilegedNames)
			if !privileged || hasCapabilityParam(fn) || checks.checked(fn) {
				continue
			}
			issues = append(issues, pass.NewIssue(
				pass.trimEnd(headerRange(fn)),
				"Missing access control",
				fmt.Sprintf("`%s` is callable by anyone and %s, but it never verifies that the caller is an authorized account.", fn.Name, reason),
				"Compare signer::address_of(account) against the stored admin address with assert!, or require a capability object that only the administrator holds.",
			))
		}
	}
	return issues, nil
}

// privilegeOf reports why fn counts as privileged.
func privilegeOf(fn *ast.FunctionDef, extra []string) (string, bool) {
	if isPrivilegedName(fn.Name, extra) {
		return "its name implies a privileged operation", true
	}
	if field, ok := writesPrivilegedField(fn); ok {
		return fmt.Sprintf("it writes the privileged field `%s` of global state", field), true
	}
	return "", false
}

func isPrivilegedName(name string, extra []string) bool {
	lower := strings.ToLower(name)
	if slices.Contains(extra, name) || slices.Contains(extra, lower) {
		return true
	}
	switch {
	case lower == "init", lower == "initialize", lower == "init_module":
		return true
	case strings.HasPrefix(lower, "init_"), strings.HasPrefix(lower, "initialize_"):
		return true
	case strings.HasPrefix(lower, "set_"):
		return true
	}
	for _, word := range strings.Split(lower, "_") {
		if privilegedWords[word] {
			return true
		}
	}
	return false
}

// writesPrivilegedField reports an assignment to a privileged field in a
// function that mutably borrows global state.
func writesPrivilegedField(fn *ast.FunctionDef) (string, bool) {
	mutBorrow := slices.ContainsFunc(collectCalls(fn.Body), func(c *ast.CallExpr) bool {
		return c.FuncName() == "borrow_global_mut"
	})
	if !mutBorrow {
		return "", false
	}
	var field string
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if field != "" {
			return false
		}
		as, ok := n.(*ast.AssignStmt)
		if !ok {
			return true
		}
		fe, ok := ast.Unparen(as.LHS).(*ast.FieldExpr)
		if !ok {
			return true
		}
		for _, word := range strings.Split(strings.ToLower(fe.Field), "_") {
			if privilegedWords[word] {
				field = fe.Field
				return false
			}
		}
		return true
	})
	return field, field != ""
}

func hasCapabilityParam(fn *ast.FunctionDef) bool {
	for _, p := range fn.Params {
		base := p.Type.BaseName()
		if strings.HasSuffix(base, "Cap") || strings.HasSuffix(base, "Capability") {
			return true
		}
	}
	return false
}

// identityIndex memoizes which functions of a module check the caller.
type identityIndex struct {
	module *ast.Module
	memo   map[*ast.FunctionDef]bool
}

func newIdentityIndex(m *ast.Module) *identityIndex {
	return &identityIndex{module: m, memo: make(map[*ast.FunctionDef]bool)}
}

func (idx *identityIndex) checked(fn *ast.FunctionDef) bool {
	if v, ok := idx.memo[fn]; ok {
		return v
	}
	idx.memo[fn] = false
	result := fn.Body != nil && idx.bodyChecks(fn)
	idx.memo[fn] = result
	return result
}

func (idx *identityIndex) bodyChecks(fn *ast.FunctionDef) bool {
	locals := identityLocals(fn.Body)
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if found {
			return false
		}
		if cond, ok := isAssert(n); ok {
			if comparesIdentity(cond, locals) {
				found = true
			}
			return false
		}
		switch x := n.(type) {
		case *ast.IfStmt:
			if cond, ok := abortGuard(x); ok && comparesIdentity(cond, locals) {
				found = true
				return false
			}
		case *ast.CallExpr:
			// Local helpers are trusted only for what their body checks.
			if callee := localCallee(idx.module, x); callee != nil {
				if callee != fn && idx.checked(callee) {
					found = true
					return false
				}
				return true
			}
			base := callBase(x)
			if strings.HasPrefix(base, "assert_") || strings.HasPrefix(base, "only_") {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// isIdentityCall reports a call yielding the caller address.
func isIdentityCall(c *ast.CallExpr) bool {
	name := c.FuncName()
	switch {
	case name == "signer::address_of", name == "address_of":
		return true
	case name == "tx_context::sender":
		return true
	case c.Receiver != nil && (name == "sender" || name == "address_of"):
		return true
	}
	return false
}

func containsIdentity(x ast.Node, locals map[string]bool) bool {
	found := false
	ast.Inspect(x, func(n ast.Node) bool {
		if found {
			return false
		}
		switch e := n.(type) {
		case *ast.CallExpr:
			if isIdentityCall(e) {
				found = true
			}
		case *ast.Ident:
			if locals[e.Name] {
				found = true
			}
		}
		return !found
	})
	return found
}

// comparesIdentity reports an == or != comparison with the caller
// identity on one side.
func comparesIdentity(cond ast.Expr, locals map[string]bool) bool {
	found := false
	ast.Inspect(cond, func(n ast.Node) bool {
		if found {
			return false
		}
		b, ok := n.(*ast.BinaryExpr)
		if ok && (b.Op == "==" || b.Op == "!=") {
			if containsIdentity(b.X, locals) || containsIdentity(b.Y, locals) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// identityLocals returns the names bound to the caller identity.
func identityLocals(body *ast.Block) map[string]bool {
	locals := make(map[string]bool)
	ast.Inspect(body, func(n ast.Node) bool {
		let, ok := n.(*ast.LetStmt)
		if !ok || let.Value == nil || let.Pattern == nil || len(let.Pattern.Binds) != 1 {
			return true
		}
		if containsIdentity(let.Value, locals) {
			locals[let.Pattern.Binds[0].Name] = true
		}
		return true
	})
	return locals
}
