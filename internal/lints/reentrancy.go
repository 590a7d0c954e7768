package lints

import (
	"fmt"

	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// DetectReentrancy reports acquiring functions that read global state and
// then call a local function mutating global state, with no assert! or
// `if (...) abort` between the read and the call.
//
// A read is a borrow_global or exists, a call to a local acquiring function
// that only reads, or a call into another module whose result is bound.
func DetectReentrancy(pass *Pass) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, m := range pass.modules(false) {
		mut := newMutationIndex(m)
		for _, fn := range m.Functions() {
			if len(fn.Acquires) == 0 || fn.Body == nil {
				continue
			}
			found, err := reentrancyInFunc(pass, m, fn, mut)
			if err != nil {
				return issues, err
			}
			issues = append(issues, found...)
		}
	}
	return issues, nil
}

func reentrancyInFunc(pass *Pass, m *ast.Module, fn *ast.FunctionDef, mut *mutationIndex) ([]tt.Issue, error) {
	var (
		issues []tt.Issue
		read   ast.Node
	)
	markRead := func(n ast.Node) {
		if read == nil {
			read = n
		}
	}

	err := pass.Walk(fn.Body, func(n ast.Node) bool {
		if _, ok := isAssert(n); ok {
			read = nil
			return false
		}
		switch x := n.(type) {
		case *ast.IfStmt:
			if _, ok := abortGuard(x); ok {
				read = nil
				return false
			}
		case *ast.LetStmt:
			if x.Value != nil && boundExternalCall(m, x.Value) {
				markRead(x)
			}
		case *ast.AssignStmt:
			if boundExternalCall(m, x.RHS) {
				markRead(x)
			}
		case *ast.CallExpr:
			if isGlobalRead(x) {
				markRead(x)
				return true
			}
			callee := localCallee(m, x)
			if callee == nil || callee == fn || len(callee.Acquires) == 0 {
				return true
			}
			if !mut.mutates(callee) {
				markRead(x)
				return true
			}
			if read != nil {
				issues = append(issues, pass.NewIssue(
					x.Range(),
					"Potential reentrancy",
					fmt.Sprintf("`%s` reads global state at %s and then calls `%s`, which mutates global state, without checking the value it read in between.",
						fn.Name, read.Range().Start, callee.Name),
					"Validate the state that was read with assert! before calling functions that mutate global storage, or apply all mutations before interacting with other modules.",
				))
			}
		}
		return true
	})
	return issues, err
}

func boundExternalCall(m *ast.Module, x ast.Expr) bool {
	for _, c := range collectCalls(x) {
		if isExternalCall(m, c) {
			return true
		}
	}
	return false
}

// mutationIndex memoizes which functions of a module mutate global state,
// directly or through local calls.
type mutationIndex struct {
	module *ast.Module
	memo   map[*ast.FunctionDef]bool
}

func newMutationIndex(m *ast.Module) *mutationIndex {
	return &mutationIndex{module: m, memo: make(map[*ast.FunctionDef]bool)}
}

func (idx *mutationIndex) mutates(fn *ast.FunctionDef) bool {
	if v, ok := idx.memo[fn]; ok {
		return v
	}
	// cycles resolve to false
	idx.memo[fn] = false
	result := false
	if fn.Body != nil {
		for _, c := range collectCalls(fn.Body) {
			if isGlobalMut(c) {
				result = true
				break
			}
			if callee := localCallee(idx.module, c); callee != nil && callee != fn && idx.mutates(callee) {
				result = true
				break
			}
		}
	}
	idx.memo[fn] = result
	return result
}
