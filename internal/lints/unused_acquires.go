package lints

import (
	"fmt"

	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

var acquiringOps = map[string]bool{"borrow_global": true, "borrow_global_mut": true, "move_from": true}

// DetectUnusedAcquires reports `acquires R` annotations whose function never
// borrows or moves R from global storage, neither directly nor through a
// local function that acquires R.
func DetectUnusedAcquires(pass *Pass) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, m := range pass.modules(false) {
		for _, fn := range m.Functions() {
			if len(fn.Acquires) == 0 || fn.Body == nil {
				continue
			}
			used := make(map[string]bool)
			err := pass.Walk(fn.Body, func(n ast.Node) bool {
				c, ok := n.(*ast.CallExpr)
				if !ok || c.Receiver != nil {
					return true
				}
				if acquiringOps[c.FuncName()] && len(c.TypeArgs) > 0 {
					used[c.TypeArgs[0].BaseName()] = true
				}
				if callee := localCallee(m, c); callee != nil && callee != fn {
					for _, r := range callee.Acquires {
						used[r] = true
					}
				}
				return true
			})
			if err != nil {
				return issues, err
			}
			for _, r := range fn.Acquires {
				if used[r] {
					continue
				}
				issues = append(issues, pass.NewIssue(
					pass.trimEnd(headerRange(fn)),
					"Unused acquires annotation",
					fmt.Sprintf("`%s` declares `acquires %s` but never accesses `%s` in global storage.", fn.Name, r, r),
					fmt.Sprintf("Remove `%s` from the acquires list.", r),
				))
			}
		}
	}
	return issues, nil
}
