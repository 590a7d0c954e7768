package lints

import (
	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// DetectDivideBeforeMultiply reports products with a quotient operand,
// e.g. `(a / b) * c`. Integer division truncates, so multiplying its
// result loses precision that `(a * c) / b` keeps.
func DetectDivideBeforeMultiply(pass *Pass) ([]tt.Issue, error) {
	if pass.File == nil {
		return nil, nil
	}
	var issues []tt.Issue
	err := pass.Walk(pass.File, func(n ast.Node) bool {
		b, ok := n.(*ast.BinaryExpr)
		if !ok || b.Op != "*" {
			return true
		}
		if isQuotient(b.X) || isQuotient(b.Y) {
			issues = append(issues, pass.NewIssue(
				b.Range(),
				"Division before multiplication",
				"The result of an integer division is multiplied afterwards. The remainder discarded by the division is scaled up by the multiplication.",
				"Multiply first and divide last, and check the intermediate product for overflow.",
			))
		}
		return true
	})
	return issues, err
}

func isQuotient(x ast.Expr) bool {
	for {
		switch e := x.(type) {
		case *ast.ParenExpr:
			x = e.X
		case *ast.CastExpr:
			x = e.X
		case *ast.BinaryExpr:
			return e.Op == "/"
		default:
			return false
		}
	}
}
