package lints

import (
	"fmt"

	"github.com/gnolang/moveaudit/internal/analysis/cfg"
	"github.com/gnolang/moveaudit/internal/analysis/lattice"
	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

var arithmeticOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}

var compoundArithmetic = map[string]bool{"+=": true, "-=": true, "*=": true, "/=": true}

// DetectUncheckedArithmetic runs a forward must-analysis of bounds checks
// over each function CFG and reports arithmetic with an integer binding
// operand that no check dominates.
//
// A check is an assert! condition, the condition of `if (c) abort`, or
// the condition of the if/while whose true branch contains the operation.
// Every identifier mentioned in a check counts as guarded.
func DetectUncheckedArithmetic(pass *Pass) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, m := range pass.modules(false) {
		for _, fn := range m.Functions() {
			if fn.Body == nil {
				continue
			}
			if err := pass.Err(); err != nil {
				return issues, err
			}
			issues = append(issues, arithmeticInFunc(pass, fn)...)
		}
	}
	return issues, nil
}

func arithmeticInFunc(pass *Pass, fn *ast.FunctionDef) []tt.Issue {
	ints := integerBindings(fn)
	if len(ints) == 0 {
		return nil
	}
	graph := cfg.FromFunc(fn)
	in := solveGuards(graph)

	blocks := graph.Blocks()
	graph.Sort(blocks)

	var issues []tt.Issue
	for _, stmt := range blocks {
		if stmt == graph.Entry || stmt == graph.Exit {
			continue
		}
		guards := in[stmt]
		if guards == nil {
			// unreachable
			continue
		}
		for _, op := range arithmeticIn(stmt) {
			names := unguarded(identNames(op.node), ints, guards)
			if len(names) == 0 {
				continue
			}
			issues = append(issues, pass.NewIssue(
				op.node.Range(),
				"Unchecked arithmetic",
				fmt.Sprintf("Arithmetic `%s` on %s in `%s` is not preceded by a bounds check. Move aborts on overflow, underflow and division by zero, so unchecked input can make the transaction fail.",
					op.op, quoteList(names), fn.Name),
				"Bound the operands with assert! before the operation, for example assert!(a <= MAX - b, E_OVERFLOW).",
			))
		}
	}
	return issues
}

type arithmeticOp struct {
	node ast.Node
	op   string
}

// arithmeticIn returns the outermost arithmetic expressions evaluated by
// stmt itself. Branch bodies are separate CFG nodes and are not included.
func arithmeticIn(stmt ast.Stmt) []arithmeticOp {
	var roots []ast.Node
	switch s := stmt.(type) {
	case *ast.IfStmt:
		if _, ok := abortGuard(s); ok {
			return nil
		}
		roots = append(roots, s.Cond)
	case *ast.WhileStmt:
		roots = append(roots, s.Cond)
	case *ast.ForStmt:
		roots = append(roots, s.Iter)
	case *ast.LoopStmt:
		return nil
	case *ast.AssignStmt:
		if compoundArithmetic[s.Op] {
			return []arithmeticOp{{node: s, op: s.Op}}
		}
		roots = append(roots, s.LHS, s.RHS)
	default:
		roots = append(roots, stmt)
	}

	var ops []arithmeticOp
	for _, root := range roots {
		ast.Inspect(root, func(n ast.Node) bool {
			if _, ok := isAssert(n); ok {
				return false
			}
			if b, ok := n.(*ast.BinaryExpr); ok && arithmeticOps[b.Op] {
				ops = append(ops, arithmeticOp{node: b, op: b.Op})
				return false
			}
			return true
		})
	}
	return ops
}

// integerBindings collects the parameters and locals of fn known to hold
// integers.
func integerBindings(fn *ast.FunctionDef) map[string]bool {
	ints := make(map[string]bool)
	for _, p := range fn.Params {
		if isIntegerType(p.Type) {
			ints[p.Name] = true
		}
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		let, ok := n.(*ast.LetStmt)
		if !ok || let.Pattern == nil || len(let.Pattern.Binds) != 1 {
			return true
		}
		name := let.Pattern.Binds[0].Name
		if isIntegerType(let.Type) || isIntegerExpr(let.Value, ints) {
			ints[name] = true
		}
		return true
	})
	return ints
}

func isIntegerExpr(x ast.Expr, ints map[string]bool) bool {
	switch e := ast.Unparen(x).(type) {
	case *ast.Literal:
		return e.Kind == ast.LitNumber
	case *ast.CastExpr:
		return isIntegerType(e.Type)
	case *ast.Ident:
		return ints[e.Name]
	case *ast.BinaryExpr:
		return arithmeticOps[e.Op] || e.Op == "%" || e.Op == "<<" || e.Op == ">>"
	}
	return false
}

// solveGuards computes the guard set holding on entry to every node.
func solveGuards(graph *cfg.CFG) map[ast.Stmt]lattice.GuardSet {
	in := make(map[ast.Stmt]lattice.GuardSet)
	out := make(map[ast.Stmt]lattice.GuardSet)
	worklist := []ast.Stmt{graph.Entry}
	inWorklist := map[ast.Stmt]bool{graph.Entry: true}

	for len(worklist) > 0 {
		stmt := worklist[0]
		worklist = worklist[1:]
		inWorklist[stmt] = false

		var newIn lattice.GuardSet
		if stmt == graph.Entry {
			newIn = lattice.GuardSet{}
		} else {
			for _, pred := range graph.Preds(stmt) {
				if out[pred] == nil {
					continue
				}
				newIn = lattice.Intersect(newIn, refineGuards(pred, stmt, out[pred]))
			}
		}
		in[stmt] = newIn

		newOut := transferGuards(stmt, newIn)
		if _, seen := out[stmt]; seen && lattice.GuardsEqual(newOut, out[stmt]) {
			continue
		}
		out[stmt] = newOut

		for _, succ := range graph.Succs(stmt) {
			if inWorklist[succ] {
				continue
			}
			worklist = append(worklist, succ)
			inWorklist[succ] = true
		}
	}
	return in
}

// transferGuards adds the identifiers checked by an assertion.
func transferGuards(stmt ast.Stmt, in lattice.GuardSet) lattice.GuardSet {
	if in == nil {
		return nil
	}
	if s, ok := stmt.(*ast.ExprStmt); ok {
		if cond, ok := isAssert(s.X); ok {
			return in.With(identNames(cond)...)
		}
	}
	return in
}

// refineGuards applies branch conditions on the edge pred -> succ.
func refineGuards(pred, succ ast.Stmt, out lattice.GuardSet) lattice.GuardSet {
	switch p := pred.(type) {
	case *ast.IfStmt:
		if cond, ok := abortGuard(p); ok {
			if !within(succ.Range(), p.Then.Range()) {
				return out.With(identNames(cond)...)
			}
			return out
		}
		if p.Then != nil && within(succ.Range(), p.Then.Range()) {
			return out.With(identNames(p.Cond)...)
		}
	case *ast.WhileStmt:
		if p.Body != nil && within(succ.Range(), p.Body.Range()) {
			return out.With(identNames(p.Cond)...)
		}
	}
	return out
}

// unguarded returns the integer bindings among names that no check covers.
func unguarded(names []string, ints map[string]bool, guards lattice.GuardSet) []string {
	var out []string
	for _, n := range names {
		if ints[n] && !guards[n] {
			out = append(out, n)
		}
	}
	return out
}
