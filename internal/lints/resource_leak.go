package lints

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gnolang/moveaudit/internal/analysis/cfg"
	"github.com/gnolang/moveaudit/internal/analysis/lattice"
	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// framework modules whose producer functions return linear values
var (
	producerModules = map[string]bool{
		"coin": true, "balance": true, "fungible_asset": true, "primary_fungible_store": true,
	}
	producerFuncs = map[string]bool{
		"withdraw": true, "mint": true, "split": true, "extract": true, "take": true,
		"zero": true, "from_balance": true, "into_balance": true, "extract_all": true,
	}
)

// binding is an owned resource value tracked through a function.
type binding struct {
	name     string
	typeName string
	decl     tt.Range
}

// DetectResourceLeak runs an ownership dataflow over each function CFG and
// reports resource values that are still owned when the function returns
// on some path.
//
// Tracked values are by-value parameters of resource type and locals
// created by packing a resource, by a local function returning one, by
// move_from or by a framework producer such as coin::withdraw. A value is
// released when it is returned, used as the block value, passed by value
// to a call, moved into another binding, unpacked or stored in a struct.
// Paths ending in abort are not considered.
func DetectResourceLeak(pass *Pass) ([]tt.Issue, error) {
	var issues []tt.Issue
	for _, m := range pass.modules(false) {
		resources := resourceTypes(m, pass.Options.LinearTypes)
		for _, fn := range m.Functions() {
			if fn.Body == nil || fn.Native {
				continue
			}
			if err := pass.Err(); err != nil {
				return issues, err
			}
			issues = append(issues, leaksInFunc(pass, m, fn, resources)...)
		}
	}
	return issues, nil
}

// resourceTypes returns the type names treated as linear: structs of m
// declared without drop, legacy resource structs and the configured
// framework types.
func resourceTypes(m *ast.Module, extra []string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range DefaultLinearTypes {
		set[t] = true
	}
	for _, t := range extra {
		set[t] = true
	}
	for _, s := range m.Structs() {
		if s.IsResource || !s.HasAbility("drop") {
			set[s.Name] = true
		}
	}
	return set
}

func isResourceType(t *ast.Type, resources map[string]bool) bool {
	return t != nil && !t.Ref && len(t.Elems) == 0 && resources[t.BaseName()]
}

func leaksInFunc(pass *Pass, m *ast.Module, fn *ast.FunctionDef, resources map[string]bool) []tt.Issue {
	tracked := make(map[string]*binding)
	var order []*binding
	track := func(name, typeName string, decl tt.Range) {
		if name == "" || name == "_" {
			return
		}
		if _, ok := tracked[name]; ok {
			return
		}
		b := &binding{name: name, typeName: typeName, decl: decl}
		tracked[name] = b
		order = append(order, b)
	}

	for _, p := range fn.Params {
		if isResourceType(p.Type, resources) {
			track(p.Name, p.Type.String(), p.Range())
		}
	}
	defs := make(map[*ast.LetStmt]string)
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		let, ok := n.(*ast.LetStmt)
		if !ok || let.Pattern == nil || len(let.Pattern.Binds) != 1 || let.Pattern.Unpack != nil {
			return true
		}
		bind := let.Pattern.Binds[0]
		if typeName, ok := createsResource(m, let, resources, tracked); ok {
			track(bind.Name, typeName, bind.Range())
			defs[let] = bind.Name
		}
		return true
	})
	if len(tracked) == 0 {
		return nil
	}

	graph := cfg.FromFunc(fn)
	exitState := solveOwnership(graph, fn, tracked, defs)

	var issues []tt.Issue
	for _, b := range order {
		if v := lattice.GetValue(exitState, b.name); v != lattice.Held && v != lattice.MaybeHeld {
			continue
		}
		issues = append(issues, pass.NewIssue(
			b.decl,
			"Resource leak",
			fmt.Sprintf("`%s` of resource type `%s` is not returned, stored or destroyed on every path through `%s`. Move rejects dropping linear values, so this path either fails to compile or relies on an ability the type should not have.",
				b.name, b.typeName, fn.Name),
			"Return the value, move it into global storage or a struct field, or destroy it explicitly on every path.",
		))
	}
	return issues
}

// createsResource reports whether let binds a new owned resource.
func createsResource(m *ast.Module, let *ast.LetStmt, resources map[string]bool, tracked map[string]*binding) (string, bool) {
	if isResourceType(let.Type, resources) {
		return let.Type.String(), true
	}
	if let.Value == nil {
		return "", false
	}
	switch x := ast.Unparen(let.Value).(type) {
	case *ast.PackExpr:
		if isResourceType(x.Type, resources) {
			return x.Type.String(), true
		}
	case *ast.Ident:
		if b, ok := tracked[x.Name]; ok {
			return b.typeName, true
		}
	case *ast.UnaryExpr:
		if id, ok := x.X.(*ast.Ident); ok && x.Op == "move" {
			if b, ok := tracked[id.Name]; ok {
				return b.typeName, true
			}
		}
	case *ast.CallExpr:
		if callee := localCallee(m, x); callee != nil {
			if isResourceType(callee.Return, resources) {
				return callee.Return.String(), true
			}
			return "", false
		}
		if x.FuncName() == "move_from" && len(x.TypeArgs) == 1 && isResourceType(x.TypeArgs[0], resources) {
			return x.TypeArgs[0].String(), true
		}
		if x.Receiver == nil && isProducer(x.FuncName()) {
			typeName := "Coin"
			if len(x.TypeArgs) > 0 {
				typeName = "Coin<" + x.TypeArgs[0].String() + ">"
			}
			return typeName, true
		}
	}
	return "", false
}

func isProducer(name string) bool {
	mod := ""
	if i := strings.LastIndex(name, "::"); i >= 0 {
		mod = ast.LastSegment(name[:i])
	}
	return producerModules[mod] && producerFuncs[ast.LastSegment(name)]
}

// solveOwnership runs the worklist analysis and returns the state on
// entry to Exit.
func solveOwnership(graph *cfg.CFG, fn *ast.FunctionDef, tracked map[string]*binding, defs map[*ast.LetStmt]string) lattice.AbstractState {
	initial := lattice.AbstractState{}
	for _, p := range fn.Params {
		if _, ok := tracked[p.Name]; ok {
			lattice.SetValue(initial, p.Name, lattice.Held)
		}
	}

	out := make(map[ast.Stmt]lattice.AbstractState)
	worklist := []ast.Stmt{graph.Entry}
	inWorklist := map[ast.Stmt]bool{graph.Entry: true}

	for len(worklist) > 0 {
		stmt := worklist[0]
		worklist = worklist[1:]
		inWorklist[stmt] = false

		var in lattice.AbstractState
		if stmt == graph.Entry {
			in = initial
		} else {
			for _, pred := range graph.Preds(stmt) {
				in = lattice.JoinStates(in, out[pred])
			}
		}
		if in == nil {
			continue
		}

		newOut := transferOwnership(graph, stmt, in, tracked, defs)
		if prev, seen := out[stmt]; seen && lattice.StateEqual(newOut, prev) {
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

	var exit lattice.AbstractState
	for _, pred := range graph.Preds(graph.Exit) {
		exit = lattice.JoinStates(exit, out[pred])
	}
	return exit
}

func transferOwnership(graph *cfg.CFG, stmt ast.Stmt, in lattice.AbstractState, tracked map[string]*binding, defs map[*ast.LetStmt]string) lattice.AbstractState {
	out := lattice.CloneState(in)
	for name := range in {
		if consumedBy(graph, stmt, name) {
			lattice.SetValue(out, name, lattice.Released)
		}
	}
	if let, ok := stmt.(*ast.LetStmt); ok {
		if name, ok := defs[let]; ok {
			lattice.SetValue(out, name, lattice.Held)
		}
	}
	return out
}

// consumedBy reports whether the node stmt releases the value bound to
// name.
func consumedBy(graph *cfg.CFG, stmt ast.Stmt, name string) bool {
	if x, ok := graph.Tail(stmt); ok {
		return consumedIn(x, name)
	}
	return stmtConsumes(stmt, name)
}

func stmtConsumes(stmt ast.Stmt, name string) bool {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		return s.Value != nil && consumedIn(s.Value, name)
	case *ast.AssignStmt:
		return consumedIn(s.RHS, name)
	case *ast.ReturnStmt:
		return s.Value != nil && consumedIn(s.Value, name)
	case *ast.ExprStmt:
		return nestedConsumes(s.X, name)
	case *ast.IfStmt:
		return nestedConsumes(s.Cond, name)
	case *ast.WhileStmt:
		return nestedConsumes(s.Cond, name)
	case *ast.ForStmt:
		return nestedConsumes(s.Iter, name)
	}
	return false
}

// consumedIn reports whether x, evaluated in a position that takes
// ownership, moves the value bound to name.
func consumedIn(x ast.Expr, name string) bool {
	switch e := x.(type) {
	case nil:
		return false
	case *ast.Ident:
		return e.Name == name
	case *ast.ParenExpr:
		return consumedIn(e.X, name)
	case *ast.UnaryExpr:
		if e.Op == "move" {
			return consumedIn(e.X, name)
		}
		return nestedConsumes(e.X, name)
	case *ast.TupleExpr:
		return slices.ContainsFunc(e.Elems, func(x ast.Expr) bool { return consumedIn(x, name) })
	case *ast.VectorLit:
		return slices.ContainsFunc(e.Elems, func(x ast.Expr) bool { return consumedIn(x, name) })
	case *ast.PackExpr:
		return slices.ContainsFunc(e.Fields, func(f *ast.FieldInit) bool { return consumedIn(f.Value, name) })
	case *ast.CallExpr:
		if consumedIn(e.Receiver, name) {
			return true
		}
		return slices.ContainsFunc(e.Args, func(x ast.Expr) bool { return consumedIn(x, name) })
	case *ast.IfExpr:
		// Both branches must release the value. A missing else keeps it.
		if nestedConsumes(e.Cond, name) {
			return true
		}
		return branchReleases(e.Then, name) && branchReleases(e.Else, name)
	case *ast.BlockExpr:
		return blockConsumes(e.Body, name)
	}
	return nestedConsumes(x, name)
}

// nestedConsumes looks for calls, packs and vectors under x that take
// ownership of name. Other operators only read their operands.
func nestedConsumes(x ast.Node, name string) bool {
	found := false
	ast.Inspect(x, func(n ast.Node) bool {
		if found {
			return false
		}
		switch e := n.(type) {
		case *ast.CallExpr, *ast.PackExpr, *ast.VectorLit, *ast.IfExpr, *ast.BlockExpr:
			if consumedIn(e.(ast.Expr), name) {
				found = true
			}
			return false
		case *ast.UnaryExpr:
			if e.Op == "move" && consumedIn(e, name) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// branchReleases reports whether every path through b consumes name or
// aborts.
func branchReleases(b *ast.Block, name string) bool {
	if b == nil {
		return false
	}
	aborts := slices.ContainsFunc(b.Stmts, func(s ast.Stmt) bool {
		_, ok := s.(*ast.AbortStmt)
		return ok
	})
	return aborts || blockConsumes(b, name)
}

func blockConsumes(b *ast.Block, name string) bool {
	if b == nil {
		return false
	}
	for _, s := range b.Stmts {
		if stmtConsumes(s, name) {
			return true
		}
		if ifs, ok := s.(*ast.IfStmt); ok && branchReleases(ifs.Then, name) && branchReleases(ifs.Else, name) {
			return true
		}
	}
	return consumedIn(b.Result, name)
}
