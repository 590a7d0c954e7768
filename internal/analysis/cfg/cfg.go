package cfg

import (
	"fmt"
	"io"
	"slices"

	"github.com/gnolang/moveaudit/internal/ast"
)

// CFG is a statement level control flow graph of one function.
type CFG struct {
	Entry ast.Stmt
	Exit  ast.Stmt

	nodes []ast.Stmt
	index map[ast.Stmt]int
	preds map[ast.Stmt][]ast.Stmt
	succs map[ast.Stmt][]ast.Stmt

	// tails maps statements synthesized for trailing block values back to
	// the expression they stand for.
	tails map[ast.Stmt]ast.Expr
}

type loopFrame struct {
	head   ast.Stmt
	breaks []ast.Stmt
}

type builder struct {
	g     *CFG
	loops []*loopFrame
}

// FromFunc builds the CFG of fn. Functions without a body (native or
// declaration only) yield a graph with a single Entry -> Exit edge.
func FromFunc(fn *ast.FunctionDef) *CFG {
	entry := &ast.BadStmt{}
	exit := &ast.BadStmt{}
	if fn != nil {
		entry.Rng.Start, entry.Rng.End = fn.Range().Start, fn.Range().Start
		exit.Rng.Start, exit.Rng.End = fn.Range().End, fn.Range().End
	}
	g := &CFG{
		Entry: entry,
		Exit:  exit,
		index: make(map[ast.Stmt]int),
		preds: make(map[ast.Stmt][]ast.Stmt),
		succs: make(map[ast.Stmt][]ast.Stmt),
		tails: make(map[ast.Stmt]ast.Expr),
	}
	g.add(entry)

	b := &builder{g: g}
	frontier := []ast.Stmt{entry}
	if fn != nil && fn.Body != nil {
		frontier = b.block(fn.Body, frontier)
	}
	g.add(exit)
	b.link(frontier, exit)
	return g
}

// Blocks returns every node of the graph in construction order, Entry
// first and Exit last.
func (g *CFG) Blocks() []ast.Stmt {
	return slices.Clone(g.nodes)
}

// Preds returns the predecessors of s.
func (g *CFG) Preds(s ast.Stmt) []ast.Stmt {
	return g.preds[s]
}

// Succs returns the successors of s.
func (g *CFG) Succs(s ast.Stmt) []ast.Stmt {
	return g.succs[s]
}

// Tail returns the block value expression a synthesized node stands for.
func (g *CFG) Tail(s ast.Stmt) (ast.Expr, bool) {
	x, ok := g.tails[s]
	return x, ok
}

// Sort orders stmts by source position, keeping Entry first and Exit last.
func (g *CFG) Sort(stmts []ast.Stmt) {
	rank := func(s ast.Stmt) int {
		switch s {
		case g.Entry:
			return 0
		case g.Exit:
			return 2
		}
		return 1
	}
	slices.SortStableFunc(stmts, func(a, b ast.Stmt) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		pa, pb := a.Range().Start, b.Range().Start
		if pa.Offset != pb.Offset {
			return pa.Offset - pb.Offset
		}
		return g.index[a] - g.index[b]
	})
}

// PrintDot renders the graph in DOT format. label supplies extra text for
// a node and may return "".
func (g *CFG) PrintDot(w io.Writer, label func(ast.Stmt) string) {
	fmt.Fprintf(w, "\ndigraph mgraph {\n\tmode=\"heir\";\n\tsplines=\"ortho\";\n\n")
	for _, from := range g.nodes {
		for _, to := range g.succs[from] {
			fmt.Fprintf(w, "\t%q -> %q\n", g.describe(from, label), g.describe(to, label))
		}
	}
	fmt.Fprintf(w, "}\n")
}

func (g *CFG) describe(s ast.Stmt, label func(ast.Stmt) string) string {
	switch s {
	case g.Entry:
		return "ENTRY"
	case g.Exit:
		return "EXIT"
	}
	var kind string
	switch s.(type) {
	case *ast.LetStmt:
		kind = "let"
	case *ast.AssignStmt:
		kind = "assignment"
	case *ast.IfStmt:
		kind = "if statement"
	case *ast.WhileStmt:
		kind = "while loop"
	case *ast.ForStmt:
		kind = "for loop"
	case *ast.LoopStmt:
		kind = "loop"
	case *ast.ReturnStmt:
		kind = "return"
	case *ast.AbortStmt:
		kind = "abort"
	case *ast.BreakStmt:
		kind = "break"
	case *ast.ContinueStmt:
		kind = "continue"
	case *ast.ExprStmt:
		kind = "expression"
		if _, ok := g.tails[s]; ok {
			kind = "value"
		}
	default:
		kind = "statement"
	}
	out := fmt.Sprintf("%s - line %d", kind, s.Range().Start.Line)
	if label != nil {
		if extra := label(s); extra != "" {
			out += " " + extra
		}
	}
	return out
}

func (g *CFG) add(s ast.Stmt) {
	if _, ok := g.index[s]; ok {
		return
	}
	g.index[s] = len(g.nodes)
	g.nodes = append(g.nodes, s)
}

func (g *CFG) edge(from, to ast.Stmt) {
	if slices.Contains(g.succs[from], to) {
		return
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

func (b *builder) link(from []ast.Stmt, to ast.Stmt) {
	for _, f := range from {
		b.g.edge(f, to)
	}
}

// node adds s and connects the current frontier to it.
func (b *builder) node(s ast.Stmt, frontier []ast.Stmt) {
	b.g.add(s)
	b.link(frontier, s)
}

// block threads frontier through the statements of blk and returns the
// nodes that fall through its end.
func (b *builder) block(blk *ast.Block, frontier []ast.Stmt) []ast.Stmt {
	if blk == nil {
		return frontier
	}
	for _, s := range blk.Stmts {
		frontier = b.stmt(s, frontier)
	}
	if blk.Result != nil {
		frontier = b.tail(blk.Result, frontier)
	}
	return frontier
}

// tail expands a block's trailing value. Conditional and block values
// are split into branches, anything else becomes a single value node.
func (b *builder) tail(x ast.Expr, frontier []ast.Stmt) []ast.Stmt {
	switch e := x.(type) {
	case *ast.IfExpr:
		s := &ast.IfStmt{Span: e.Span, Cond: e.Cond, Then: e.Then, Else: e.Else}
		return b.stmt(s, frontier)
	case *ast.BlockExpr:
		return b.block(e.Body, frontier)
	}
	s := &ast.ExprStmt{Span: ast.Span{Rng: x.Range()}, X: x}
	b.g.tails[s] = x
	b.node(s, frontier)
	return []ast.Stmt{s}
}

func (b *builder) stmt(s ast.Stmt, frontier []ast.Stmt) []ast.Stmt {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return b.block(s.Body, frontier)

	case *ast.IfStmt:
		b.node(s, frontier)
		out := b.block(s.Then, []ast.Stmt{s})
		if s.Else != nil {
			out = append(out, b.block(s.Else, []ast.Stmt{s})...)
		} else {
			out = append(out, s)
		}
		return out

	case *ast.WhileStmt:
		return b.loop(s, s.Body, frontier, true)
	case *ast.ForStmt:
		return b.loop(s, s.Body, frontier, true)
	case *ast.LoopStmt:
		return b.loop(s, s.Body, frontier, false)

	case *ast.ReturnStmt:
		b.node(s, frontier)
		b.pendingExit(s)
		return nil
	case *ast.AbortStmt:
		b.node(s, frontier)
		return nil
	case *ast.BreakStmt:
		b.node(s, frontier)
		if n := len(b.loops); n > 0 {
			b.loops[n-1].breaks = append(b.loops[n-1].breaks, s)
		}
		return nil
	case *ast.ContinueStmt:
		b.node(s, frontier)
		if n := len(b.loops); n > 0 {
			b.g.edge(s, b.loops[n-1].head)
		}
		return nil
	}

	b.node(s, frontier)
	return []ast.Stmt{s}
}

// loop builds while, for and loop statements. Conditional loops may exit
// from the head; `loop` only exits through break.
func (b *builder) loop(head ast.Stmt, body *ast.Block, frontier []ast.Stmt, conditional bool) []ast.Stmt {
	b.node(head, frontier)
	frame := &loopFrame{head: head}
	b.loops = append(b.loops, frame)
	b.link(b.block(body, []ast.Stmt{head}), head)
	b.loops = b.loops[:len(b.loops)-1]

	var out []ast.Stmt
	if conditional {
		out = append(out, head)
	}
	return append(out, frame.breaks...)
}

// pendingExit records a return edge. Exit is added to the node list when
// construction finishes so that it stays last.
func (b *builder) pendingExit(s ast.Stmt) {
	b.g.succs[s] = append(b.g.succs[s], b.g.Exit)
	b.g.preds[b.g.Exit] = append(b.g.preds[b.g.Exit], s)
}
