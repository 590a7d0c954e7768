package ast

import "context"

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		out = append(out, c)
	}
	addExpr := func(e Expr) {
		if e != nil {
			add(e)
		}
	}
	addBlock := func(b *Block) {
		if b != nil {
			add(b)
		}
	}

	switch n := n.(type) {
	case *File:
		for _, m := range n.Modules {
			add(m)
		}
	case *Module:
		for _, d := range n.Members {
			add(d)
		}
	case *ConstDecl:
		addExpr(n.Value)
	case *StructDef:
		for _, f := range n.Fields {
			add(f)
		}
	case *FunctionDef:
		for _, p := range n.Params {
			add(p)
		}
		addBlock(n.Body)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
		addExpr(n.Result)
	case *LetStmt:
		if n.Pattern != nil {
			add(n.Pattern)
		}
		addExpr(n.Value)
	case *Pattern:
		for _, b := range n.Binds {
			add(b)
		}
	case *AssignStmt:
		addExpr(n.LHS)
		addExpr(n.RHS)
	case *IfStmt:
		addExpr(n.Cond)
		addBlock(n.Then)
		addBlock(n.Else)
	case *WhileStmt:
		addExpr(n.Cond)
		addBlock(n.Body)
	case *LoopStmt:
		addBlock(n.Body)
	case *ForStmt:
		if n.Var != nil {
			add(n.Var)
		}
		addExpr(n.Iter)
		addBlock(n.Body)
	case *ReturnStmt:
		addExpr(n.Value)
	case *AbortStmt:
		addExpr(n.Code)
	case *ExprStmt:
		addExpr(n.X)
	case *BlockStmt:
		addBlock(n.Body)
	case *BinaryExpr:
		addExpr(n.X)
		addExpr(n.Y)
	case *UnaryExpr:
		addExpr(n.X)
	case *BorrowExpr:
		addExpr(n.X)
	case *FieldExpr:
		addExpr(n.X)
	case *IndexExpr:
		addExpr(n.X)
		addExpr(n.Index)
	case *CallExpr:
		addExpr(n.Receiver)
		if n.Fun != nil {
			add(n.Fun)
		}
		for _, a := range n.Args {
			addExpr(a)
		}
	case *MacroCall:
		for _, a := range n.Args {
			addExpr(a)
		}
	case *PackExpr:
		for _, f := range n.Fields {
			add(f)
		}
	case *FieldInit:
		addExpr(n.Value)
	case *CastExpr:
		addExpr(n.X)
	case *IfExpr:
		addExpr(n.Cond)
		addBlock(n.Then)
		addBlock(n.Else)
	case *BlockExpr:
		addBlock(n.Body)
	case *VectorLit:
		for _, e := range n.Elems {
			addExpr(e)
		}
	case *TupleExpr:
		for _, e := range n.Elems {
			addExpr(e)
		}
	case *ParenExpr:
		addExpr(n.X)
	}
	return out
}

// Inspect traverses the tree rooted at n in pre-order. If f returns false
// the children of the current node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// InspectContext is Inspect with cooperative cancellation: ctx is checked
// before every node and the walk stops with ctx.Err() once it is done.
func InspectContext(ctx context.Context, n Node, f func(Node) bool) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f(n) {
		return nil
	}
	for _, c := range Children(n) {
		if err := InspectContext(ctx, c, f); err != nil {
			return err
		}
	}
	return nil
}
