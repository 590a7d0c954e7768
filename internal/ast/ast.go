// Package ast declares the syntax tree of a Move source file.
//
// Every node records the source range it was parsed from so that findings
// can point back at the code. Children are owned by exactly one parent and
// the tree never contains cycles.
package ast

import (
	"strings"

	"github.com/gnolang/moveaudit/internal/lexer"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Range() tt.Range
}

// Decl is a module member.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// Span is embedded by every node to record its source range.
type Span struct {
	Rng tt.Range
}

func (s Span) Range() tt.Range { return s.Rng }

// ----------------------------------------------------------------------------
// Files and declarations

// File is the root of a parsed source file. It may hold several modules
// when they are wrapped in an address block.
type File struct {
	Span
	Modules  []*Module
	Comments []lexer.Comment
}

// Module is a `module` or `script` block.
type Module struct {
	Span
	Address  string
	Name     string
	IsScript bool
	Members  []Decl
}

// Functions returns the function definitions in declaration order.
func (m *Module) Functions() []*FunctionDef {
	var out []*FunctionDef
	for _, d := range m.Members {
		if fn, ok := d.(*FunctionDef); ok {
			out = append(out, fn)
		}
	}
	return out
}

// Structs returns the struct definitions in declaration order.
func (m *Module) Structs() []*StructDef {
	var out []*StructDef
	for _, d := range m.Members {
		if s, ok := d.(*StructDef); ok {
			out = append(out, s)
		}
	}
	return out
}

// Function looks a function up by name.
func (m *Module) Function(name string) *FunctionDef {
	for _, fn := range m.Functions() {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// UseDecl is `use addr::module::{Self, Member as Alias};`.
type UseDecl struct {
	Span
	Path    string
	Alias   string
	Members []UseMember
}

// UseMember is one imported name of a use declaration.
type UseMember struct {
	Name  string
	Alias string
}

// FriendDecl is `friend addr::module;`.
type FriendDecl struct {
	Span
	Path string
}

// ConstDecl is `const NAME: T = value;`.
type ConstDecl struct {
	Span
	Name  string
	Type  *Type
	Value Expr
}

// StructDef is a struct declaration, including the legacy `resource struct`
// form.
type StructDef struct {
	Span
	Name       string
	TypeParams []*TypeParam
	Abilities  []string
	IsResource bool
	Fields     []*Field
	Native     bool
}

// HasAbility reports whether the struct declares the ability.
func (s *StructDef) HasAbility(ability string) bool {
	for _, a := range s.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}

// Field is a struct field declaration.
type Field struct {
	Span
	Name string
	Type *Type
}

// TypeParam is a generic parameter such as `T: store + drop`.
type TypeParam struct {
	Span
	Name        string
	Phantom     bool
	Constraints []string
}

// FunctionDef is a function declaration. Body is nil for native functions.
type FunctionDef struct {
	Span
	Name       string
	Visibility string // "", "public", "public(friend)", "public(package)", "public(script)"
	Entry      bool
	Native     bool
	Inline     bool
	TypeParams []*TypeParam
	Params     []*Param
	Return     *Type
	Acquires   []string
	Attributes []string
	Body       *Block
}

// IsTest reports whether the function only exists for unit tests.
func (f *FunctionDef) IsTest() bool {
	for _, a := range f.Attributes {
		if a == "test" || a == "test_only" || a == "expected_failure" {
			return true
		}
	}
	return false
}

// IsExported reports whether the function can be called from outside its
// module or by a transaction.
func (f *FunctionDef) IsExported() bool {
	return f.Visibility == "public" || f.Visibility == "public(script)" || f.Entry
}

// Param is a function parameter.
type Param struct {
	Span
	Name string
	Type *Type
}

// Type is a type annotation. Tuple types use Elems and leave Path empty.
type Type struct {
	Span
	Path  string
	Args  []*Type
	Ref   bool
	Mut   bool
	Elems []*Type
}

// BaseName returns the last path segment, e.g. "Coin" for "coin::Coin".
func (t *Type) BaseName() string {
	if t == nil {
		return ""
	}
	return LastSegment(t.Path)
}

func (t *Type) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	if t.Ref {
		b.WriteString("&")
		if t.Mut {
			b.WriteString("mut ")
		}
	}
	if t.Path == "" {
		b.WriteString("(")
		for i, e := range t.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.String())
		}
		b.WriteString(")")
		return b.String()
	}
	b.WriteString(t.Path)
	if len(t.Args) > 0 {
		b.WriteString("<")
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteString(">")
	}
	return b.String()
}

// LastSegment returns the part of a `::` separated path after the last
// separator.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

func (*UseDecl) declNode()     {}
func (*FriendDecl) declNode()  {}
func (*ConstDecl) declNode()   {}
func (*StructDef) declNode()   {}
func (*FunctionDef) declNode() {}

// ----------------------------------------------------------------------------
// Statements

// Block is a brace-delimited sequence of statements with an optional
// trailing expression that yields the block's value.
type Block struct {
	Span
	Stmts  []Stmt
	Result Expr
}

// Pattern is the left side of a let binding.
type Pattern struct {
	Span
	Binds  []*Ident
	Unpack *Type // set when the pattern destructures a struct
}

type (
	// LetStmt is `let pattern: T = value;`.
	LetStmt struct {
		Span
		Pattern *Pattern
		Type    *Type
		Value   Expr
	}

	// AssignStmt is `lhs op rhs;` where op is `=` or a compound operator.
	AssignStmt struct {
		Span
		LHS Expr
		Op  string
		RHS Expr
	}

	// IfStmt is a conditional. An `else if` chain is stored as an Else
	// block holding a single IfStmt.
	IfStmt struct {
		Span
		Cond Expr
		Then *Block
		Else *Block
	}

	WhileStmt struct {
		Span
		Cond Expr
		Body *Block
	}

	LoopStmt struct {
		Span
		Body *Block
	}

	// ForStmt is `for (v in iter) body`.
	ForStmt struct {
		Span
		Var  *Ident
		Iter Expr
		Body *Block
	}

	ReturnStmt struct {
		Span
		Value Expr
	}

	AbortStmt struct {
		Span
		Code Expr
	}

	BreakStmt struct {
		Span
	}

	ContinueStmt struct {
		Span
	}

	// ExprStmt is an expression evaluated for its effect, usually a call.
	ExprStmt struct {
		Span
		X Expr
	}

	BlockStmt struct {
		Span
		Body *Block
	}

	// BadStmt marks a statement that failed to parse.
	BadStmt struct {
		Span
	}
)

func (*LetStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*LoopStmt) stmtNode()     {}
func (*ForStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*AbortStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ExprStmt) stmtNode()     {}
func (*BlockStmt) stmtNode()    {}
func (*BadStmt) stmtNode()      {}

// ----------------------------------------------------------------------------
// Expressions

// LitKind classifies literals.
type LitKind int

const (
	LitNumber LitKind = iota
	LitBool
	LitAddress
	LitBytes
)

type (
	// Ident is a name or a `::` qualified path.
	Ident struct {
		Span
		Name string
	}

	Literal struct {
		Span
		Kind  LitKind
		Value string
	}

	BinaryExpr struct {
		Span
		Op string
		X  Expr
		Y  Expr
	}

	// UnaryExpr covers `!`, `-`, dereference `*`, `move` and `copy`.
	UnaryExpr struct {
		Span
		Op string
		X  Expr
	}

	// BorrowExpr is `&x` or `&mut x`.
	BorrowExpr struct {
		Span
		Mut bool
		X   Expr
	}

	FieldExpr struct {
		Span
		X     Expr
		Field string
	}

	IndexExpr struct {
		Span
		X     Expr
		Index Expr
	}

	// CallExpr is `path<T>(args)` or the receiver form `x.f(args)`.
	CallExpr struct {
		Span
		Receiver Expr
		Fun      *Ident
		TypeArgs []*Type
		Args     []Expr
	}

	// MacroCall is `name!(args)`, e.g. assert!.
	MacroCall struct {
		Span
		Name string
		Args []Expr
	}

	// PackExpr constructs a struct value: `S { f: v }`.
	PackExpr struct {
		Span
		Type   *Type
		Fields []*FieldInit
	}

	CastExpr struct {
		Span
		X    Expr
		Type *Type
	}

	IfExpr struct {
		Span
		Cond Expr
		Then *Block
		Else *Block
	}

	BlockExpr struct {
		Span
		Body *Block
	}

	VectorLit struct {
		Span
		Type  *Type
		Elems []Expr
	}

	// TupleExpr is `(a, b)`; the unit value `()` has no elements.
	TupleExpr struct {
		Span
		Elems []Expr
	}

	ParenExpr struct {
		Span
		X Expr
	}

	// BadExpr marks an expression that failed to parse.
	BadExpr struct {
		Span
	}
)

// FieldInit is one `name: value` entry of a PackExpr.
type FieldInit struct {
	Span
	Name  string
	Value Expr
}

func (*Ident) exprNode()      {}
func (*Literal) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*BorrowExpr) exprNode() {}
func (*FieldExpr) exprNode()  {}
func (*IndexExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*MacroCall) exprNode()  {}
func (*PackExpr) exprNode()   {}
func (*CastExpr) exprNode()   {}
func (*IfExpr) exprNode()     {}
func (*BlockExpr) exprNode()  {}
func (*VectorLit) exprNode()  {}
func (*TupleExpr) exprNode()  {}
func (*ParenExpr) exprNode()  {}
func (*BadExpr) exprNode()    {}

// FuncName returns the callee path of a call, e.g. "signer::address_of".
func (c *CallExpr) FuncName() string {
	if c.Fun == nil {
		return ""
	}
	return c.Fun.Name
}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}
