package parser

import (
	"strings"

	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lexer"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// binary operator precedence, higher binds tighter.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, ">": 3, "<=": 3, ">=": 3,
	"..": 4,
	"|":  5,
	"^":  6,
	"&":  7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseBinary(1)
}

// parseBinary implements precedence climbing over left-associative
// operators.
func (p *Parser) parseBinary(minPrec int) ast.Expr {
	start := p.tok().Pos
	x := p.parseUnary()
	for {
		tok := p.tok()
		if tok.Kind != lexer.Operator {
			return x
		}
		prec, ok := precedence[tok.Lexeme]
		if !ok || prec < minPrec {
			return x
		}
		p.advance()
		y := p.parseBinary(prec + 1)
		x = &ast.BinaryExpr{Span: p.span(start), Op: tok.Lexeme, X: x, Y: y}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.tok().Pos
	tok := p.tok()
	switch {
	case tok.Is(lexer.Operator, "!"), tok.Is(lexer.Operator, "-"), tok.Is(lexer.Operator, "*"):
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{Span: p.span(start), Op: tok.Lexeme, X: x}
	case tok.Is(lexer.Keyword, "move"), tok.Is(lexer.Keyword, "copy"):
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{Span: p.span(start), Op: tok.Lexeme, X: x}
	case tok.Is(lexer.Operator, "&"):
		p.advance()
		mut := p.accept("mut")
		x := p.parseUnary()
		return &ast.BorrowExpr{Span: p.span(start), Mut: mut, X: x}
	case tok.Is(lexer.Operator, "&&"):
		// & &x
		p.advance()
		mut := p.accept("mut")
		x := p.parseUnary()
		inner := &ast.BorrowExpr{Span: p.span(start), Mut: mut, X: x}
		return &ast.BorrowExpr{Span: p.span(start), X: inner}
	}

	x := p.parsePostfix(p.parsePrimary())
	for p.at("as") {
		p.advance()
		t := p.parseType()
		x = &ast.CastExpr{Span: p.span(start), X: x, Type: t}
	}
	return x
}

func (p *Parser) parsePostfix(x ast.Expr) ast.Expr {
	start := x.Range().Start
	for {
		before := p.pos
		switch {
		case p.at("."):
			p.advance()
			name, ok := p.expectIdent()
			if !ok {
				return x
			}
			fun := &ast.Ident{Span: ast.Span{Rng: name.Range()}, Name: name.Lexeme}
			var targs []*ast.Type
			if p.at("<") && p.looksLikeTypeArgs() {
				targs = p.parseTypeArgs()
			}
			if p.at("(") {
				args := p.parseArgs()
				x = &ast.CallExpr{Span: p.span(start), Receiver: x, Fun: fun, TypeArgs: targs, Args: args}
			} else {
				x = &ast.FieldExpr{Span: p.span(start), X: x, Field: name.Lexeme}
			}
		case p.at("["):
			p.advance()
			idx := p.parseExpr()
			p.expect("]")
			x = &ast.IndexExpr{Span: p.span(start), X: x, Index: idx}
		default:
			return x
		}
		if p.pos == before {
			return x
		}
	}
}

func (p *Parser) parseArgs() []ast.Expr {
	p.expect("(")
	var args []ast.Expr
	for !p.atEOF() && !p.at(")") {
		before := p.pos
		args = append(args, p.parseExpr())
		if !p.accept(",") || p.pos == before {
			break
		}
	}
	p.expect(")")
	return args
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.tok().Pos
	tok := p.tok()
	switch tok.Kind {
	case lexer.Number:
		p.advance()
		return &ast.Literal{Span: p.span(start), Kind: ast.LitNumber, Value: tok.Lexeme}
	case lexer.String:
		p.advance()
		return &ast.Literal{Span: p.span(start), Kind: ast.LitBytes, Value: tok.Lexeme}
	case lexer.Address:
		p.advance()
		return &ast.Literal{Span: p.span(start), Kind: ast.LitAddress, Value: tok.Lexeme}
	case lexer.Keyword:
		switch tok.Lexeme {
		case "true", "false":
			p.advance()
			return &ast.Literal{Span: p.span(start), Kind: ast.LitBool, Value: tok.Lexeme}
		case "if":
			s := p.parseIf(start)
			return &ast.IfExpr{Span: s.Span, Cond: s.Cond, Then: s.Then, Else: s.Else}
		}
	case lexer.Punct:
		switch tok.Lexeme {
		case "(":
			return p.parseParenOrTuple(start)
		case "{":
			body := p.parseBlock()
			return &ast.BlockExpr{Span: body.Span, Body: body}
		}
	case lexer.Ident:
		return p.parsePathExpr(start)
	}

	p.errorf(tok, "expected expression, found %s", describe(tok))
	return &ast.BadExpr{Span: ast.Span{Rng: tok.Range()}}
}

func (p *Parser) parseParenOrTuple(start tt.Position) ast.Expr {
	p.expect("(")
	if p.accept(")") {
		return &ast.TupleExpr{Span: p.span(start)}
	}
	first := p.parseExpr()
	if p.accept(")") {
		return &ast.ParenExpr{Span: p.span(start), X: first}
	}
	elems := []ast.Expr{first}
	for p.accept(",") {
		if p.at(")") {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(")")
	return &ast.TupleExpr{Span: p.span(start), Elems: elems}
}

// parsePathExpr parses everything that starts with a name: variables,
// qualified paths, calls, macro calls, struct packs and vector literals.
func (p *Parser) parsePathExpr(start tt.Position) ast.Expr {
	if p.tok().Lexeme == "vector" && (p.peekN(1).Is(lexer.Punct, "[") || p.peekN(1).Is(lexer.Operator, "<")) {
		return p.parseVector(start)
	}

	segs := []string{p.advance().Lexeme}
	for p.at("::") && p.peekN(1).Kind == lexer.Ident {
		p.advance()
		segs = append(segs, p.advance().Lexeme)
	}
	name := strings.Join(segs, "::")
	ident := &ast.Ident{Span: p.span(start), Name: name}

	if p.at("!") && p.peekN(1).Is(lexer.Punct, "(") {
		p.advance()
		args := p.parseArgs()
		return &ast.MacroCall{Span: p.span(start), Name: name, Args: args}
	}

	var targs []*ast.Type
	if p.at("<") && p.looksLikeTypeArgs() {
		targs = p.parseTypeArgs()
	}

	switch {
	case p.at("("):
		args := p.parseArgs()
		return &ast.CallExpr{Span: p.span(start), Fun: ident, TypeArgs: targs, Args: args}
	case p.at("{") && isUpper(segs[len(segs)-1]) && p.looksLikePack():
		t := &ast.Type{Span: p.span(start), Path: name, Args: targs}
		return p.parsePack(start, t)
	}
	return ident
}

// looksLikePack reports whether the '{' at the current position opens a
// struct literal body: `{}`, `{ f: ...` or `{ f, ...` / `{ f }`.
func (p *Parser) looksLikePack() bool {
	next := p.peekN(1)
	if next.Is(lexer.Punct, "}") {
		return true
	}
	if next.Kind != lexer.Ident {
		return false
	}
	after := p.peekN(2)
	return after.Is(lexer.Punct, ":") || after.Is(lexer.Punct, ",") || after.Is(lexer.Punct, "}")
}

func (p *Parser) parsePack(start tt.Position, t *ast.Type) ast.Expr {
	p.expect("{")
	pack := &ast.PackExpr{Type: t}
	for !p.atEOF() && !p.at("}") {
		fstart := p.tok().Pos
		name, ok := p.expectIdent()
		if !ok {
			break
		}
		fi := &ast.FieldInit{Name: name.Lexeme}
		if p.accept(":") {
			fi.Value = p.parseExpr()
		} else {
			// shorthand `S { f }`
			fi.Value = &ast.Ident{Span: ast.Span{Rng: name.Range()}, Name: name.Lexeme}
		}
		fi.Span = p.span(fstart)
		pack.Fields = append(pack.Fields, fi)
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	pack.Span = p.span(start)
	return pack
}

func (p *Parser) parseVector(start tt.Position) ast.Expr {
	p.advance() // vector
	v := &ast.VectorLit{}
	if p.at("<") {
		args := p.parseTypeArgs()
		if len(args) > 0 {
			v.Type = args[0]
		}
	}
	if p.expect("[") {
		for !p.atEOF() && !p.at("]") {
			before := p.pos
			v.Elems = append(v.Elems, p.parseExpr())
			if !p.accept(",") || p.pos == before {
				break
			}
		}
		p.expect("]")
	}
	v.Span = p.span(start)
	return v
}
