package parser

import (
	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lexer"
	tt "github.com/gnolang/moveaudit/internal/types"
)

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

// parseBlock parses `{ stmt* [expr] }`.
func (p *Parser) parseBlock() *ast.Block {
	start := p.tok().Pos
	b := &ast.Block{}
	if !p.expect("{") {
		b.Span = p.span(start)
		return b
	}
	for !p.atEOF() && !p.at("}") {
		before := p.pos
		errs := p.errCount()

		if p.accept(";") {
			continue
		}
		stmt, result := p.parseStmt()
		switch {
		case result != nil && p.at("}"):
			b.Result = result
		case result != nil:
			p.errorf(p.tok(), "expected ';' or '}' after expression, found %s", describe(p.tok()))
			b.Stmts = append(b.Stmts, &ast.ExprStmt{Span: ast.Span{Rng: result.Range()}, X: result})
		case stmt != nil:
			b.Stmts = append(b.Stmts, stmt)
		}

		if p.errCount() > errs {
			p.syncStmt()
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect("}")
	b.Span = p.span(start)
	return b
}

// parseStmt parses one statement. When the statement is an expression not
// terminated by ';' it is returned as result instead, so the caller can
// decide whether it is the block's trailing value.
func (p *Parser) parseStmt() (stmt ast.Stmt, result ast.Expr) {
	start := p.tok().Pos
	switch {
	case p.at("let"):
		return p.parseLet(start), nil
	case p.at("if"):
		s := p.parseIf(start)
		if p.at("}") && s.Else != nil {
			// trailing if/else yields the block's value
			return nil, &ast.IfExpr{Span: s.Span, Cond: s.Cond, Then: s.Then, Else: s.Else}
		}
		p.accept(";")
		return s, nil
	case p.at("while"):
		p.advance()
		s := &ast.WhileStmt{Cond: p.parseCond()}
		s.Body = p.parseBlock()
		s.Span = p.span(start)
		p.accept(";")
		return s, nil
	case p.at("loop"):
		p.advance()
		s := &ast.LoopStmt{Body: p.parseBlock()}
		s.Span = p.span(start)
		p.accept(";")
		return s, nil
	case p.at("for"):
		return p.parseFor(start), nil
	case p.at("{"):
		body := p.parseBlock()
		if p.at("}") && body.Result != nil {
			return nil, &ast.BlockExpr{Span: body.Span, Body: body}
		}
		p.accept(";")
		return &ast.BlockStmt{Span: body.Span, Body: body}, nil
	case p.at("return"), p.at("abort"), p.at("break"), p.at("continue"):
		s := p.parseJump(start)
		if !p.at("}") {
			p.expect(";")
		}
		return s, nil
	}

	x := p.parseExpr()
	if tok := p.tok(); tok.Kind == lexer.Operator && assignOps[tok.Lexeme] {
		p.advance()
		rhs := p.parseExpr()
		s := &ast.AssignStmt{LHS: x, Op: tok.Lexeme, RHS: rhs}
		s.Span = p.span(start)
		p.expect(";")
		return s, nil
	}
	if p.accept(";") {
		return &ast.ExprStmt{Span: ast.Span{Rng: x.Range()}, X: x}, nil
	}
	return nil, x
}

// parseJump parses return, abort, break and continue without the
// terminating ';'.
func (p *Parser) parseJump(start tt.Position) ast.Stmt {
	kw := p.advance()
	switch kw.Lexeme {
	case "return":
		s := &ast.ReturnStmt{}
		if !p.at(";") && !p.at("}") && !p.at("else") {
			s.Value = p.parseExpr()
		}
		s.Span = p.span(start)
		return s
	case "abort":
		s := &ast.AbortStmt{Code: p.parseExpr()}
		s.Span = p.span(start)
		return s
	case "break":
		return &ast.BreakStmt{Span: p.span(start)}
	default:
		return &ast.ContinueStmt{Span: p.span(start)}
	}
}

// parseCond parses a parenthesized condition.
func (p *Parser) parseCond() ast.Expr {
	if !p.expect("(") {
		return &ast.BadExpr{Span: p.span(p.tok().Pos)}
	}
	x := p.parseExpr()
	p.expect(")")
	return x
}

func (p *Parser) parseIf(start tt.Position) *ast.IfStmt {
	p.expect("if")
	s := &ast.IfStmt{Cond: p.parseCond()}
	s.Then = p.parseBranch()
	if p.accept("else") {
		if p.at("if") {
			elseStart := p.tok().Pos
			nested := p.parseIf(elseStart)
			s.Else = &ast.Block{Span: nested.Span, Stmts: []ast.Stmt{nested}}
		} else {
			s.Else = p.parseBranch()
		}
	}
	s.Span = p.span(start)
	return s
}

// parseBranch parses the body of an if or else. Move allows a bare
// expression or jump instead of a block:
//
//	if (x > max) abort E_TOO_BIG;
func (p *Parser) parseBranch() *ast.Block {
	if p.at("{") {
		return p.parseBlock()
	}
	start := p.tok().Pos
	b := &ast.Block{}
	switch {
	case p.at("return"), p.at("abort"), p.at("break"), p.at("continue"):
		b.Stmts = append(b.Stmts, p.parseJump(start))
	default:
		x := p.parseExpr()
		if tok := p.tok(); tok.Kind == lexer.Operator && assignOps[tok.Lexeme] {
			p.advance()
			rhs := p.parseExpr()
			b.Stmts = append(b.Stmts, &ast.AssignStmt{Span: p.span(start), LHS: x, Op: tok.Lexeme, RHS: rhs})
		} else {
			b.Result = x
		}
	}
	b.Span = p.span(start)
	return b
}

func (p *Parser) parseFor(start tt.Position) *ast.ForStmt {
	p.expect("for")
	s := &ast.ForStmt{}
	if p.expect("(") {
		v, _ := p.expectIdent()
		s.Var = &ast.Ident{Span: ast.Span{Rng: v.Range()}, Name: v.Lexeme}
		p.expect("in")
		s.Iter = p.parseExpr()
		p.expect(")")
	}
	s.Body = p.parseBlock()
	s.Span = p.span(start)
	p.accept(";")
	return s
}

func (p *Parser) parseLet(start tt.Position) *ast.LetStmt {
	p.expect("let")
	s := &ast.LetStmt{Pattern: p.parsePattern()}
	if p.accept(":") {
		s.Type = p.parseType()
	}
	if p.accept("=") {
		s.Value = p.parseExpr()
	}
	s.Span = p.span(start)
	p.expect(";")
	return s
}

// parsePattern parses a binding pattern:
//
//	x, mut x, _, (a, b), S { f: x, g }, S<T> { .. }
func (p *Parser) parsePattern() *ast.Pattern {
	start := p.tok().Pos
	pat := &ast.Pattern{}
	p.collectPattern(pat)
	pat.Span = p.span(start)
	return pat
}

func (p *Parser) collectPattern(pat *ast.Pattern) {
	p.accept("mut")
	switch {
	case p.at("("):
		p.advance()
		for !p.atEOF() && !p.at(")") {
			p.collectPattern(pat)
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
		return
	}

	tok := p.tok()
	if tok.Kind != lexer.Ident {
		p.errorf(tok, "expected pattern, found %s", describe(tok))
		return
	}

	// struct unpack
	if p.peekN(1).Is(lexer.Operator, "::") || p.peekN(1).Is(lexer.Punct, "{") ||
		(p.peekN(1).Is(lexer.Operator, "<") && isUpper(tok.Lexeme)) {
		tstart := tok.Pos
		t := &ast.Type{Path: p.parseTypePath()}
		if p.at("<") {
			t.Args = p.parseTypeArgs()
		}
		t.Span = p.span(tstart)
		if pat.Unpack == nil {
			pat.Unpack = t
		}
		if !p.expect("{") {
			return
		}
		for !p.atEOF() && !p.at("}") {
			field, ok := p.expectIdent()
			if !ok {
				break
			}
			if p.accept(":") {
				p.collectPattern(pat)
			} else {
				pat.Binds = append(pat.Binds, &ast.Ident{Span: ast.Span{Rng: field.Range()}, Name: field.Lexeme})
			}
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		return
	}

	p.advance()
	if tok.Lexeme != "_" {
		pat.Binds = append(pat.Binds, &ast.Ident{Span: ast.Span{Rng: tok.Range()}, Name: tok.Lexeme})
	}
}

func isUpper(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
