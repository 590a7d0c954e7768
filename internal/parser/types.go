package parser

import (
	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lexer"
)

// parseType parses a type annotation:
//
//	&T, &mut T, (T1, T2), path, path<T, ...>
func (p *Parser) parseType() *ast.Type {
	start := p.tok().Pos
	t := &ast.Type{}
	switch {
	case p.at("&"):
		p.advance()
		t.Ref = true
		if p.accept("mut") {
			t.Mut = true
		}
		inner := p.parseType()
		t.Path, t.Args, t.Elems = inner.Path, inner.Args, inner.Elems
	case p.at("&&"):
		// & &T
		p.advance()
		inner := p.parseType()
		t.Ref = true
		t.Path = "&" + inner.String()
	case p.at("("):
		p.advance()
		for !p.atEOF() && !p.at(")") {
			t.Elems = append(t.Elems, p.parseType())
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
	default:
		tok := p.tok()
		if tok.Kind != lexer.Ident && tok.Kind != lexer.Number && tok.Kind != lexer.Address {
			p.errorf(tok, "expected type, found %s", describe(tok))
			t.Span = p.span(start)
			return t
		}
		t.Path = p.parseTypePath()
		if p.at("<") {
			t.Args = p.parseTypeArgs()
		}
	}
	t.Span = p.span(start)
	return t
}

func (p *Parser) parseTypePath() string {
	path := p.advance().Lexeme
	for p.at("::") {
		p.advance()
		seg, ok := p.expectIdent()
		if !ok {
			break
		}
		path += "::" + seg.Lexeme
	}
	return path
}

func (p *Parser) parseTypeArgs() []*ast.Type {
	p.expect("<")
	var args []*ast.Type
	for !p.atEOF() && !p.at(">") && !p.atCloseAngle() {
		args = append(args, p.parseType())
		if !p.accept(",") {
			break
		}
	}
	p.expectCloseAngle()
	return args
}

func (p *Parser) atCloseAngle() bool {
	tok := p.tok()
	return tok.Kind == lexer.Operator && len(tok.Lexeme) > 1 && tok.Lexeme[0] == '>'
}

// parseTypeParams parses `<T: copy + drop, phantom U>`.
func (p *Parser) parseTypeParams() []*ast.TypeParam {
	p.expect("<")
	var params []*ast.TypeParam
	for !p.atEOF() && !p.at(">") {
		start := p.tok().Pos
		tp := &ast.TypeParam{}
		if p.accept("phantom") {
			tp.Phantom = true
		}
		name, ok := p.expectIdent()
		if !ok {
			break
		}
		tp.Name = name.Lexeme
		if p.accept(":") {
			for {
				c := p.tok()
				if c.Kind != lexer.Ident && c.Kind != lexer.Keyword {
					p.errorf(c, "expected ability constraint, found %s", describe(c))
					break
				}
				p.advance()
				tp.Constraints = append(tp.Constraints, c.Lexeme)
				if !p.accept("+") {
					break
				}
			}
		}
		tp.Span = p.span(start)
		params = append(params, tp)
		if !p.accept(",") {
			break
		}
	}
	p.expectCloseAngle()
	return params
}

// looksLikeTypeArgs reports whether the '<' at the current position opens
// a type argument list rather than a comparison. It scans ahead for a
// balanced list of type tokens followed by '(', '{', '[' or '::'.
func (p *Parser) looksLikeTypeArgs() bool {
	if !p.at("<") {
		return false
	}
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		tok := p.toks[i]
		switch tok.Kind {
		case lexer.Ident, lexer.Number, lexer.Address:
			continue
		case lexer.Keyword:
			if tok.Lexeme == "mut" {
				continue
			}
			return false
		case lexer.Punct:
			switch tok.Lexeme {
			case ",", "(", ")":
				continue
			}
			return false
		case lexer.Operator:
			switch tok.Lexeme {
			case "<":
				depth++
			case ">":
				depth--
			case ">>":
				depth -= 2
			case "::", "&", "&&":
				continue
			default:
				return false
			}
			if depth < 0 {
				return false
			}
			if depth == 0 {
				next := p.toks[min(i+1, len(p.toks)-1)]
				return next.Is(lexer.Punct, "(") || next.Is(lexer.Punct, "{") ||
					next.Is(lexer.Punct, "[") || next.Is(lexer.Operator, "::")
			}
		default:
			return false
		}
	}
	return false
}
