// Package parser builds an ast.File from Move tokens.
//
// The parser never gives up on the first error. Each malformed construct is
// recorded as a diagnostic and parsing resumes at the next statement or
// declaration boundary, so the rest of the file can still be analyzed.
package parser

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lexer"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// maxErrors bounds the diagnostics reported for a single file.
const maxErrors = 50

// Parser is a recursive descent parser over a token slice.
type Parser struct {
	toks  []lexer.Token
	pos   int
	diags []tt.Diagnostic
}

// ParseSource lexes and parses src. Input that cannot be Move source at all
// (binary data, invalid UTF-8) yields an empty file and one fatal
// diagnostic.
func ParseSource(src string) (*ast.File, []tt.Diagnostic) {
	if d, ok := checkBinary(src); !ok {
		return &ast.File{}, []tt.Diagnostic{d}
	}
	tokens, comments := lexer.TokenizeWithComments(src)
	file, diags := Parse(tokens)
	file.Comments = comments
	return file, diags
}

func checkBinary(src string) (tt.Diagnostic, bool) {
	start := tt.Position{Line: 1, Column: 1}
	fatal := tt.Diagnostic{Location: tt.Range{Start: start, End: start}, Fatal: true}
	if !utf8.ValidString(src) {
		fatal.Message = "source is not valid UTF-8"
		return fatal, false
	}
	if strings.IndexByte(src, 0) >= 0 {
		fatal.Message = "source contains NUL bytes and looks binary"
		return fatal, false
	}
	return tt.Diagnostic{}, true
}

// Parse builds a file from tokens. The tokens slice is not modified. A
// non-empty token stream without any module or script block yields an
// empty file and a single fatal diagnostic.
func Parse(tokens []lexer.Token) (*ast.File, []tt.Diagnostic) {
	toks := slices.Clone(tokens)
	if len(toks) == 0 || toks[len(toks)-1].Kind != lexer.EOF {
		var end tt.Position
		if len(toks) > 0 {
			end = toks[len(toks)-1].End
		} else {
			end = tt.Position{Line: 1, Column: 1}
		}
		toks = append(toks, lexer.Token{Kind: lexer.EOF, Pos: end, End: end})
	}
	p := &Parser{toks: toks}
	file := p.parseFile()

	if len(file.Modules) == 0 && len(toks) > 1 {
		first := toks[0]
		return &ast.File{}, []tt.Diagnostic{{
			Message:  "expected a module, script or address block",
			Location: first.Range(),
			Fatal:    true,
		}}
	}
	return file, p.diags
}

// ----------------------------------------------------------------------------
// token helpers

func (p *Parser) tok() lexer.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *Parser) atEOF() bool {
	return p.tok().Kind == lexer.EOF
}

func (p *Parser) advance() lexer.Token {
	tok := p.tok()
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

// at reports whether the current token is the given operator, punctuation
// or keyword.
func (p *Parser) at(lexeme string) bool {
	tok := p.tok()
	switch tok.Kind {
	case lexer.Operator, lexer.Punct, lexer.Keyword:
		return tok.Lexeme == lexeme
	}
	return false
}

func (p *Parser) accept(lexeme string) bool {
	if p.at(lexeme) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(lexeme string) bool {
	if p.accept(lexeme) {
		return true
	}
	p.errorf(p.tok(), "expected %q, found %s", lexeme, describe(p.tok()))
	return false
}

func (p *Parser) expectIdent() (lexer.Token, bool) {
	tok := p.tok()
	if tok.Kind == lexer.Ident {
		p.advance()
		return tok, true
	}
	p.errorf(tok, "expected identifier, found %s", describe(tok))
	return tok, false
}

// lastEnd returns the end of the most recently consumed token.
func (p *Parser) lastEnd() tt.Position {
	if p.pos == 0 {
		return p.toks[0].Pos
	}
	return p.toks[p.pos-1].End
}

func (p *Parser) span(start tt.Position) ast.Span {
	end := p.lastEnd()
	if end.Before(start) {
		end = start
	}
	return ast.Span{Rng: tt.Range{Start: start, End: end}}
}

// splitOperator splits a multi-character operator starting with '>' so
// that nested generic arguments such as vector<vector<u8>> close properly.
func (p *Parser) splitOperator() {
	tok := p.tok()
	mid := tok.Pos
	mid.Offset++
	mid.Column++
	first := lexer.Token{Kind: lexer.Operator, Lexeme: tok.Lexeme[:1], Pos: tok.Pos, End: mid}
	rest := lexer.Token{Kind: lexer.Operator, Lexeme: tok.Lexeme[1:], Pos: mid, End: tok.End}
	p.toks[p.pos] = first
	p.toks = slices.Insert(p.toks, p.pos+1, rest)
}

// expectCloseAngle consumes a '>' that closes a type argument list.
func (p *Parser) expectCloseAngle() bool {
	tok := p.tok()
	if tok.Kind == lexer.Operator && len(tok.Lexeme) > 1 && tok.Lexeme[0] == '>' {
		p.splitOperator()
	}
	return p.expect(">")
}

func describe(tok lexer.Token) string {
	if tok.Kind == lexer.EOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", tok.Lexeme)
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	if len(p.diags) > 0 && p.diags[len(p.diags)-1].Location.Start.Offset == tok.Pos.Offset {
		return
	}
	p.diags = append(p.diags, tt.Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Location: tok.Range(),
	})
	if len(p.diags) >= maxErrors {
		p.diags = append(p.diags, tt.Diagnostic{
			Message:  "too many errors",
			Location: tok.Range(),
		})
		p.pos = len(p.toks) - 1
	}
}

func (p *Parser) errCount() int {
	return len(p.diags)
}

// ----------------------------------------------------------------------------
// recovery

func isItemStart(tok lexer.Token) bool {
	if tok.Kind == lexer.Punct && tok.Lexeme == "#" {
		return true
	}
	if tok.Kind != lexer.Keyword {
		return false
	}
	switch tok.Lexeme {
	case "fun", "public", "struct", "resource", "const", "use", "friend", "entry", "native", "inline", "spec":
		return true
	}
	return false
}

// syncItem skips to the next declaration at the current nesting level, or
// to the '}' that closes the enclosing module.
func (p *Parser) syncItem() {
	depth := 0
	for !p.atEOF() {
		tok := p.tok()
		switch {
		case tok.Is(lexer.Punct, "{"):
			depth++
		case tok.Is(lexer.Punct, "}"):
			if depth == 0 {
				return
			}
			depth--
			if depth == 0 {
				p.advance()
				return
			}
		case depth == 0 && isItemStart(tok):
			return
		}
		p.advance()
	}
}

// syncStmt skips past the next ';' or up to the '}' closing the current
// block.
func (p *Parser) syncStmt() {
	depth := 0
	for !p.atEOF() {
		tok := p.tok()
		switch {
		case tok.Is(lexer.Punct, "{"):
			depth++
		case tok.Is(lexer.Punct, "}"):
			if depth == 0 {
				return
			}
			depth--
		case depth == 0 && tok.Is(lexer.Punct, ";"):
			p.advance()
			return
		case depth == 0 && tok.Kind == lexer.Keyword && (tok.Lexeme == "let" || tok.Lexeme == "fun"):
			return
		}
		p.advance()
	}
}

// skipBalanced consumes a bracketed group starting at the current opening
// token.
func (p *Parser) skipBalanced(open, closing string) {
	depth := 0
	for !p.atEOF() {
		tok := p.advance()
		if tok.Kind != lexer.Punct {
			continue
		}
		switch tok.Lexeme {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// ----------------------------------------------------------------------------
// file and module level

func (p *Parser) parseFile() *ast.File {
	file := &ast.File{}
	start := p.tok().Pos
	for !p.atEOF() {
		before := p.pos
		switch {
		case p.at("module"):
			if m := p.parseModule(""); m != nil {
				file.Modules = append(file.Modules, m)
			}
		case p.at("script"):
			if m := p.parseScript(); m != nil {
				file.Modules = append(file.Modules, m)
			}
		case p.at("address"):
			file.Modules = append(file.Modules, p.parseAddressBlock()...)
		case p.at("#"):
			p.parseAttributes()
		case p.at("spec"):
			p.skipSpec()
		default:
			p.errorf(p.tok(), "expected module, script or address block, found %s", describe(p.tok()))
			for !p.atEOF() && !p.at("module") && !p.at("script") && !p.at("address") {
				p.advance()
			}
		}
		if p.pos == before {
			p.advance()
		}
	}
	file.Span = p.span(start)
	return file
}

func (p *Parser) parseAddressBlock() []*ast.Module {
	p.expect("address")
	addr := p.advance().Lexeme
	var mods []*ast.Module
	if !p.expect("{") {
		p.syncItem()
		return nil
	}
	for !p.atEOF() && !p.at("}") {
		before := p.pos
		switch {
		case p.at("module"):
			if m := p.parseModule(addr); m != nil {
				mods = append(mods, m)
			}
		case p.at("#"):
			p.parseAttributes()
		case p.at("spec"):
			p.skipSpec()
		default:
			p.errorf(p.tok(), "expected module, found %s", describe(p.tok()))
			p.syncItem()
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect("}")
	return mods
}

func (p *Parser) parseModule(addr string) *ast.Module {
	start := p.tok().Pos
	p.expect("module")
	m := &ast.Module{Address: addr}

	first := p.advance()
	if first.Kind != lexer.Ident && first.Kind != lexer.Number {
		p.errorf(first, "expected module name, found %s", describe(first))
	}
	m.Name = first.Lexeme
	if p.accept("::") {
		m.Address = first.Lexeme
		name, _ := p.expectIdent()
		m.Name = name.Lexeme
	}

	if !p.expect("{") {
		p.syncItem()
		m.Span = p.span(start)
		return m
	}
	p.parseMembers(m)
	p.expect("}")
	m.Span = p.span(start)
	return m
}

func (p *Parser) parseScript() *ast.Module {
	start := p.tok().Pos
	p.expect("script")
	m := &ast.Module{Name: "script", IsScript: true}
	if !p.expect("{") {
		p.syncItem()
		m.Span = p.span(start)
		return m
	}
	p.parseMembers(m)
	p.expect("}")
	m.Span = p.span(start)
	return m
}

func (p *Parser) parseMembers(m *ast.Module) {
	for !p.atEOF() && !p.at("}") {
		before := p.pos
		errs := p.errCount()
		if d := p.parseMember(); d != nil {
			m.Members = append(m.Members, d)
		}
		if p.errCount() > errs {
			p.syncItem()
		}
		if p.pos == before {
			p.advance()
		}
	}
}

// parseAttributes consumes a run of #[...] attributes and returns their
// names.
func (p *Parser) parseAttributes() []string {
	var names []string
	for p.at("#") {
		p.advance()
		if !p.at("[") {
			p.errorf(p.tok(), "expected '[' after '#'")
			return names
		}
		p.advance()
		depth := 1
		for !p.atEOF() && depth > 0 {
			tok := p.advance()
			switch {
			case tok.Is(lexer.Punct, "["):
				depth++
			case tok.Is(lexer.Punct, "]"):
				depth--
			case tok.Kind == lexer.Ident && depth == 1:
				names = append(names, tok.Lexeme)
			}
		}
	}
	return names
}

func (p *Parser) skipSpec() {
	for !p.atEOF() && !p.at("{") && !p.at(";") && !p.at("}") {
		p.advance()
	}
	switch {
	case p.at("{"):
		p.skipBalanced("{", "}")
	case p.at(";"):
		p.advance()
	}
}

func (p *Parser) parseMember() ast.Decl {
	start := p.tok().Pos
	attrs := p.parseAttributes()

	switch {
	case p.at("use"):
		return p.parseUse(start)
	case p.at("friend"):
		p.advance()
		path := p.parsePath()
		p.expect(";")
		return &ast.FriendDecl{Span: p.span(start), Path: path}
	case p.at("const"):
		return p.parseConst(start)
	case p.at("spec"):
		p.skipSpec()
		return nil
	}

	var (
		visibility string
		entry      bool
		native     bool
		inline     bool
	)
	for {
		switch {
		case p.at("public"):
			p.advance()
			visibility = "public"
			if p.at("(") {
				p.advance()
				scope := p.advance()
				visibility = "public(" + scope.Lexeme + ")"
				p.expect(")")
			}
			continue
		case p.at("entry"):
			p.advance()
			entry = true
			continue
		case p.at("native"):
			p.advance()
			native = true
			continue
		case p.at("inline"):
			p.advance()
			inline = true
			continue
		}
		break
	}

	switch {
	case p.at("fun"):
		fn := p.parseFunction(start)
		fn.Visibility = visibility
		fn.Entry = entry
		fn.Native = native
		fn.Inline = inline
		fn.Attributes = attrs
		return fn
	case p.at("struct"), p.at("resource"):
		s := p.parseStruct(start)
		s.Native = native
		return s
	}
	p.errorf(p.tok(), "expected declaration, found %s", describe(p.tok()))
	return nil
}

// parsePath parses `a::b::c` and returns it joined with "::".
func (p *Parser) parsePath() string {
	var segs []string
	for {
		tok := p.tok()
		if tok.Kind != lexer.Ident && tok.Kind != lexer.Number && tok.Kind != lexer.Address {
			p.errorf(tok, "expected path segment, found %s", describe(tok))
			break
		}
		p.advance()
		segs = append(segs, tok.Lexeme)
		if !p.at("::") || p.peekN(1).Is(lexer.Punct, "{") {
			break
		}
		p.advance()
	}
	return strings.Join(segs, "::")
}

func (p *Parser) parseUse(start tt.Position) *ast.UseDecl {
	p.expect("use")
	u := &ast.UseDecl{Path: p.parsePath()}
	switch {
	case p.at("as"):
		p.advance()
		alias, _ := p.expectIdent()
		u.Alias = alias.Lexeme
	case p.at("::"):
		p.advance()
		u.Members = p.parseUseGroup()
	}
	p.expect(";")
	u.Span = p.span(start)
	return u
}

func (p *Parser) parseUseGroup() []ast.UseMember {
	var members []ast.UseMember
	if !p.expect("{") {
		return nil
	}
	for !p.atEOF() && !p.at("}") {
		name, ok := p.expectIdent()
		if !ok {
			return members
		}
		member := ast.UseMember{Name: name.Lexeme}
		if p.at("::") {
			// nested group such as a::{b::{C}}; keep the leaf names
			p.advance()
			if p.at("{") {
				members = append(members, p.parseUseGroup()...)
			} else {
				leaf, _ := p.expectIdent()
				members = append(members, ast.UseMember{Name: leaf.Lexeme})
			}
		} else {
			if p.accept("as") {
				alias, _ := p.expectIdent()
				member.Alias = alias.Lexeme
			}
			members = append(members, member)
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return members
}

func (p *Parser) parseConst(start tt.Position) *ast.ConstDecl {
	p.expect("const")
	name, _ := p.expectIdent()
	c := &ast.ConstDecl{Name: name.Lexeme}
	if p.expect(":") {
		c.Type = p.parseType()
	}
	if p.expect("=") {
		c.Value = p.parseExpr()
	}
	p.expect(";")
	c.Span = p.span(start)
	return c
}

func (p *Parser) parseStruct(start tt.Position) *ast.StructDef {
	s := &ast.StructDef{}
	if p.accept("resource") {
		s.IsResource = true
	}
	p.expect("struct")
	name, _ := p.expectIdent()
	s.Name = name.Lexeme
	if p.at("<") {
		s.TypeParams = p.parseTypeParams()
	}
	if p.at("has") {
		s.Abilities = p.parseAbilities()
	}
	switch {
	case p.at("{"):
		p.advance()
		for !p.atEOF() && !p.at("}") {
			fstart := p.tok().Pos
			fname, ok := p.expectIdent()
			if !ok {
				break
			}
			p.expect(":")
			ftype := p.parseType()
			s.Fields = append(s.Fields, &ast.Field{Span: p.span(fstart), Name: fname.Lexeme, Type: ftype})
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		// postfix abilities: struct S { .. } has key;
		if p.at("has") {
			s.Abilities = append(s.Abilities, p.parseAbilities()...)
			p.expect(";")
		}
	case p.at(";"):
		p.advance()
	default:
		p.errorf(p.tok(), "expected struct body, found %s", describe(p.tok()))
	}
	s.Span = p.span(start)
	return s
}

func (p *Parser) parseAbilities() []string {
	p.expect("has")
	var abilities []string
	for {
		tok := p.tok()
		if tok.Kind != lexer.Ident && tok.Kind != lexer.Keyword {
			p.errorf(tok, "expected ability, found %s", describe(tok))
			return abilities
		}
		p.advance()
		abilities = append(abilities, tok.Lexeme)
		if !p.accept(",") {
			return abilities
		}
	}
}

func (p *Parser) parseFunction(start tt.Position) *ast.FunctionDef {
	p.expect("fun")
	name, _ := p.expectIdent()
	fn := &ast.FunctionDef{Name: name.Lexeme}
	if p.at("<") {
		fn.TypeParams = p.parseTypeParams()
	}

	if p.expect("(") {
		for !p.atEOF() && !p.at(")") {
			pstart := p.tok().Pos
			p.accept("mut")
			pname, ok := p.expectIdent()
			if !ok {
				break
			}
			p.expect(":")
			ptype := p.parseType()
			fn.Params = append(fn.Params, &ast.Param{Span: p.span(pstart), Name: pname.Lexeme, Type: ptype})
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
	}

	if p.accept(":") {
		fn.Return = p.parseType()
	}
	if p.accept("acquires") {
		for {
			tok := p.tok()
			if tok.Kind != lexer.Ident {
				p.errorf(tok, "expected resource name after acquires, found %s", describe(tok))
				break
			}
			p.advance()
			path := tok.Lexeme
			for p.at("::") {
				p.advance()
				seg, _ := p.expectIdent()
				path += "::" + seg.Lexeme
			}
			if p.at("<") {
				p.parseTypeArgs()
			}
			fn.Acquires = append(fn.Acquires, ast.LastSegment(path))
			if !p.accept(",") {
				break
			}
		}
	}

	switch {
	case p.at("{"):
		fn.Body = p.parseBlock()
	case p.at(";"):
		p.advance()
	default:
		p.errorf(p.tok(), "expected function body, found %s", describe(p.tok()))
	}
	fn.Span = p.span(start)
	return fn
}
