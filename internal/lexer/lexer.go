package lexer

import (
	"iter"
	"strings"
	"unicode/utf8"

	tt "github.com/gnolang/moveaudit/internal/types"
)

// Lexer scans Move source text and produces tokens on demand.
type Lexer struct {
	input    string // the entire input to tokenize
	offset   int    // current reading position in input
	line     int
	col      int
	comments []Comment
}

// New returns a Lexer positioned at the start of input.
func New(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize scans the whole input. The returned slice always ends with an
// EOF token.
func Tokenize(input string) []Token {
	tokens, _ := TokenizeWithComments(input)
	return tokens
}

// TokenizeWithComments is like Tokenize and also returns the comments found
// along the way.
func TokenizeWithComments(input string) ([]Token, []Comment) {
	l := New(input)
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, l.Comments()
		}
	}
}

// All returns a sequence over the tokens of input, excluding EOF. Each
// iteration lexes input from the beginning.
func All(input string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		l := New(input)
		for {
			tok := l.Next()
			if tok.Kind == EOF || !yield(tok) {
				return
			}
		}
	}
}

// Comments returns the comments consumed so far.
func (l *Lexer) Comments() []Comment {
	return l.comments
}

func (l *Lexer) pos() tt.Position {
	return tt.Position{Offset: l.offset, Line: l.line, Column: l.col}
}

// advance moves n bytes forward, keeping line and column up to date.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.offset < len(l.input); i++ {
		if l.input[l.offset] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.offset++
	}
}

func (l *Lexer) peek(ahead int) byte {
	if l.offset+ahead >= len(l.input) {
		return 0
	}
	return l.input[l.offset+ahead]
}

func (l *Lexer) emit(kind Kind, start tt.Position) Token {
	return Token{
		Kind:   kind,
		Lexeme: l.input[start.Offset:l.offset],
		Pos:    start,
		End:    l.pos(),
	}
}

// Next returns the next token. Once the input is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() Token {
	if tok, ok := l.skipTrivia(); !ok {
		return tok
	}
	start := l.pos()
	if l.offset >= len(l.input) {
		return Token{Kind: EOF, Pos: start, End: start}
	}

	c := l.input[l.offset]
	switch {
	case (c == 'b' || c == 'x') && l.peek(1) == '"':
		return l.lexString(start)
	case isIdentStart(c):
		for l.offset < len(l.input) && isIdentChar(l.input[l.offset]) {
			l.advance(1)
		}
		tok := l.emit(Ident, start)
		if IsKeyword(tok.Lexeme) {
			tok.Kind = Keyword
		}
		return tok
	case isDigit(c):
		l.lexNumber()
		return l.emit(Number, start)
	case c == '@':
		l.advance(1)
		switch {
		case l.offset < len(l.input) && isDigit(l.input[l.offset]):
			l.lexNumber()
		case l.offset < len(l.input) && isIdentStart(l.input[l.offset]):
			for l.offset < len(l.input) && isIdentChar(l.input[l.offset]) {
				l.advance(1)
			}
		default:
			return l.emit(Unknown, start)
		}
		return l.emit(Address, start)
	case c == '"':
		return l.lexString(start)
	}

	rest := l.input[l.offset:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.advance(len(op))
			return l.emit(Operator, start)
		}
	}
	if strings.IndexByte(punctuation, c) >= 0 {
		l.advance(1)
		return l.emit(Punct, start)
	}

	// Unclassifiable input. Consume a whole UTF-8 sequence so that a
	// multi-byte rune yields a single token.
	_, size := utf8.DecodeRuneInString(rest)
	l.advance(size)
	return l.emit(Unknown, start)
}

// skipTrivia skips whitespace and comments. An unterminated block comment
// is reported as an Unknown token, in which case ok is false.
func (l *Lexer) skipTrivia() (tok Token, ok bool) {
	for l.offset < len(l.input) {
		c := l.input[l.offset]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.advance(1)
		case c == '/' && l.peek(1) == '/':
			start := l.pos()
			end := strings.IndexByte(l.input[l.offset:], '\n')
			if end < 0 {
				end = len(l.input) - l.offset
			}
			l.advance(end)
			l.comments = append(l.comments, Comment{
				Text: l.input[start.Offset:l.offset],
				Pos:  start,
				End:  l.pos(),
			})
		case c == '/' && l.peek(1) == '*':
			start := l.pos()
			if !l.skipBlockComment() {
				return Token{
					Kind:   Unknown,
					Lexeme: l.input[start.Offset:l.offset],
					Pos:    start,
					End:    l.pos(),
				}, false
			}
			l.comments = append(l.comments, Comment{
				Text: l.input[start.Offset:l.offset],
				Pos:  start,
				End:  l.pos(),
			})
		default:
			return Token{}, true
		}
	}
	return Token{}, true
}

// skipBlockComment consumes a possibly nested /* */ comment.
func (l *Lexer) skipBlockComment() bool {
	depth := 0
	for l.offset < len(l.input) {
		switch {
		case l.peek(0) == '/' && l.peek(1) == '*':
			depth++
			l.advance(2)
		case l.peek(0) == '*' && l.peek(1) == '/':
			depth--
			l.advance(2)
			if depth == 0 {
				return true
			}
		default:
			l.advance(1)
		}
	}
	return false
}

func (l *Lexer) lexNumber() {
	if l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		l.advance(2)
		for l.offset < len(l.input) && (isHexDigit(l.input[l.offset]) || l.input[l.offset] == '_') {
			l.advance(1)
		}
	} else {
		for l.offset < len(l.input) && (isDigit(l.input[l.offset]) || l.input[l.offset] == '_') {
			l.advance(1)
		}
	}
	// integer type suffix such as u64
	for l.offset < len(l.input) && isIdentChar(l.input[l.offset]) {
		l.advance(1)
	}
}

// lexString scans "…", b"…" and x"…" literals. An unterminated literal
// becomes an Unknown token that runs to the end of the line.
func (l *Lexer) lexString(start tt.Position) Token {
	if l.peek(0) != '"' {
		l.advance(1) // b or x prefix
	}
	l.advance(1) // opening quote
	for l.offset < len(l.input) {
		switch l.input[l.offset] {
		case '\\':
			l.advance(2)
		case '"':
			l.advance(1)
			return l.emit(String, start)
		case '\n':
			return l.emit(Unknown, start)
		default:
			l.advance(1)
		}
	}
	return l.emit(Unknown, start)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
