package lexer

import (
	"fmt"

	tt "github.com/gnolang/moveaudit/internal/types"
)

// Kind defines the type of a token.
type Kind int

const (
	EOF Kind = iota
	Keyword
	Ident
	Number
	String
	Address
	Operator
	Punct
	// Unknown holds bytes the lexer could not classify. The parser turns
	// them into diagnostics instead of the lexer failing.
	Unknown
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Keyword:
		return "Keyword"
	case Ident:
		return "Ident"
	case Number:
		return "Number"
	case String:
		return "String"
	case Address:
		return "Address"
	case Operator:
		return "Operator"
	case Punct:
		return "Punct"
	default:
		return "Unknown"
	}
}

// Token is a single lexical unit. Pos is where it starts and End is just
// past its last byte.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    tt.Position
	End    tt.Position
}

// Is reports whether the token has the given kind and lexeme.
func (t Token) Is(kind Kind, lexeme string) bool {
	return t.Kind == kind && t.Lexeme == lexeme
}

// Range returns the source range covered by the token.
func (t Token) Range() tt.Range {
	return tt.Range{Start: t.Pos, End: t.End}
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
}

// Comment is a line or block comment. Comments are not part of the token
// stream.
type Comment struct {
	Text string
	Pos  tt.Position
	End  tt.Position
}

var keywords = map[string]bool{
	"abort":    true,
	"acquires": true,
	"address":  true,
	"as":       true,
	"break":    true,
	"const":    true,
	"continue": true,
	"copy":     true,
	"else":     true,
	"entry":    true,
	"false":    true,
	"for":      true,
	"friend":   true,
	"fun":      true,
	"has":      true,
	"if":       true,
	"in":       true,
	"inline":   true,
	"let":      true,
	"loop":     true,
	"module":   true,
	"move":     true,
	"mut":      true,
	"native":   true,
	"phantom":  true,
	"public":   true,
	"resource": true,
	"return":   true,
	"script":   true,
	"spec":     true,
	"struct":   true,
	"true":     true,
	"use":      true,
	"while":    true,
}

// IsKeyword reports whether word is a reserved word.
func IsKeyword(word string) bool {
	return keywords[word]
}

// operators ordered so that longer operators are matched first.
var operators = []string{
	"<<=", ">>=",
	"::", "->", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "..",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "&", "|", "^", ".",
}

const punctuation = "(){}[],;:#"
