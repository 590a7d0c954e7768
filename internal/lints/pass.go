// Package lints holds the Move vulnerability rules. Each rule is a
// Detect function over a Pass; the engine wraps them into named rules.
package lints

import (
	"context"
	"strings"

	"github.com/gnolang/moveaudit/internal/ast"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// DefaultLinearTypes are framework types treated as resources even though
// their declaration is not part of the audited file.
var DefaultLinearTypes = []string{"Coin", "Balance", "FungibleAsset", "TreasuryCap"}

// Options carries the configurable inputs of the rules.
type Options struct {
	// LinearTypes extends the resource types tracked by resource-leak.
	LinearTypes []string
	// PrivilegedNames are extra function names missing-access-control
	// treats as privileged.
	PrivilegedNames []string
}

// Pass is the input of a single rule evaluation.
type Pass struct {
	Ctx      context.Context
	File     *ast.File
	Source   string
	Rule     string
	Severity tt.Severity
	Options  Options
}

// Walk traverses n in pre-order and stops with the context error once the
// pass is cancelled.
func (p *Pass) Walk(n ast.Node, f func(ast.Node) bool) error {
	ctx := p.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return ast.InspectContext(ctx, n, f)
}

// Err reports whether the pass was cancelled.
func (p *Pass) Err() error {
	if p.Ctx == nil {
		return nil
	}
	return p.Ctx.Err()
}

// Snippet returns the verbatim source covered by r.
func (p *Pass) Snippet(r tt.Range) string {
	start, end := r.Start.Offset, r.End.Offset
	if start < 0 || start > len(p.Source) {
		return ""
	}
	end = min(max(end, start), len(p.Source))
	return p.Source[start:end]
}

// trimEnd moves the end of r back over trailing whitespace.
func (p *Pass) trimEnd(r tt.Range) tt.Range {
	end := min(r.End.Offset, len(p.Source))
	if end < r.Start.Offset {
		return r
	}
	for end > r.Start.Offset && isSpace(p.Source[end-1]) {
		if p.Source[end-1] == '\n' {
			r.End.Line--
		}
		end--
	}
	r.End.Offset = end
	r.End.Column = end - strings.LastIndexByte(p.Source[:end], '\n')
	return r
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// NewIssue builds an issue of the pass rule located at r.
func (p *Pass) NewIssue(r tt.Range, title, description, fix string) tt.Issue {
	return tt.Issue{
		Rule:         p.Rule,
		Title:        title,
		Description:  description,
		Severity:     p.Severity,
		Location:     r,
		CodeSnippet:  p.Snippet(r),
		SuggestedFix: fix,
	}
}

// modules returns the analyzable modules of the file, skipping scripts
// when skipScripts is set.
func (p *Pass) modules(skipScripts bool) []*ast.Module {
	if p.File == nil {
		return nil
	}
	var out []*ast.Module
	for _, m := range p.File.Modules {
		if skipScripts && m.IsScript {
			continue
		}
		out = append(out, m)
	}
	return out
}
