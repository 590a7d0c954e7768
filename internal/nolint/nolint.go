package nolint

import (
	"fmt"
	"strings"

	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lexer"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const nolintPrefix = "//nolint"

// Manager manages nolint scopes and checks if a line is nolinted.
type Manager struct {
	scopes []nolintScope
}

// nolintScope represents a line range where nolint applies.
type nolintScope struct {
	rules map[string]struct{}
	start int
	end   int
}

// ParseComments parses nolint comments of the given file and returns a Manager.
func ParseComments(f *ast.File) *Manager {
	manager := Manager{}
	if f == nil {
		return &manager
	}
	stmtMap := indexStatementsByLine(f)
	firstLine := firstModuleLine(f)

	for _, comment := range f.Comments {
		ns, err := parseComment(comment, f, stmtMap, firstLine)
		if err != nil {
			// ignore invalid nolint comments
			continue
		}
		manager.scopes = append(manager.scopes, ns)
	}
	return &manager
}

// parseComment parses a single nolint comment and determines its scope.
func parseComment(
	comment lexer.Comment,
	f *ast.File,
	stmtMap map[int]ast.Node,
	firstLine int,
) (nolintScope, error) {
	var ns nolintScope
	text := comment.Text

	if !strings.HasPrefix(text, nolintPrefix) {
		return ns, fmt.Errorf("invalid nolint comment")
	}

	rest := text[len(nolintPrefix):]

	// A nolint comment can either have a list of rules after a colon (:)
	// or if no rules are specified, it applies to all rules
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}

	if len(rest) > 0 && rest[0] == ':' {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)
	line := comment.Pos.Line

	// A comment above the first module applies to the entire file
	if line < firstLine {
		ns.start = 1
		ns.end = f.Range().End.Line
		return ns, nil
	}

	// Inline comments apply to the statement they trail
	if n, exists := stmtMap[line]; exists && n.Range().Start.Offset < comment.Pos.Offset {
		ns.start = n.Range().Start.Line
		ns.end = n.Range().End.Line
		return ns, nil
	}

	// Standalone comments apply to the statement or declaration on the next
	// line, including the comment line itself
	if n, exists := stmtMap[line+1]; exists {
		ns.start = line
		ns.end = n.Range().End.Line
		return ns, nil
	}

	// default behavior:
	// apply only to the comment line
	ns.start = line
	ns.end = line
	return ns, nil
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(text string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if text == "" {
		return rulesMap
	}
	for _, rule := range strings.Split(text, ",") {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// indexStatementsByLine maps each line to the first statement, declaration
// or block value starting on it.
func indexStatementsByLine(f *ast.File) map[int]ast.Node {
	stmtMap := make(map[int]ast.Node)
	record := func(n ast.Node) {
		line := n.Range().Start.Line
		if _, exists := stmtMap[line]; !exists {
			stmtMap[line] = n
		}
	}
	ast.Inspect(f, func(n ast.Node) bool {
		switch n := n.(type) {
		case ast.Stmt, ast.Decl:
			record(n)
		case *ast.Block:
			if n.Result != nil {
				record(n.Result)
			}
		}
		return true
	})
	return stmtMap
}

func firstModuleLine(f *ast.File) int {
	if len(f.Modules) == 0 {
		return 0
	}
	return f.Modules[0].Range().Start.Line
}

// IsNolint checks if a given line and rule are nolinted.
func (m *Manager) IsNolint(line int, ruleName string) bool {
	for _, ns := range m.scopes {
		if line < ns.start || line > ns.end {
			continue
		}
		// If the rules list is empty, nolint applies to all rules
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[ruleName]; exists {
			return true
		}
	}
	return false
}

// Filter drops the issues suppressed by a nolint comment.
func (m *Manager) Filter(issues []tt.Issue) []tt.Issue {
	if m == nil || len(m.scopes) == 0 {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !m.IsNolint(issue.Location.Start.Line, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}
