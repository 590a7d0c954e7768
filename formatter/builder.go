package formatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/moveaudit/internal"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	tabWidth = 8
	// maxSnippetLines caps the source lines shown for one issue.
	maxSnippetLines = 6
)

// rule set
const (
	ResourceLeak = "resource-leak"
)

var (
	criticalStyle   = color.New(color.FgRed, color.Bold)
	highStyle       = color.New(color.FgHiRed, color.Bold)
	mediumStyle     = color.New(color.FgYellow, color.Bold)
	lowStyle        = color.New(color.FgBlue, color.Bold)
	infoStyle       = color.New(color.FgHiBlack, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
	boldStyle       = color.New(color.Bold)
)

func severityStyle(s tt.Severity) *color.Color {
	switch s {
	case tt.SeverityCritical:
		return criticalStyle
	case tt.SeverityHigh:
		return highStyle
	case tt.SeverityMedium:
		return mediumStyle
	case tt.SeverityLow:
		return lowStyle
	default:
		return infoStyle
	}
}

// SourceCode stores the lines of a source file.
type SourceCode struct {
	Lines []string
}

// NewSourceCode splits src into lines.
func NewSourceCode(src string) *SourceCode {
	return &SourceCode{Lines: strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")}
}

// issueFormatter is the interface that wraps the IssueTemplate method.
// Implementations are responsible for formatting specific kinds of issues.
type issueFormatter interface {
	IssueTemplate() string
}

// getIssueFormatter returns the formatter for an issue. Issues reporting a
// failed rule have no meaningful location and skip the snippet.
func getIssueFormatter(issue tt.Issue) issueFormatter {
	if issue.Title == internal.RuleFailureTitle {
		return &RuleFailureFormatter{}
	}
	switch issue.Rule {
	case ResourceLeak:
		return &ResourceLeakFormatter{}
	default:
		return &GeneralIssueFormatter{}
	}
}

// GenerateFormattedIssue formats issues found in filename into a
// human-readable string.
func GenerateFormattedIssue(issues []tt.Issue, filename string, snippet *SourceCode) string {
	var builder strings.Builder
	for _, issue := range issues {
		builder.WriteString(buildIssue(issue, filename, snippet, getIssueFormatter(issue)))
	}
	return builder.String()
}

/***** Issue Formatter Builder *****/

type IssueData struct {
	ID              string
	Severity        tt.Severity
	Rule            string
	Title           string
	Filename        string
	Padding         string
	StartLine       int
	StartColumn     int
	EndLine         int
	EndColumn       int
	MaxLineNumWidth int
	Message         string
	Suggestion      string
	SnippetLines    []string
	CommonIndent    string
}

func buildIssue(issue tt.Issue, filename string, snippet *SourceCode, formatter issueFormatter) string {
	startLine := issue.Location.Start.Line
	endLine := min(issue.Location.End.Line, startLine+maxSnippetLines-1)
	maxLineNumWidth := calculateMaxLineNumWidth(endLine)
	padding := strings.Repeat(" ", maxLineNumWidth+1)

	var commonIndent string
	if isValidLineRange(startLine, endLine, snippet.Lines) {
		commonIndent = findCommonIndent(snippet.Lines[startLine-1 : endLine])
	}

	data := IssueData{
		ID:              issue.ID,
		Severity:        issue.Severity,
		Rule:            issue.Rule,
		Title:           issue.Title,
		Filename:        filename,
		StartLine:       startLine,
		StartColumn:     issue.Location.Start.Column,
		EndLine:         endLine,
		EndColumn:       issue.Location.End.Column,
		Message:         issue.Description,
		Suggestion:      issue.SuggestedFix,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         padding,
		CommonIndent:    commonIndent,
		SnippetLines:    snippet.Lines,
	}
	if endLine < issue.Location.End.Line {
		// the underline stops at the end of the last shown line
		data.EndColumn = len(lineAt(snippet.Lines, endLine)) + 1
	}

	funcMap := template.FuncMap{
		"header":              header,
		"suggestion":          suggestion,
		"note":                note,
		"snippet":             codeSnippet,
		"underlineAndMessage": underlineAndMessage,
		"message":             message,
	}

	tmpl := template.Must(template.New("issue").Funcs(funcMap).Parse(formatter.IssueTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(severity tt.Severity, rule, title string, maxLineNumWidth int, filename string, startLine, startColumn int) string {
	var endString string
	endString = severityStyle(severity).Sprintf("%s", strings.ToLower(severity.String()))
	endString += ruleStyle.Sprintf("[%s]", rule)
	endString += boldStyle.Sprintf(": %s\n", title)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	endString += fileStyle.Sprintf("%s:%d:%d\n", filename, startLine, startColumn)

	return endString
}

func codeSnippet(snippetLines []string, startLine, endLine, maxLineNumWidth int, commonIndent, padding string) string {
	var endString string
	endString = lineStyle.Sprintf("%s|\n", padding)

	for i := startLine; i <= endLine; i++ {
		if i-1 < 0 || i-1 >= len(snippetLines) {
			continue
		}

		line := strings.TrimPrefix(snippetLines[i-1], commonIndent)
		lineNum := fmt.Sprintf("%*d", maxLineNumWidth, i)

		endString += lineStyle.Sprintf("%s | ", lineNum) + line + "\n"
	}

	return endString
}

func underlineAndMessage(message, padding string, startLine, endLine, startColumn, endColumn int, snippetLines []string, commonIndent string) string {
	var endString string
	endString = lineStyle.Sprintf("%s| ", padding)

	if !isValidLineRange(startLine, endLine, snippetLines) {
		endString += messageStyle.Sprintf("%s\n", message)
		return endString
	}

	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	// calculate underline start position
	underlineStart := max(calculateVisualColumn(snippetLines[startLine-1], startColumn)-commonIndentWidth, 0)

	// a multi-line range is underlined on its first line only
	endLine, endColumn = startLine, lineEndColumn(snippetLines, startLine, endLine, endColumn)
	underlineEnd := calculateVisualColumn(snippetLines[endLine-1], endColumn) - commonIndentWidth
	underlineLength := max(underlineEnd-underlineStart, 1)

	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))

	endString += lineStyle.Sprintf("%s= ", padding)
	endString += message + "\n"

	return endString
}

func lineEndColumn(lines []string, startLine, endLine, endColumn int) int {
	if startLine == endLine {
		return endColumn
	}
	return len(strings.TrimRightFunc(lines[startLine-1], unicode.IsSpace)) + 1
}

func message(padding, msg string) string {
	return lineStyle.Sprintf("%s= ", padding) + msg + "\n"
}

func suggestion(suggestion, padding string) string {
	if suggestion == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("help: ") + suggestion + "\n"
}

func note(padding, note string) string {
	if note == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("note: ") + note + "\n"
}

func lineAt(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func isValidLineRange(startLine, endLine int, lines []string) bool {
	return 0 < startLine && startLine <= endLine && endLine <= len(lines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(strconv.Itoa(endLine))
}

// calculateVisualColumn returns the display width of line before the
// 1-based column, expanding tabs.
func calculateVisualColumn(line string, column int) int {
	width := 0
	for i, ch := range line {
		if i+1 >= column {
			break
		}
		if ch == '\t' {
			width += tabWidth - width%tabWidth
			continue
		}
		width++
	}
	return width
}

// findCommonIndent returns the leading whitespace shared by every
// non-blank line.
func findCommonIndent(lines []string) string {
	var (
		indent string
		found  bool
	)
	for _, line := range lines {
		body := strings.TrimLeftFunc(line, unicode.IsSpace)
		if body == "" {
			continue
		}
		lead := line[:len(line)-len(body)]
		if !found {
			indent, found = lead, true
			continue
		}
		indent = sharedPrefix(indent, lead)
		if indent == "" {
			break
		}
	}
	return indent
}

func sharedPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
