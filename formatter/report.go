package formatter

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	tt "github.com/gnolang/moveaudit/internal/types"
)

var (
	titleStyle   = color.New(color.FgHiWhite, color.Bold, color.Underline)
	warnStyle    = color.New(color.FgYellow)
	scoreStyles  = []*color.Color{color.New(color.FgGreen, color.Bold), color.New(color.FgYellow, color.Bold), color.New(color.FgHiRed, color.Bold), color.New(color.FgRed, color.Bold)}
	scoreBorders = []int{90, 70, 50}
)

// scoreStyle picks the color of a score: green from 90, yellow from 70,
// orange from 50 and red below.
func scoreStyle(score int) *color.Color {
	for i, border := range scoreBorders {
		if score >= border {
			return scoreStyles[i]
		}
	}
	return scoreStyles[len(scoreStyles)-1]
}

// FormatReport renders a full audit report of filename for the terminal.
// Issues are grouped by severity, most severe first.
func FormatReport(report *tt.Report, filename string, source *SourceCode) string {
	var b strings.Builder

	b.WriteString(titleStyle.Sprint("AUDIT REPORT") + "\n")
	fmt.Fprintf(&b, "Contract: %s\n", boldStyle.Sprint(report.ContractName))
	fmt.Fprintf(&b, "Security Score: %s\n", scoreStyle(report.Score).Sprintf("%d/100", report.Score))
	fmt.Fprintf(&b, "Issues Found: %d\n", len(report.Issues))

	if report.Partial {
		b.WriteString(warnStyle.Sprintf("Partial report, rules not completed: %s", strings.Join(report.SkippedRules, ", ")) + "\n")
	}

	b.WriteString("\n" + titleStyle.Sprint("SUMMARY") + "\n")
	b.WriteString(report.Summary + "\n")

	if len(report.Diagnostics) > 0 {
		b.WriteString("\n" + titleStyle.Sprint("SYNTAX DIAGNOSTICS") + "\n")
		for _, d := range report.Diagnostics {
			fmt.Fprintf(&b, "%s %s\n", fileStyle.Sprintf("%s:%s", filename, d.Location.Start), d.Message)
		}
	}

	if len(report.Issues) == 0 {
		return b.String()
	}

	b.WriteString("\n" + titleStyle.Sprint("VULNERABILITIES") + "\n")
	for _, severity := range tt.Severities {
		var group []tt.Issue
		for _, issue := range report.Issues {
			if issue.Severity == severity {
				group = append(group, issue)
			}
		}
		if len(group) == 0 {
			continue
		}
		b.WriteString("\n" + severityStyle(severity).Sprintf("%s Severity Issues (%d)", severity, len(group)) + "\n\n")
		b.WriteString(GenerateFormattedIssue(group, filename, source))
	}
	return b.String()
}
