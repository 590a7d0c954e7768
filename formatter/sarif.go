package formatter

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	toolName = "moveaudit"
	toolURI  = "https://github.com/gnolang/moveaudit"
)

// FileReport pairs a report with the path of the audited file.
type FileReport struct {
	Path   string
	Report *tt.Report
}

// SARIF converts reports into a single SARIF 2.1.0 run.
func SARIF(files []FileReport) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, file := range files {
		if file.Report == nil {
			continue
		}
		for _, issue := range file.Report.Issues {
			level := sarifLevel(issue.Severity)
			rule := run.AddRule(issue.Rule).
				WithDescription(issue.Title).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})

			region := sarif.NewRegion().
				WithStartLine(issue.Location.Start.Line).
				WithStartColumn(issue.Location.Start.Column).
				WithEndLine(issue.Location.End.Line).
				WithEndColumn(issue.Location.End.Column)
			if issue.CodeSnippet != "" {
				region = region.WithSnippet(sarif.NewArtifactContent().WithText(issue.CodeSnippet))
			}
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(file.Path)).
					WithRegion(region),
			)

			msg := issue.Description
			if issue.SuggestedFix != "" {
				msg += "\n" + issue.SuggestedFix
			}
			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(msg)).
				WithLevel(level).
				WithLocations([]*sarif.Location{location})
			result.PropertyBag = *sarif.NewPropertyBag()
			result.Add("severity", issue.Severity.String())
			result.Add("score", file.Report.Score)
			run.AddResult(result)
		}
	}
	report.AddRun(run)
	return report, nil
}

// WriteSARIF writes reports to w as indented SARIF.
func WriteSARIF(w io.Writer, files []FileReport) error {
	report, err := SARIF(files)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}

func sarifLevel(s tt.Severity) string {
	switch s {
	case tt.SeverityCritical, tt.SeverityHigh:
		return "error"
	case tt.SeverityMedium:
		return "warning"
	case tt.SeverityLow, tt.SeverityInfo:
		return "note"
	default:
		return "none"
	}
}
