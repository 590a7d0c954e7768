package formatter

// GeneralIssueFormatter is a formatter for general issues.
type GeneralIssueFormatter struct{}

func (f *GeneralIssueFormatter) IssueTemplate() string {
	return `{{header .Severity .Rule .Title .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent -}}
{{suggestion .Suggestion .Padding}}
`
}

// ResourceLeakFormatter adds a note on linear values to the general layout.
type ResourceLeakFormatter struct{}

const resourceLeakNote = "values without the drop ability must be moved or destroyed before the function returns"

func (f *ResourceLeakFormatter) IssueTemplate() string {
	return `{{header .Severity .Rule .Title .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent -}}
{{suggestion .Suggestion .Padding -}}
{{note .Padding "` + resourceLeakNote + `"}}
`
}

// RuleFailureFormatter prints a failed rule without a snippet.
type RuleFailureFormatter struct{}

func (f *RuleFailureFormatter) IssueTemplate() string {
	return `{{header .Severity .Rule .Title .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{message .Padding .Message}}
`
}
