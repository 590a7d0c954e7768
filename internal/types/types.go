package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity ranks how serious an issue is. Among reportable severities,
// lower values are more severe. The zero value means "not set".
type Severity int

const (
	SeverityUnset Severity = iota
	SeverityCritical
	SeverityHigh
	SeverityMedium
	SeverityLow
	SeverityInfo
	// SeverityOff only appears in configuration and disables a rule.
	SeverityOff
)

// Severities lists every reportable severity, most severe first.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	case SeverityInfo:
		return "Info"
	case SeverityOff:
		return "Off"
	case SeverityUnset:
		return "Unset"
	default:
		return "Unknown"
	}
}

// ErrInvalidSeverity is returned for a severity name that is not known.
var ErrInvalidSeverity = errors.New("invalid severity")

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info", "informational":
		return SeverityInfo, nil
	case "off":
		return SeverityOff, nil
	}
	return SeverityUnset, fmt.Errorf("%w %q", ErrInvalidSeverity, s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Severity) MarshalYAML() (any, error) {
	return strings.ToLower(s.String()), nil
}

func (s *Severity) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Position is a 1-based line and column in a source file.
// Offset is the 0-based byte offset and is not serialized.
type Position struct {
	Offset int `json:"-"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p is strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Range spans from Start to End. End points just past the last character.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Join returns the smallest range covering both r and o.
func (r Range) Join(o Range) Range {
	out := r
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if out.End.Before(o.End) {
		out.End = o.End
	}
	return out
}

// Issue is one located vulnerability finding.
type Issue struct {
	ID           string   `json:"id"`
	Rule         string   `json:"rule"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
	Location     Range    `json:"location"`
	CodeSnippet  string   `json:"codeSnippet"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
}

// Diagnostic is a syntax problem found while parsing.
type Diagnostic struct {
	Message  string `json:"message"`
	Location Range  `json:"location"`
	Fatal    bool   `json:"fatal,omitempty"`
}

func (d Diagnostic) String() string {
	return d.Location.Start.String() + ": " + d.Message
}

// Report is the result of auditing a single source file.
type Report struct {
	ContractName string       `json:"contractName"`
	Issues       []Issue      `json:"issues"`
	Summary      string       `json:"summary"`
	Score        int          `json:"score"`
	Timestamp    time.Time    `json:"timestamp"`
	Partial      bool         `json:"partial,omitempty"`
	SkippedRules []string     `json:"skippedRules,omitempty"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
}

// ConfigRule is the per-rule configuration entry.
type ConfigRule struct {
	Severity Severity `yaml:"severity"`
}
