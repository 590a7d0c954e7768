// Package score turns a set of issues into a security score, a risk
// level and a one-paragraph summary. Every function here depends only on
// the multiset of issue severities, never on their order.
package score

import (
	"fmt"
	"strings"

	tt "github.com/gnolang/moveaudit/internal/types"
)

// MaxScore is the score of a contract without issues.
const MaxScore = 100

var deductions = map[tt.Severity]int{
	tt.SeverityCritical: 25,
	tt.SeverityHigh:     15,
	tt.SeverityMedium:   10,
	tt.SeverityLow:      5,
	tt.SeverityInfo:     1,
}

// Deduction returns the points an issue of severity s costs.
func Deduction(s tt.Severity) int {
	return deductions[s]
}

// RiskLevel is the overall risk classification of a contract.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Counts tallies issues per severity.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the number of counted issues.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Count tallies issues per severity. Issues with an unknown severity are
// not counted.
func Count(issues []tt.Issue) Counts {
	var c Counts
	for _, issue := range issues {
		switch issue.Severity {
		case tt.SeverityCritical:
			c.Critical++
		case tt.SeverityHigh:
			c.High++
		case tt.SeverityMedium:
			c.Medium++
		case tt.SeverityLow:
			c.Low++
		case tt.SeverityInfo:
			c.Info++
		}
	}
	return c
}

// Score starts from MaxScore, deducts per issue by severity and never
// goes below zero.
func Score(issues []tt.Issue) int {
	total := MaxScore
	for _, issue := range issues {
		total -= Deduction(issue.Severity)
	}
	return max(total, 0)
}

// Risk classifies the issues: High with any critical or more than one
// high issue, Medium with exactly one high or more than one medium issue,
// Low otherwise.
func Risk(issues []tt.Issue) RiskLevel {
	return Count(issues).Risk()
}

// Risk classifies the tallied issues.
func (c Counts) Risk() RiskLevel {
	switch {
	case c.Critical > 0 || c.High > 1:
		return RiskHigh
	case c.High == 1 || c.Medium > 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Summarize renders the report summary for issues and their score.
func Summarize(issues []tt.Issue, score int) string {
	c := Count(issues)
	var b strings.Builder
	fmt.Fprintf(&b, "This contract has a security score of %d/100, indicating a %s risk level.\n", score, c.Risk())
	fmt.Fprintf(&b, "We identified %d issues: %d critical, %d high, %d medium, %d low, and %d informational.",
		len(issues), c.Critical, c.High, c.Medium, c.Low, c.Info)
	if c.Critical > 0 || c.High > 0 {
		b.WriteString("\nPlease address all critical and high severity issues before deploying to the mainnet.")
	}
	return b.String()
}
