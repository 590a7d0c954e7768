package internal

import (
	"github.com/gnolang/moveaudit/internal/lints"
	tt "github.com/gnolang/moveaudit/internal/types"
)

/*
* Implement each rule as a separate struct
 */

// LintRule defines the interface for all audit rules.
type LintRule interface {
	// Check runs the rule over the pass and returns a slice of Issues.
	Check(pass *lints.Pass) ([]tt.Issue, error)

	// Name returns the stable id of the rule.
	Name() string

	// Severity returns the severity of the issues the rule emits.
	Severity() tt.Severity

	// SetSeverity overrides the rule severity.
	SetSeverity(tt.Severity)
}

type severityHolder struct {
	severity tt.Severity
}

func (h *severityHolder) Severity() tt.Severity     { return h.severity }
func (h *severityHolder) SetSeverity(s tt.Severity) { h.severity = s }

type ReentrancyRule struct{ severityHolder }

func NewReentrancyRule() LintRule {
	return &ReentrancyRule{severityHolder{tt.SeverityHigh}}
}

func (r *ReentrancyRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectReentrancy(pass)
}

func (r *ReentrancyRule) Name() string {
	return "reentrancy"
}

type UncheckedArithmeticRule struct{ severityHolder }

func NewUncheckedArithmeticRule() LintRule {
	return &UncheckedArithmeticRule{severityHolder{tt.SeverityMedium}}
}

func (r *UncheckedArithmeticRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectUncheckedArithmetic(pass)
}

func (r *UncheckedArithmeticRule) Name() string {
	return "unchecked-arithmetic"
}

type MissingAccessControlRule struct{ severityHolder }

func NewMissingAccessControlRule() LintRule {
	return &MissingAccessControlRule{severityHolder{tt.SeverityCritical}}
}

func (r *MissingAccessControlRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectMissingAccessControl(pass)
}

func (r *MissingAccessControlRule) Name() string {
	return "missing-access-control"
}

type ResourceLeakRule struct{ severityHolder }

func NewResourceLeakRule() LintRule {
	return &ResourceLeakRule{severityHolder{tt.SeverityMedium}}
}

func (r *ResourceLeakRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectResourceLeak(pass)
}

func (r *ResourceLeakRule) Name() string {
	return "resource-leak"
}

type UnusedAcquiresRule struct{ severityHolder }

func NewUnusedAcquiresRule() LintRule {
	return &UnusedAcquiresRule{severityHolder{tt.SeverityLow}}
}

func (r *UnusedAcquiresRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectUnusedAcquires(pass)
}

func (r *UnusedAcquiresRule) Name() string {
	return "unused-acquires"
}

type DivideBeforeMultiplyRule struct{ severityHolder }

func NewDivideBeforeMultiplyRule() LintRule {
	return &DivideBeforeMultiplyRule{severityHolder{tt.SeverityLow}}
}

func (r *DivideBeforeMultiplyRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	return lints.DetectDivideBeforeMultiply(pass)
}

func (r *DivideBeforeMultiplyRule) Name() string {
	return "divide-before-multiply"
}
