package orchestrator

import (
	"fmt"

	tt "github.com/gnolang/moveaudit/internal/types"
)

// FailureKind classifies a fatal audit outcome.
type FailureKind string

const (
	FailureInput    FailureKind = "input"
	FailureParse    FailureKind = "parse"
	FailureTimeout  FailureKind = "timeout"
	FailureInternal FailureKind = "internal"
)

// Failure is returned instead of a report when no trustworthy analysis
// result exists. It is never an empty report in disguise.
type Failure struct {
	Kind        FailureKind     `json:"kind"`
	Message     string          `json:"message"`
	Diagnostics []tt.Diagnostic `json:"diagnostics,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

func failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
