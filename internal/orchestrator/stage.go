package orchestrator

import (
	"slices"

	"go.uber.org/zap"
)

// Stage is a step of a single audit.
type Stage int

const (
	StageReceived Stage = iota
	StageParsing
	StageEvaluating
	StageScoring
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageParsing:
		return "parsing"
	case StageEvaluating:
		return "evaluating"
	case StageScoring:
		return "scoring"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var transitions = map[Stage][]Stage{
	StageReceived:   {StageParsing, StageFailed},
	StageParsing:    {StageEvaluating, StageFailed},
	StageEvaluating: {StageScoring, StageFailed},
	StageScoring:    {StageComplete, StageFailed},
}

// CanTransition reports whether an audit may move from one stage to
// another. Complete and Failed are terminal.
func CanTransition(from, to Stage) bool {
	return slices.Contains(transitions[from], to)
}

// tracker follows one audit through its stages.
type tracker struct {
	stage   Stage
	history []Stage
	logger  *zap.Logger
}

func newTracker(logger *zap.Logger) *tracker {
	return &tracker{stage: StageReceived, history: []Stage{StageReceived}, logger: logger}
}

func (t *tracker) advance(to Stage) *Failure {
	if !CanTransition(t.stage, to) {
		return failf(FailureInternal, "illegal stage transition %s -> %s", t.stage, to)
	}
	t.logger.Debug("audit stage", zap.Stringer("from", t.stage), zap.Stringer("to", to))
	t.stage = to
	t.history = append(t.history, to)
	return nil
}

// fail moves to Failed from any non-terminal stage.
func (t *tracker) fail(f *Failure) *Failure {
	if t.stage != StageFailed && t.stage != StageComplete {
		t.logger.Debug("audit stage", zap.Stringer("from", t.stage), zap.Stringer("to", StageFailed))
		t.stage = StageFailed
		t.history = append(t.history, StageFailed)
	}
	return f
}
