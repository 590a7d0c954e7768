// Package orchestrator drives a single audit from raw source to report:
// parse, evaluate the rules within a time budget, then score.
package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal"
	"github.com/gnolang/moveaudit/internal/parser"
	"github.com/gnolang/moveaudit/internal/score"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	// DefaultBudget bounds rule evaluation when none is configured.
	DefaultBudget = 30 * time.Second
	// DefaultMaxSourceSize is the largest source accepted, in bytes.
	DefaultMaxSourceSize = 4 << 20
	// UnnamedContract names reports whose file name is empty.
	UnnamedContract = "UnnamedContract"
)

// Auditor runs audits. It holds no per-audit state and may be used from
// several goroutines at once.
type Auditor struct {
	engine  *internal.Engine
	budget  time.Duration
	maxSize int
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithBudget sets the wall-clock budget of rule evaluation.
func WithBudget(d time.Duration) Option {
	return func(a *Auditor) {
		if d > 0 {
			a.budget = d
		}
	}
}

// WithMaxSourceSize sets the largest accepted source, in bytes.
func WithMaxSourceSize(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.maxSize = n
		}
	}
}

// WithLogger sets the audit logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock replaces the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Auditor evaluating the rules of engine.
func New(engine *internal.Engine, opts ...Option) *Auditor {
	a := &Auditor{
		engine:  engine,
		budget:  DefaultBudget,
		maxSize: DefaultMaxSourceSize,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Engine returns the rule engine of the auditor.
func (a *Auditor) Engine() *internal.Engine {
	return a.engine
}

// ContractName derives the report name from a file name.
func ContractName(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return UnnamedContract
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return UnnamedContract
	}
	return name
}

// Audit analyzes source and returns its report. Fatal outcomes are
// returned as a *Failure; a report is only returned when at least one rule
// completed.
func (a *Auditor) Audit(ctx context.Context, filename string, source []byte) (report *tt.Report, err error) {
	contract := ContractName(filename)
	logger := a.logger.With(zap.String("contract", contract))
	track := newTracker(logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("audit panicked", zap.Any("panic", r))
			report, err = nil, track.fail(failf(FailureInternal, "audit panicked: %v", r))
		}
		if err != nil {
			logger.Warn("audit failed", zap.Error(err))
		}
	}()

	if len(source) > a.maxSize {
		return nil, track.fail(failf(FailureInput, "source is %d bytes, limit is %d", len(source), a.maxSize))
	}
	src := string(source)

	if f := track.advance(StageParsing); f != nil {
		return nil, track.fail(f)
	}
	file, diags := parser.ParseSource(src)
	for _, d := range diags {
		if d.Fatal {
			f := failf(FailureParse, "%s", d.Message)
			f.Diagnostics = diags
			return nil, track.fail(f)
		}
	}
	if len(diags) > 0 {
		logger.Info("syntax diagnostics", zap.Int("count", len(diags)))
	}

	if f := track.advance(StageEvaluating); f != nil {
		return nil, track.fail(f)
	}
	evalCtx, cancel := context.WithTimeout(ctx, a.budget)
	started := time.Now()
	res := a.engine.Evaluate(evalCtx, file, src)
	cancel()
	logger.Debug("rules evaluated",
		zap.Int("completed", len(res.Completed)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if len(res.Completed) == 0 && len(res.Skipped) > 0 {
		cause := "budget of " + a.budget.String() + " exhausted"
		if ctx.Err() != nil {
			cause = "audit cancelled: " + ctx.Err().Error()
		}
		return nil, track.fail(failf(FailureTimeout, "%s before any rule completed", cause))
	}

	if f := track.advance(StageScoring); f != nil {
		return nil, track.fail(f)
	}
	issues := res.Issues
	if issues == nil {
		issues = []tt.Issue{}
	}
	if f := checkLocations(issues, src); f != nil {
		return nil, track.fail(f)
	}
	total := score.Score(issues)
	report = &tt.Report{
		ContractName: contract,
		Issues:       issues,
		Summary:      score.Summarize(issues, total),
		Score:        total,
		Timestamp:    a.now().UTC(),
		Partial:      len(res.Skipped) > 0,
		SkippedRules: res.Skipped,
		Diagnostics:  diags,
	}

	if f := track.advance(StageComplete); f != nil {
		return nil, track.fail(f)
	}
	logger.Info("audit complete",
		zap.Int("score", total),
		zap.Int("issues", len(issues)),
		zap.Bool("partial", report.Partial),
	)
	return report, nil
}

// checkLocations verifies that every issue points inside the source.
func checkLocations(issues []tt.Issue, src string) *Failure {
	lines := strings.Count(src, "\n") + 1
	for _, issue := range issues {
		start, end := issue.Location.Start, issue.Location.End
		if start.Line < 1 || end.Line < start.Line || end.Line > lines {
			return failf(FailureInternal, "issue %s of rule %q has location %s outside the source", issue.ID, issue.Rule, issue.Location)
		}
	}
	return nil
}
