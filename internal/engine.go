package internal

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/moveaudit/internal/ast"
	"github.com/gnolang/moveaudit/internal/lints"
	"github.com/gnolang/moveaudit/internal/nolint"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// Engine evaluates the rules of a registry over a parsed file.
type Engine struct {
	registry *Registry
	workers  int
	options  lints.Options
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of rules evaluated at once. Values below 1
// mean one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithRuleOptions sets the inputs handed to every rule.
func WithRuleOptions(o lints.Options) Option {
	return func(e *Engine) { e.options = o }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine evaluating the rules of reg.
func NewEngine(reg *Registry, opts ...Option) *Engine {
	e := &Engine{registry: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// Registry returns the rule registry of the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Fingerprint identifies the rules and rule options of the engine.
func (e *Engine) Fingerprint() string {
	return e.registry.Fingerprint() +
		";linear=" + strings.Join(e.options.LinearTypes, ",") +
		";privileged=" + strings.Join(e.options.PrivilegedNames, ",")
}

// EvalResult is the outcome of evaluating every rule over one file.
type EvalResult struct {
	// Issues holds the findings in registry order, then emission order.
	Issues []tt.Issue
	// Completed lists the rules that ran to completion.
	Completed []string
	// Skipped lists the rules cancelled before they finished.
	Skipped []string
}

type ruleOutcome struct {
	issues    []tt.Issue
	cancelled bool
}

// Evaluate runs every rule over file. Rules still running when ctx is
// done are reported in Skipped and contribute no issues.
func (e *Engine) Evaluate(ctx context.Context, file *ast.File, source string) EvalResult {
	rules := e.registry.Rules()
	outcomes := make([]ruleOutcome, len(rules))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, r := range rules {
		g.Go(func() error {
			outcomes[i] = e.runRule(ctx, r, file, source)
			return nil
		})
	}
	_ = g.Wait()

	nolintMgr := nolint.ParseComments(file)
	lineCount := strings.Count(source, "\n") + 1

	var res EvalResult
	for i, r := range rules {
		out := outcomes[i]
		if out.cancelled {
			res.Skipped = append(res.Skipped, r.Name())
			continue
		}
		res.Completed = append(res.Completed, r.Name())
		issues := dedupIssues(out.issues)
		for j := range issues {
			issues[j].Location = clampRange(issues[j].Location, lineCount)
		}
		res.Issues = append(res.Issues, nolintMgr.Filter(issues)...)
	}

	for i := range res.Issues {
		if res.Issues[i].ID == "" {
			res.Issues[i].ID = strconv.Itoa(i + 1)
		}
	}
	return res
}

func (e *Engine) runRule(ctx context.Context, r LintRule, file *ast.File, source string) (out ruleOutcome) {
	name := r.Name()
	if ctx.Err() != nil {
		return ruleOutcome{cancelled: true}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("rule panicked", zap.String("rule", name), zap.Any("panic", rec))
			out = ruleOutcome{issues: []tt.Issue{failureIssue(name, fmt.Errorf("panic: %v", rec))}}
		}
	}()

	pass := &lints.Pass{
		Ctx:      ctx,
		File:     file,
		Source:   source,
		Rule:     name,
		Severity: r.Severity(),
		Options:  e.options,
	}
	issues, err := r.Check(pass)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logger.Debug("rule cancelled", zap.String("rule", name), zap.Duration("elapsed", time.Since(start)))
		return ruleOutcome{cancelled: true}
	default:
		e.logger.Error("rule failed", zap.String("rule", name), zap.Error(err))
		return ruleOutcome{issues: []tt.Issue{failureIssue(name, err)}}
	}

	e.logger.Debug("rule finished",
		zap.String("rule", name),
		zap.Int("issues", len(issues)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ruleOutcome{issues: issues}
}

// RuleFailureTitle is the title of issues reporting a rule that failed.
const RuleFailureTitle = "Rule failed"

// failureIssue reports a rule that could not complete. It never carries
// more than informational weight.
func failureIssue(rule string, err error) tt.Issue {
	at := tt.Position{Line: 1, Column: 1}
	return tt.Issue{
		Rule:        rule,
		Title:       RuleFailureTitle,
		Description: fmt.Sprintf("rule %q failed: %v", rule, err),
		Severity:    tt.SeverityInfo,
		Location:    tt.Range{Start: at, End: at},
	}
}

// dedupIssues drops repeated findings at the same location, keeping the
// first one.
func dedupIssues(issues []tt.Issue) []tt.Issue {
	if len(issues) < 2 {
		return issues
	}
	seen := make(map[tt.Range]bool, len(issues))
	out := issues[:0:0]
	for _, issue := range issues {
		key := issue.Location
		key.Start.Offset, key.End.Offset = 0, 0
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, issue)
	}
	return out
}

func clampRange(r tt.Range, lines int) tt.Range {
	r.Start = clampPosition(r.Start, lines)
	r.End = clampPosition(r.End, lines)
	if r.End.Before(r.Start) {
		r.End = r.Start
	}
	return r
}

func clampPosition(p tt.Position, lines int) tt.Position {
	if p.Line < 1 {
		return tt.Position{Line: 1, Column: 1}
	}
	if p.Line > lines {
		p.Line = lines
	}
	if p.Column < 1 {
		p.Column = 1
	}
	return p
}
