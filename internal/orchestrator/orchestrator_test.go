package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal"
	"github.com/gnolang/moveaudit/internal/lints"
	"github.com/gnolang/moveaudit/internal/score"
	tt "github.com/gnolang/moveaudit/internal/types"
)

var fixedTime = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newAuditor(t *testing.T, opts ...Option) *Auditor {
	t.Helper()
	reg, err := internal.NewRegistry(nil)
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return New(internal.NewEngine(reg), opts...)
}

type stubRule struct {
	name  string
	check func(*lints.Pass) ([]tt.Issue, error)
}

func (r *stubRule) Check(p *lints.Pass) ([]tt.Issue, error) { return r.check(p) }
func (r *stubRule) Name() string                             { return r.name }
func (r *stubRule) Severity() tt.Severity                    { return tt.SeverityLow }
func (r *stubRule) SetSeverity(tt.Severity)                  {}

func waitForCancel(p *lints.Pass) ([]tt.Issue, error) {
	<-p.Ctx.Done()
	return nil, p.Ctx.Err()
}

func lowIssue(p *lints.Pass) ([]tt.Issue, error) {
	at := tt.Position{Line: 1, Column: 1}
	return []tt.Issue{p.NewIssue(tt.Range{Start: at, End: at}, "stub", "stub finding", "")}, nil
}

const initializeSource = `module 0x1::registry {
    struct Config has key { admin: address }

    public entry fun initialize(account: &signer) {
        move_to(account, Config { admin: @0x1 });
    }
}
`

const leakSource = `module 0x1::bank {
    use aptos_framework::coin::{Self, Coin};
    use aptos_framework::aptos_coin::AptosCoin;

    fun keep(c: Coin<AptosCoin>, ok: bool) {
        if (ok) {
            coin::deposit(@0x1, c);
        }
    }
}
`

func TestAudit_MissingAccessControl(t *testing.T) {
	t.Parallel()

	report, err := newAuditor(t).Audit(context.Background(), "registry.move", []byte(initializeSource))
	require.NoError(t, err)

	assert.Equal(t, "registry", report.ContractName)
	var found bool
	for _, issue := range report.Issues {
		if issue.Rule == "missing-access-control" {
			found = true
			assert.Equal(t, tt.SeverityCritical, issue.Severity)
			assert.Equal(t, 4, issue.Location.Start.Line)
		}
	}
	assert.True(t, found)
	assert.LessOrEqual(t, report.Score, 75)
	assert.Contains(t, report.Summary, "High risk level")
	assert.Equal(t, fixedTime, report.Timestamp)
	assert.False(t, report.Partial)
}

func TestAudit_ResourceLeak(t *testing.T) {
	t.Parallel()

	report, err := newAuditor(t).Audit(context.Background(), "bank.move", []byte(leakSource))
	require.NoError(t, err)

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, "1", issue.ID)
	assert.Equal(t, "resource-leak", issue.Rule)
	assert.Equal(t, tt.SeverityMedium, issue.Severity)
	assert.Equal(t, "c: Coin<AptosCoin>", issue.CodeSnippet)
	assert.Equal(t, 90, report.Score)
}

func TestAudit_EmptySource(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"", "   \n", "// just a comment\n"} {
		report, err := newAuditor(t).Audit(context.Background(), "empty.move", []byte(src))
		require.NoError(t, err)

		assert.Empty(t, report.Issues)
		assert.NotNil(t, report.Issues)
		assert.Equal(t, 100, report.Score)
		assert.Contains(t, report.Summary, "Low risk level")
		assert.Contains(t, report.Summary, "0 critical, 0 high, 0 medium, 0 low")
		assert.Empty(t, report.Diagnostics)
	}
}

func TestAudit_Idempotent(t *testing.T) {
	t.Parallel()

	auditor := newAuditor(t)
	sources := []string{initializeSource, leakSource, "module 0x1::m { fun f(a: u64): u64 { a + 1 } }"}
	for _, src := range sources {
		first, err := auditor.Audit(context.Background(), "m.move", []byte(src))
		require.NoError(t, err)
		second, err := auditor.Audit(context.Background(), "m.move", []byte(src))
		require.NoError(t, err)

		a, err := json.Marshal(first.Issues)
		require.NoError(t, err)
		b, err := json.Marshal(second.Issues)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestAudit_LocationsWithinSource(t *testing.T) {
	t.Parallel()

	sources := []string{
		initializeSource,
		leakSource,
		"module 0x1::broken {\n    fun f( { let x = ; }\n    public fun set_fee(v: u64) { }\n}",
		"module 0x1::m { public fun mint(a: u64, b: u64): u64 { (a / b) * 3 } }",
	}
	auditor := newAuditor(t)
	for _, src := range sources {
		report, err := auditor.Audit(context.Background(), "x.move", []byte(src))
		require.NoError(t, err)
		lines := strings.Count(src, "\n") + 1
		for _, issue := range report.Issues {
			loc := issue.Location
			assert.GreaterOrEqual(t, loc.Start.Line, 1)
			assert.LessOrEqual(t, loc.Start.Line, loc.End.Line)
			assert.LessOrEqual(t, loc.End.Line, lines)
		}
	}
}

func TestAudit_SyntaxDiagnostics(t *testing.T) {
	t.Parallel()

	src := "module 0x1::broken {\n    fun f() { let = 1; }\n    public fun set_fee(v: u64) { }\n}\n"
	report, err := newAuditor(t).Audit(context.Background(), "broken.move", []byte(src))
	require.NoError(t, err)

	assert.NotEmpty(t, report.Diagnostics)
	for _, d := range report.Diagnostics {
		assert.False(t, d.Fatal)
	}
	assert.Equal(t, score.Score(report.Issues), report.Score)
}

func TestAudit_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		opts   []Option
		kind   FailureKind
	}{
		{name: "binary input", source: "\x00\x01\x02module", kind: FailureParse},
		{name: "invalid utf8", source: "module \xff\xfe", kind: FailureParse},
		{name: "no module", source: "hello world", kind: FailureParse},
		{name: "too large", source: initializeSource, opts: []Option{WithMaxSourceSize(16)}, kind: FailureInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			report, err := newAuditor(t, tc.opts...).Audit(context.Background(), "x.move", []byte(tc.source))
			assert.Nil(t, report)

			var f *Failure
			require.True(t, errors.As(err, &f))
			assert.Equal(t, tc.kind, f.Kind)
			assert.NotEmpty(t, f.Message)
			if tc.kind == FailureParse {
				require.NotEmpty(t, f.Diagnostics)
				assert.True(t, f.Diagnostics[0].Fatal)
			}
		})
	}
}

func TestAudit_Budget(t *testing.T) {
	t.Parallel()

	src := []byte("module 0x1::m {}")

	t.Run("partial report", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewRegistryFromRules(
			&stubRule{name: "slow", check: waitForCancel},
			&stubRule{name: "fast", check: lowIssue},
		)
		auditor := New(internal.NewEngine(reg, internal.WithWorkers(2)), WithBudget(30*time.Millisecond))

		report, err := auditor.Audit(context.Background(), "m.move", src)
		require.NoError(t, err)
		assert.True(t, report.Partial)
		assert.Equal(t, []string{"slow"}, report.SkippedRules)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "fast", report.Issues[0].Rule)
		assert.Equal(t, 95, report.Score)
	})

	t.Run("no rule completed", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewRegistryFromRules(&stubRule{name: "slow", check: waitForCancel})
		auditor := New(internal.NewEngine(reg), WithBudget(20*time.Millisecond))

		report, err := auditor.Audit(context.Background(), "m.move", src)
		assert.Nil(t, report)
		var f *Failure
		require.True(t, errors.As(err, &f))
		assert.Equal(t, FailureTimeout, f.Kind)
		assert.Contains(t, f.Message, "budget")
	})

	t.Run("caller cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newAuditor(t).Audit(ctx, "m.move", src)
		var f *Failure
		require.True(t, errors.As(err, &f))
		assert.Equal(t, FailureTimeout, f.Kind)
		assert.Contains(t, f.Message, "cancelled")
	})
}

func TestAudit_PanickingRule(t *testing.T) {
	t.Parallel()

	reg := internal.NewRegistryFromRules(
		&stubRule{name: "panics", check: func(*lints.Pass) ([]tt.Issue, error) { panic("boom") }},
		&stubRule{name: "fine", check: lowIssue},
	)
	report, err := New(internal.NewEngine(reg)).Audit(context.Background(), "m.move", []byte("module 0x1::m {}"))
	require.NoError(t, err)

	require.Len(t, report.Issues, 2)
	assert.Equal(t, tt.SeverityInfo, report.Issues[0].Severity)
	assert.Contains(t, report.Issues[0].Description, `rule "panics" failed`)
	assert.Equal(t, "fine", report.Issues[1].Rule)
	assert.Equal(t, 94, report.Score)
}

func TestContractName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"vault.move":        "vault",
		"sources/pool.move": "pool",
		"archive.v2.move":   "archive.v2",
		"":                  UnnamedContract,
		".move":             UnnamedContract,
		"/":                 UnnamedContract,
		"noext":             "noext",
	}
	for in, want := range tests {
		assert.Equal(t, want, ContractName(in), in)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, CanTransition(StageReceived, StageParsing))
	assert.True(t, CanTransition(StageParsing, StageEvaluating))
	assert.True(t, CanTransition(StageEvaluating, StageScoring))
	assert.True(t, CanTransition(StageScoring, StageComplete))
	for _, s := range []Stage{StageReceived, StageParsing, StageEvaluating, StageScoring} {
		assert.True(t, CanTransition(s, StageFailed), s.String())
	}

	assert.False(t, CanTransition(StageReceived, StageScoring))
	assert.False(t, CanTransition(StageComplete, StageFailed))
	assert.False(t, CanTransition(StageFailed, StageParsing))
	assert.False(t, CanTransition(StageScoring, StageEvaluating))
}

func TestTracker(t *testing.T) {
	t.Parallel()

	track := newTracker(zap.NewNop())
	require.Nil(t, track.advance(StageParsing))
	f := track.advance(StageComplete)
	require.NotNil(t, f)
	assert.Equal(t, FailureInternal, f.Kind)

	track.fail(f)
	assert.Equal(t, []Stage{StageReceived, StageParsing, StageFailed}, track.history)
	assert.NotNil(t, track.advance(StageEvaluating))
}

func TestFailure_Error(t *testing.T) {
	t.Parallel()

	f := &Failure{Kind: FailureTimeout, Message: "budget exhausted"}
	assert.Equal(t, "timeout failure: budget exhausted", f.Error())

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"timeout","message":"budget exhausted"}`, string(data))
}
