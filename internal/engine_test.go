package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/moveaudit/internal/lints"
	"github.com/gnolang/moveaudit/internal/parser"
	tt "github.com/gnolang/moveaudit/internal/types"
)

type mockRule struct {
	mock.Mock
	name     string
	severity tt.Severity
}

func newMockRule(name string) *mockRule {
	return &mockRule{name: name, severity: tt.SeverityMedium}
}

func (m *mockRule) Check(pass *lints.Pass) ([]tt.Issue, error) {
	args := m.Called(pass)
	issues, _ := args.Get(0).([]tt.Issue)
	return issues, args.Error(1)
}

func (m *mockRule) Name() string              { return m.name }
func (m *mockRule) Severity() tt.Severity     { return m.severity }
func (m *mockRule) SetSeverity(s tt.Severity) { m.severity = s }

// funcRule runs an arbitrary check, for behavior a mock cannot express.
type funcRule struct {
	severityHolder
	name string
	fn   func(*lints.Pass) ([]tt.Issue, error)
}

func (r *funcRule) Check(pass *lints.Pass) ([]tt.Issue, error) { return r.fn(pass) }
func (r *funcRule) Name() string                                { return r.name }

func issueAt(rule string, line, col int) tt.Issue {
	return tt.Issue{
		Rule:     rule,
		Title:    rule,
		Severity: tt.SeverityMedium,
		Location: tt.Range{
			Start: tt.Position{Line: line, Column: col},
			End:   tt.Position{Line: line, Column: col + 1},
		},
	}
}

const engineSource = `module 0x1::m {
    fun f(a: u64, b: u64, c: u64): u64 {
        let x = (a / b) * c; // nolint:divide-before-multiply
        let y = (a / b) * c;
        x + y
    }
}
`

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		reg, err := NewRegistry(nil)
		require.NoError(t, err)
		assert.Equal(t, RuleNames(), names(reg.Rules()))
		assert.Equal(t, []string{
			"reentrancy",
			"unchecked-arithmetic",
			"missing-access-control",
			"resource-leak",
			"unused-acquires",
			"divide-before-multiply",
		}, RuleNames())

		r, ok := reg.Lookup("missing-access-control")
		require.True(t, ok)
		assert.Equal(t, tt.SeverityCritical, r.Severity())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		reg, err := NewRegistry(map[string]tt.ConfigRule{
			"unchecked-arithmetic":   {Severity: tt.SeverityLow},
			"divide-before-multiply": {Severity: tt.SeverityOff},
			"reentrancy":             {},
		})
		require.NoError(t, err)
		assert.Equal(t, 5, reg.Len())

		_, ok := reg.Lookup("divide-before-multiply")
		assert.False(t, ok)

		r, ok := reg.Lookup("unchecked-arithmetic")
		require.True(t, ok)
		assert.Equal(t, tt.SeverityLow, r.Severity())

		r, ok = reg.Lookup("reentrancy")
		require.True(t, ok)
		assert.Equal(t, tt.SeverityHigh, r.Severity())
	})

	t.Run("unknown rule", func(t *testing.T) {
		t.Parallel()
		_, err := NewRegistry(map[string]tt.ConfigRule{"no-such-rule": {Severity: tt.SeverityLow}})
		assert.ErrorIs(t, err, ErrUnknownRule)
	})

	t.Run("fingerprint follows severities", func(t *testing.T) {
		t.Parallel()
		a, err := NewRegistry(nil)
		require.NoError(t, err)
		b, err := NewRegistry(map[string]tt.ConfigRule{"reentrancy": {Severity: tt.SeverityLow}})
		require.NoError(t, err)
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}

func names(rules []LintRule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Name())
	}
	return out
}

func TestEngine_RegistryOrderAndIDs(t *testing.T) {
	t.Parallel()

	first := newMockRule("first")
	first.On("Check", mock.Anything).Return([]tt.Issue{issueAt("first", 3, 1), issueAt("first", 1, 1)}, nil)
	second := newMockRule("second")
	second.On("Check", mock.Anything).Return([]tt.Issue{issueAt("second", 2, 1)}, nil)

	engine := NewEngine(NewRegistryFromRules(first, second), WithWorkers(2))
	res := engine.Evaluate(context.Background(), nil, "a\nb\nc\n")

	require.Len(t, res.Issues, 3)
	assert.Equal(t, []string{"first", "first", "second"}, []string{res.Issues[0].Rule, res.Issues[1].Rule, res.Issues[2].Rule})
	assert.Equal(t, 3, res.Issues[0].Location.Start.Line)
	assert.Equal(t, []string{"1", "2", "3"}, []string{res.Issues[0].ID, res.Issues[1].ID, res.Issues[2].ID})
	assert.Equal(t, []string{"first", "second"}, res.Completed)
	assert.Empty(t, res.Skipped)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestEngine_PassCarriesRuleAndSeverity(t *testing.T) {
	t.Parallel()

	r := newMockRule("probe")
	r.SetSeverity(tt.SeverityHigh)
	r.On("Check", mock.MatchedBy(func(p *lints.Pass) bool {
		return p.Rule == "probe" && p.Severity == tt.SeverityHigh && p.Source == "src" &&
			len(p.Options.LinearTypes) == 1
	})).Return(nil, nil)

	engine := NewEngine(NewRegistryFromRules(r), WithRuleOptions(lints.Options{LinearTypes: []string{"Ticket"}}))
	res := engine.Evaluate(context.Background(), nil, "src")
	assert.Empty(t, res.Issues)
	r.AssertExpectations(t)
}

func TestEngine_FailingRules(t *testing.T) {
	t.Parallel()

	panicking := &funcRule{name: "boom", fn: func(*lints.Pass) ([]tt.Issue, error) {
		panic("index out of range")
	}}
	erroring := newMockRule("broken")
	erroring.On("Check", mock.Anything).Return([]tt.Issue{issueAt("broken", 1, 1)}, errors.New("bad state"))
	healthy := newMockRule("healthy")
	healthy.On("Check", mock.Anything).Return([]tt.Issue{issueAt("healthy", 2, 3)}, nil)

	engine := NewEngine(NewRegistryFromRules(panicking, erroring, healthy))
	res := engine.Evaluate(context.Background(), nil, "x\ny\n")

	require.Len(t, res.Issues, 3)

	assert.Equal(t, "boom", res.Issues[0].Rule)
	assert.Equal(t, tt.SeverityInfo, res.Issues[0].Severity)
	assert.Equal(t, `rule "boom" failed: panic: index out of range`, res.Issues[0].Description)
	assert.Equal(t, tt.Position{Line: 1, Column: 1}, res.Issues[0].Location.Start)

	assert.Equal(t, "broken", res.Issues[1].Rule)
	assert.Equal(t, tt.SeverityInfo, res.Issues[1].Severity)
	assert.Equal(t, `rule "broken" failed: bad state`, res.Issues[1].Description)

	assert.Equal(t, "healthy", res.Issues[2].Rule)
	assert.Equal(t, tt.SeverityMedium, res.Issues[2].Severity)
	assert.Equal(t, []string{"boom", "broken", "healthy"}, res.Completed)
}

func TestEngine_Dedup(t *testing.T) {
	t.Parallel()

	dup := issueAt("twice", 1, 1)
	twice := newMockRule("twice")
	twice.On("Check", mock.Anything).Return([]tt.Issue{dup, dup, issueAt("twice", 1, 2)}, nil)
	other := newMockRule("other")
	other.On("Check", mock.Anything).Return([]tt.Issue{issueAt("other", 1, 1)}, nil)

	res := NewEngine(NewRegistryFromRules(twice, other)).Evaluate(context.Background(), nil, "abc")

	require.Len(t, res.Issues, 3)
	assert.Equal(t, "twice", res.Issues[0].Rule)
	assert.Equal(t, "twice", res.Issues[1].Rule)
	// the same location from a different rule is a distinct finding
	assert.Equal(t, "other", res.Issues[2].Rule)
	assert.Equal(t, res.Issues[0].Location, res.Issues[2].Location)
	assert.NotEqual(t, res.Issues[0].ID, res.Issues[2].ID)
}

func TestEngine_ClampsLocations(t *testing.T) {
	t.Parallel()

	r := newMockRule("sloppy")
	r.On("Check", mock.Anything).Return([]tt.Issue{{Rule: "sloppy"}, issueAt("sloppy", 40, 2)}, nil)

	res := NewEngine(NewRegistryFromRules(r)).Evaluate(context.Background(), nil, "one\ntwo")
	require.Len(t, res.Issues, 2)
	assert.Equal(t, tt.Position{Line: 1, Column: 1}, res.Issues[0].Location.Start)
	assert.Equal(t, 2, res.Issues[1].Location.Start.Line)
	assert.Equal(t, 2, res.Issues[1].Location.End.Line)
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()
		r := newMockRule("never")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := NewEngine(NewRegistryFromRules(r)).Evaluate(ctx, nil, "")
		assert.Empty(t, res.Issues)
		assert.Empty(t, res.Completed)
		assert.Equal(t, []string{"never"}, res.Skipped)
		r.AssertNotCalled(t, "Check", mock.Anything)
	})

	t.Run("slow rule is skipped", func(t *testing.T) {
		t.Parallel()
		slow := &funcRule{name: "slow", fn: func(p *lints.Pass) ([]tt.Issue, error) {
			<-p.Ctx.Done()
			return []tt.Issue{issueAt("slow", 1, 1)}, p.Ctx.Err()
		}}
		fast := newMockRule("fast")
		fast.On("Check", mock.Anything).Return([]tt.Issue{issueAt("fast", 1, 1)}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		res := NewEngine(NewRegistryFromRules(slow, fast), WithWorkers(2)).Evaluate(ctx, nil, "x")
		require.Len(t, res.Issues, 1)
		assert.Equal(t, "fast", res.Issues[0].Rule)
		assert.Equal(t, "1", res.Issues[0].ID)
		assert.Equal(t, []string{"fast"}, res.Completed)
		assert.Equal(t, []string{"slow"}, res.Skipped)
	})
}

func TestEngine_Nolint(t *testing.T) {
	t.Parallel()

	file, diags := parser.ParseSource(engineSource)
	require.Empty(t, diags)

	engine := NewEngine(NewRegistryFromRules(NewDivideBeforeMultiplyRule()))
	res := engine.Evaluate(context.Background(), file, engineSource)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, 4, res.Issues[0].Location.Start.Line)
	assert.Equal(t, "1", res.Issues[0].ID)
	assert.Equal(t, "(a / b) * c", res.Issues[0].CodeSnippet)
}

func TestEngine_Deterministic(t *testing.T) {
	t.Parallel()

	file, _ := parser.ParseSource(engineSource)
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	engine := NewEngine(reg)

	first := engine.Evaluate(context.Background(), file, engineSource)
	for range 5 {
		assert.Equal(t, first, engine.Evaluate(context.Background(), file, engineSource))
	}
}
