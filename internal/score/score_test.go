package score

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	tt "github.com/gnolang/moveaudit/internal/types"
)

func issues(sevs ...tt.Severity) []tt.Issue {
	out := make([]tt.Issue, 0, len(sevs))
	for _, s := range sevs {
		out = append(out, tt.Issue{Severity: s})
	}
	return out
}

const (
	crit = tt.SeverityCritical
	high = tt.SeverityHigh
	med  = tt.SeverityMedium
	low  = tt.SeverityLow
	info = tt.SeverityInfo
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		issues []tt.Issue
		want   int
	}{
		{"no issues", nil, 100},
		{"one critical", issues(crit), 75},
		{"one of each", issues(crit, high, med, low, info), 44},
		{"infos only", issues(info, info, info), 97},
		{"floored at zero", issues(crit, crit, crit, crit, crit), 0},
		{"exactly zero", issues(crit, crit, crit, crit), 0},
		{"unknown severity costs nothing", issues(tt.SeverityUnset), 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Score(tc.issues))
		})
	}
}

func TestScore_OrderIndependentAndMonotone(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for range 200 {
		n := rng.Intn(12)
		list := make([]tt.Issue, 0, n)
		for range n {
			list = append(list, tt.Issue{Severity: tt.Severities[rng.Intn(len(tt.Severities))]})
		}
		base := Score(list)
		assert.GreaterOrEqual(t, base, 0)
		assert.LessOrEqual(t, base, 100)

		shuffled := append([]tt.Issue(nil), list...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, base, Score(shuffled))
		assert.Equal(t, Summarize(list, base), Summarize(shuffled, base))

		for _, s := range tt.Severities {
			assert.LessOrEqual(t, Score(append(list, tt.Issue{Severity: s})), base)
		}
	}
}

func TestRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		issues []tt.Issue
		want   RiskLevel
	}{
		{"none", nil, RiskLow},
		{"lows and infos", issues(low, low, info, info), RiskLow},
		{"single medium", issues(med), RiskLow},
		{"two mediums", issues(med, med), RiskMedium},
		{"one high", issues(high, low), RiskMedium},
		{"two highs", issues(high, high), RiskHigh},
		{"one critical", issues(crit), RiskHigh},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Risk(tc.issues))
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	c := Count(issues(crit, high, high, med, low, low, low, info, tt.SeverityUnset))
	assert.Equal(t, Counts{Critical: 1, High: 2, Medium: 1, Low: 3, Info: 1}, c)
	assert.Equal(t, 8, c.Total())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		got := Summarize(nil, 100)
		assert.Equal(t,
			"This contract has a security score of 100/100, indicating a Low risk level.\n"+
				"We identified 0 issues: 0 critical, 0 high, 0 medium, 0 low, and 0 informational.",
			got)
	})

	t.Run("critical issues ask for fixes", func(t *testing.T) {
		t.Parallel()
		list := issues(crit, med, info)
		got := Summarize(list, Score(list))
		assert.True(t, strings.HasPrefix(got, "This contract has a security score of 64/100, indicating a High risk level."))
		assert.Contains(t, got, "We identified 3 issues: 1 critical, 0 high, 1 medium, 0 low, and 1 informational.")
		assert.True(t, strings.HasSuffix(got, "Please address all critical and high severity issues before deploying to the mainnet."))
	})
}
