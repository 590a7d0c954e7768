package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Severity
	}{
		{"critical", SeverityCritical},
		{"HIGH", SeverityHigh},
		{" Medium ", SeverityMedium},
		{"low", SeverityLow},
		{"info", SeverityInfo},
		{"informational", SeverityInfo},
		{"off", SeverityOff},
	}
	for _, tc := range tests {
		got, err := ParseSeverity(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseSeverity("severe")
	assert.ErrorIs(t, err, ErrInvalidSeverity)
	assert.Contains(t, err.Error(), `"severe"`)
}

func TestSeverityOrder(t *testing.T) {
	t.Parallel()

	for i := 1; i < len(Severities); i++ {
		assert.Less(t, Severities[i-1], Severities[i])
	}
	assert.Equal(t, "Unknown", Severity(42).String())
}

func TestSeverity_JSONAndYAML(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(SeverityHigh)
	require.NoError(t, err)
	assert.JSONEq(t, `"High"`, string(data))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"low"`), &s))
	assert.Equal(t, SeverityLow, s)
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`3`), &s))

	out, err := yaml.Marshal(ConfigRule{Severity: SeverityMedium})
	require.NoError(t, err)
	assert.Equal(t, "severity: medium\n", string(out))

	var rule ConfigRule
	require.NoError(t, yaml.Unmarshal([]byte("severity: Critical"), &rule))
	assert.Equal(t, SeverityCritical, rule.Severity)
	assert.ErrorIs(t, yaml.Unmarshal([]byte("severity: bad"), &rule), ErrInvalidSeverity)
}

func TestPositionAndRange(t *testing.T) {
	t.Parallel()

	a := Position{Line: 2, Column: 5}
	b := Position{Line: 2, Column: 9}
	c := Position{Line: 3, Column: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, c.Before(a))
	assert.False(t, a.Before(a))

	r := Range{Start: b, End: c}.Join(Range{Start: a, End: b})
	assert.Equal(t, Range{Start: a, End: c}, r)
	assert.Equal(t, "2:5-3:1", r.String())
}

func TestReportJSON(t *testing.T) {
	t.Parallel()

	report := Report{
		ContractName: "vault",
		Issues: []Issue{{
			ID:       "1",
			Rule:     "resource-leak",
			Title:    "Resource leak",
			Severity: SeverityMedium,
			Location: Range{
				Start: Position{Offset: 40, Line: 3, Column: 5},
				End:   Position{Offset: 52, Line: 3, Column: 17},
			},
			CodeSnippet: "c: Coin<AptosCoin>",
		}},
		Summary:   "s",
		Score:     90,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contractName": "vault",
		"issues": [{
			"id": "1",
			"rule": "resource-leak",
			"title": "Resource leak",
			"description": "",
			"severity": "Medium",
			"location": {"start": {"line": 3, "column": 5}, "end": {"line": 3, "column": 17}},
			"codeSnippet": "c: Coin<AptosCoin>"
		}],
		"summary": "s",
		"score": 90,
		"timestamp": "2024-05-01T12:00:00Z"
	}`, string(data))
}
