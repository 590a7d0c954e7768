package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/moveaudit/internal"
	tt "github.com/gnolang/moveaudit/internal/types"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader(`
name: vaults
budget: 5s
workers: 2
rules:
  unchecked-arithmetic:
    severity: low
  divide-before-multiply:
    severity: off
linear_types: [Ticket]
privileged_names: [withdraw_all]
`))
	require.NoError(t, err)

	assert.Equal(t, "vaults", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Budget)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, tt.SeverityLow, cfg.Rules["unchecked-arithmetic"].Severity)
	assert.Equal(t, tt.SeverityOff, cfg.Rules["divide-before-multiply"].Severity)
	assert.Equal(t, []string{"Ticket"}, cfg.RuleOptions().LinearTypes)
	assert.Equal(t, []string{"withdraw_all"}, cfg.RuleOptions().PrivilegedNames)
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultBudget, cfg.EffectiveBudget())

	cfg, err = Parse(strings.NewReader("name: x\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBudget, cfg.Budget)
	assert.NotNil(t, cfg.Rules)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		target error
	}{
		{
			name:   "invalid severity",
			input:  "rules:\n  reentrancy:\n    severity: catastrophic\n",
			target: ErrInvalidSeverity,
		},
		{
			name:   "unknown rule",
			input:  "rules:\n  no-such-rule:\n    severity: low\n",
			target: internal.ErrUnknownRule,
		},
		{name: "negative workers", input: "workers: -1\n"},
		{name: "negative budget", input: "budget: -5s\n"},
		{name: "unknown field", input: "budgett: 5s\n"},
		{name: "malformed yaml", input: "rules: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(strings.NewReader(tc.input))
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "audit.yaml")
		require.NoError(t, os.WriteFile(path, []byte("budget: 1m\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, cfg.Budget)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("error names the file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules:\n  reentrancy:\n    severity: nope\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
		assert.ErrorIs(t, err, ErrInvalidSeverity)
	})
}

func TestTemplate_RoundTrip(t *testing.T) {
	t.Parallel()

	tmpl := Template()
	assert.Len(t, tmpl.Rules, len(internal.RuleNames()))
	assert.Equal(t, tt.SeverityCritical, tmpl.Rules["missing-access-control"].Severity)

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, tmpl.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "budget: 30s")
	assert.Contains(t, string(data), "severity: critical")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tmpl, loaded)
}
