package nolint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/moveaudit/internal/parser"
	tt "github.com/gnolang/moveaudit/internal/types"
)

func TestParseNolintRules(t *testing.T) {
	t.Parallel()
	result := parseIgnoreRuleNames("rule1, rule2,rule3")
	assert.Len(t, result, 3)
	for _, rule := range []string{"rule1", "rule2", "rule3"} {
		assert.Contains(t, result, rule)
	}
}

func TestIsNolint(t *testing.T) {
	t.Parallel()
	source := `module 0x1::m {
    fun f(a: u64, b: u64): u64 {
        //nolint
        let x = a + b;
        let y = a - b;
        let z = a * b; //nolint:rule1
        //nolint:rule2
        x + y + z
    }

    //nolint:rule3
    fun g() {
    }
}
`
	file, diags := parser.ParseSource(source)
	require.Empty(t, diags)
	manager := ParseComments(file)

	tests := []struct {
		rule     string
		line     int
		expected bool
	}{
		{"anyrule", 4, true},  // covered by nolint without rules
		{"anyrule", 5, false}, // not covered
		{"rule1", 6, true},    // inline nolint:rule1
		{"rule2", 6, false},
		{"rule2", 8, true},  // standalone nolint:rule2
		{"rule3", 8, false}, // rule3 is not listed
		{"rule3", 12, true}, // function scope
		{"rule3", 13, true},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, manager.IsNolint(test.line, test.rule),
			"IsNolint at line %d for rule %q", test.line, test.rule)
	}
}

func TestFileScope(t *testing.T) {
	t.Parallel()
	source := `//nolint:reentrancy
module 0x1::m {
    fun f() {}
}
`
	file, _ := parser.ParseSource(source)
	manager := ParseComments(file)
	assert.True(t, manager.IsNolint(3, "reentrancy"))
	assert.False(t, manager.IsNolint(3, "resource-leak"))
}

func TestInvalidComments(t *testing.T) {
	t.Parallel()
	source := `module 0x1::m {
    fun f() {
        //nolintfoo
        let x = 1;
        //nolint:
        let y = 2;
    }
}
`
	file, _ := parser.ParseSource(source)
	manager := ParseComments(file)
	assert.False(t, manager.IsNolint(4, "any"))
	assert.False(t, manager.IsNolint(6, "any"))
}

func TestFilter(t *testing.T) {
	t.Parallel()
	source := `module 0x1::m {
    fun f() {
        let x = 1; //nolint:a
    }
}
`
	file, _ := parser.ParseSource(source)
	manager := ParseComments(file)
	at := func(rule string, line int) tt.Issue {
		return tt.Issue{Rule: rule, Location: tt.Range{Start: tt.Position{Line: line}}}
	}
	got := manager.Filter([]tt.Issue{at("a", 3), at("b", 3), at("a", 2)})
	assert.Equal(t, []tt.Issue{at("b", 3), at("a", 2)}, got)
}
