package internal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	tt "github.com/gnolang/moveaudit/internal/types"
)

// ErrUnknownRule is returned when configuration names a rule that does
// not exist.
var ErrUnknownRule = errors.New("unknown rule")

type ruleConstructor func() LintRule

// defaultRules holds the rule constructors in registry order. Findings are
// reported in this order.
var defaultRules = []ruleConstructor{
	NewReentrancyRule,
	NewUncheckedArithmeticRule,
	NewMissingAccessControlRule,
	NewResourceLeakRule,
	NewUnusedAcquiresRule,
	NewDivideBeforeMultiplyRule,
}

// RuleNames returns the ids of every built-in rule in registry order.
func RuleNames() []string {
	names := make([]string, 0, len(defaultRules))
	for _, newRule := range defaultRules {
		names = append(names, newRule().Name())
	}
	return names
}

// Registry is the ordered set of enabled rules. It is not modified after
// construction and may be shared by concurrent audits.
type Registry struct {
	rules []LintRule
	index map[string]int
}

// NewRegistry builds the registry from the built-in rules, applying the
// severity overrides of cfg. Rules configured as off are left out.
func NewRegistry(cfg map[string]tt.ConfigRule) (*Registry, error) {
	known := make(map[string]LintRule, len(defaultRules))
	ordered := make([]LintRule, 0, len(defaultRules))
	for _, newRule := range defaultRules {
		r := newRule()
		known[r.Name()] = r
		ordered = append(ordered, r)
	}

	disabled := make(map[string]bool)
	for name, rc := range cfg {
		r, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownRule, name)
		}
		switch rc.Severity {
		case tt.SeverityUnset:
		case tt.SeverityOff:
			disabled[name] = true
		default:
			r.SetSeverity(rc.Severity)
		}
	}

	enabled := slices.DeleteFunc(ordered, func(r LintRule) bool {
		return disabled[r.Name()]
	})
	return NewRegistryFromRules(enabled...), nil
}

// NewRegistryFromRules builds a registry holding exactly rules, in order.
// Later rules with an already registered name are dropped.
func NewRegistryFromRules(rules ...LintRule) *Registry {
	reg := &Registry{index: make(map[string]int, len(rules))}
	for _, r := range rules {
		if _, dup := reg.index[r.Name()]; dup {
			continue
		}
		reg.index[r.Name()] = len(reg.rules)
		reg.rules = append(reg.rules, r)
	}
	return reg
}

// Rules returns the enabled rules in registry order.
func (r *Registry) Rules() []LintRule {
	return slices.Clone(r.rules)
}

// Len returns the number of enabled rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Lookup finds an enabled rule by id.
func (r *Registry) Lookup(name string) (LintRule, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.rules[i], true
}

// Fingerprint identifies the rule set and severities. Cached reports are
// only valid for the fingerprint they were produced with.
func (r *Registry) Fingerprint() string {
	parts := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		parts = append(parts, rule.Name()+"="+rule.Severity().String())
	}
	return strings.Join(parts, ",")
}
