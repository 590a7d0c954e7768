// Package internal provides the rule engine of moveaudit.
//
// Key components:
//
// LintRule: the contract every audit rule implements. The built-in rules
// wrap the Detect functions of package lints.
//
// Registry: the ordered set of enabled rules, built once from the
// configuration and read-only afterwards.
//
// Engine: evaluates every rule of a registry over a parsed file on a
// bounded worker pool, recovers failing rules, drops duplicates, applies
// nolint comments and numbers the resulting issues.
//
// Cache: a gob file of reports keyed by file content and rule fingerprint.
//
// Watcher: re-runs an audit when a .move file changes.
//
// Usage:
//
//	reg, err := internal.NewRegistry(cfg.Rules)
//	if err != nil {
//	    // handle error
//	}
//	engine := internal.NewEngine(reg, internal.WithWorkers(4))
//	res := engine.Evaluate(ctx, file, source)
//	for _, issue := range res.Issues {
//	    fmt.Printf("%s %s at %s\n", issue.ID, issue.Title, issue.Location)
//	}
package internal
