// Package config loads the .moveaudit.yaml configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/moveaudit/internal"
	"github.com/gnolang/moveaudit/internal/lints"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	// DefaultFileName is looked up in the working directory when no
	// configuration path is given.
	DefaultFileName = ".moveaudit.yaml"
	// DefaultBudget bounds the rule evaluation of a single audit.
	DefaultBudget = 30 * time.Second
)

// ErrInvalidSeverity is returned for an unknown severity name.
var ErrInvalidSeverity = tt.ErrInvalidSeverity

// Config represents the overall configuration with a name and a map of
// rules.
type Config struct {
	Name            string                   `yaml:"name"`
	Budget          time.Duration            `yaml:"budget"`
	Workers         int                      `yaml:"workers"`
	Rules           map[string]tt.ConfigRule `yaml:"rules"`
	LinearTypes     []string                 `yaml:"linear_types,omitempty"`
	PrivilegedNames []string                 `yaml:"privileged_names,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Name:   "moveaudit",
		Budget: DefaultBudget,
		Rules:  map[string]tt.ConfigRule{},
	}
}

// Template is the default configuration listing every rule with its
// built-in severity.
func Template() *Config {
	cfg := Default()
	reg, _ := internal.NewRegistry(nil)
	for _, r := range reg.Rules() {
		cfg.Rules[r.Name()] = tt.ConfigRule{Severity: r.Severity()}
	}
	return cfg
}

// Load reads the configuration at path. An empty path reads
// DefaultFileName when it exists and falls back to Default otherwise.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open configuration: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration. Missing fields keep their
// default values.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Rules == nil {
		cfg.Rules = map[string]tt.ConfigRule{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values a decoder cannot.
func (c *Config) Validate() error {
	if c.Budget < 0 {
		return fmt.Errorf("budget must not be negative, got %s", c.Budget)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	known := make(map[string]bool)
	for _, name := range internal.RuleNames() {
		known[name] = true
	}
	for name, rule := range c.Rules {
		if !known[name] {
			return fmt.Errorf("%w %q", internal.ErrUnknownRule, name)
		}
		if rule.Severity > tt.SeverityOff {
			return fmt.Errorf("rule %q: %w %d", name, ErrInvalidSeverity, rule.Severity)
		}
	}
	return nil
}

// RuleOptions returns the rule inputs carried by the configuration.
func (c *Config) RuleOptions() lints.Options {
	return lints.Options{
		LinearTypes:     c.LinearTypes,
		PrivilegedNames: c.PrivilegedNames,
	}
}

// EffectiveBudget returns the configured budget or DefaultBudget when
// unset.
func (c *Config) EffectiveBudget() time.Duration {
	if c.Budget <= 0 {
		return DefaultBudget
	}
	return c.Budget
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores the configuration at path.
func (c *Config) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}
