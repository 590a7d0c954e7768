// Package audit is the public entry point of moveaudit: it builds an
// auditor from configuration and runs it over files and directories.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal"
	"github.com/gnolang/moveaudit/internal/config"
	"github.com/gnolang/moveaudit/internal/orchestrator"
	tt "github.com/gnolang/moveaudit/internal/types"
	"github.com/gnolang/moveaudit/scanner"
)

// Extension is the only file extension audited.
const Extension = ".move"

// ErrUnsupportedFile is returned for a file that is not Move source.
var ErrUnsupportedFile = errors.New("invalid file type, only .move files are accepted")

// Auditor produces a report for one source file.
type Auditor interface {
	Audit(ctx context.Context, filename string, source []byte) (*tt.Report, error)
}

// New builds an auditor from the configuration at configPath. Rules named
// in ignore are switched off.
func New(configPath string, ignore []string, logger *zap.Logger) (*orchestrator.Auditor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, ignore, logger)
}

// NewFromConfig builds an auditor from cfg.
func NewFromConfig(cfg *config.Config, ignore []string, logger *zap.Logger) (*orchestrator.Auditor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := make(map[string]tt.ConfigRule, len(cfg.Rules)+len(ignore))
	for name, rule := range cfg.Rules {
		rules[name] = rule
	}
	for _, name := range ignore {
		rules[strings.TrimSpace(name)] = tt.ConfigRule{Severity: tt.SeverityOff}
	}

	reg, err := internal.NewRegistry(rules)
	if err != nil {
		return nil, err
	}
	engine := internal.NewEngine(reg,
		internal.WithWorkers(cfg.Workers),
		internal.WithRuleOptions(cfg.RuleOptions()),
		internal.WithLogger(logger),
	)
	return orchestrator.New(engine,
		orchestrator.WithBudget(cfg.EffectiveBudget()),
		orchestrator.WithLogger(logger),
	), nil
}

// IsMoveFile reports whether path has the Move source extension.
func IsMoveFile(path string) bool {
	return filepath.Ext(path) == Extension
}

// ProcessSource audits an in-memory source.
func ProcessSource(ctx context.Context, a Auditor, filename string, source []byte) (*tt.Report, error) {
	if !IsMoveFile(filename) {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFile)
	}
	return a.Audit(ctx, filename, source)
}

// ProcessFile reads and audits one file.
func ProcessFile(ctx context.Context, a Auditor, path string) (*tt.Report, error) {
	if !IsMoveFile(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return a.Audit(ctx, path, source)
}

// Result is the outcome of auditing one file.
type Result struct {
	Path   string
	Report *tt.Report
	Err    error
}

// Options tunes path processing.
type Options struct {
	// Workers bounds concurrent audits. Zero means one per CPU.
	Workers int
	// Progress receives a progress bar for directories. Nil disables it.
	Progress io.Writer
	// IgnorePaths excludes files and directories below them.
	IgnorePaths []string
}

// ProcessPaths audits every path in turn and concatenates the results.
func ProcessPaths(ctx context.Context, logger *zap.Logger, a Auditor, paths []string, opts Options) ([]Result, error) {
	var all []Result
	for _, path := range paths {
		results, err := ProcessPath(ctx, logger, a, path, opts)
		all = append(all, results...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// ProcessPath audits a file, or every .move file below a directory except
// hidden directories, build output and opts.IgnorePaths. The error is only
// set when the path itself cannot be processed; failures of single files
// are reported in their Result. Results are sorted by path.
func ProcessPath(ctx context.Context, logger *zap.Logger, a Auditor, path string, opts Options) ([]Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	scan := scanner.New(path, Extension).Ignore(opts.IgnorePaths...)
	if scan.Ignored(path) {
		logger.Debug("skipping ignored path", zap.String("path", path))
		return nil, nil
	}

	if !info.IsDir() {
		if !IsMoveFile(path) {
			return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
		}
		report, err := ProcessFile(ctx, a, path)
		return []Result{{Path: path, Report: report, Err: err}}, nil
	}

	found, err := scan.Scan()
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", path, err)
	}
	files := make([]string, 0, len(found))
	for _, f := range found {
		files = append(files, f.Path)
	}

	maxWorkers := opts.Workers
	if maxWorkers < 1 {
		maxWorkers = runtime.NumCPU()
	}
	bar := newProgressBar(opts.Progress, len(files), path)

	results := make([]Result, len(files))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

dispatch:
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := ProcessFile(ctx, a, file)
			if err != nil {
				logger.Error("error processing file", zap.String("file", file), zap.Error(err))
			}
			results[i] = Result{Path: file, Report: report, Err: err}
			if bar != nil {
				_ = bar.Add(1)
			}
		}()
	}
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	done := slices.DeleteFunc(results, func(r Result) bool { return r.Path == "" })
	slices.SortFunc(done, func(x, y Result) int { return strings.Compare(x.Path, y.Path) })
	if err := ctx.Err(); err != nil {
		return done, err
	}
	return done, nil
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	if w == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
