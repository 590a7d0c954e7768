package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/audit"
	"github.com/gnolang/moveaudit/formatter"
	"github.com/gnolang/moveaudit/internal/config"
	"github.com/gnolang/moveaudit/internal/orchestrator"
	"github.com/gnolang/moveaudit/internal/sink"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	formatText  = "text"
	formatJSON  = "json"
	formatSARIF = "sarif"
)

// auditOptions is shared by every command that runs audits.
type auditOptions struct {
	configPath   string
	ignore       string
	ignorePaths  string
	format       string
	outPath      string
	cacheDir     string
	publishURL   string
	publishToken string
	progress     io.Writer
}

var auditFlags auditOptions

var auditCmd = &cobra.Command{
	Use:   "audit [paths...]",
	Short: "Audit Move source files and directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide file or directory paths")
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
		defer cancel()

		opts := auditFlags
		opts.configPath = cfgFile
		if opts.format == formatText {
			opts.progress = os.Stderr
		}
		return runAudit(ctx, cmd.OutOrStdout(), logger, opts, args)
	},
}

func init() {
	addAuditFlags(auditCmd, &auditFlags)
	auditCmd.Flags().StringVar(&auditFlags.format, "format", formatText, "Output format: text, json or sarif")
	auditCmd.Flags().StringVarP(&auditFlags.outPath, "output", "o", "", "Write the output to a file instead of stdout")
	auditCmd.Flags().StringVar(&auditFlags.ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
	auditCmd.Flags().StringVar(&auditFlags.cacheDir, "cache-dir", "", "Directory of the report cache (disabled when empty)")
}

func addAuditFlags(cmd *cobra.Command, opts *auditOptions) {
	cmd.Flags().StringVar(&opts.ignore, "ignore", "", "Comma-separated list of rules to ignore")
	cmd.Flags().StringVar(&opts.publishURL, "publish", "", "Base URL of a report store receiving every report")
	cmd.Flags().StringVar(&opts.publishToken, "token", "", "Bearer token for the report store")
}

// newAuditor builds the auditor described by opts.
func newAuditor(logger *zap.Logger, opts auditOptions) (audit.Auditor, *config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	auditor, err := audit.NewFromConfig(cfg, splitList(opts.ignore), logger)
	if err != nil {
		return nil, nil, err
	}
	if opts.cacheDir == "" {
		return auditor, cfg, nil
	}
	cached, err := audit.WithCache(auditor, opts.cacheDir, logger)
	if err != nil {
		return nil, nil, err
	}
	return cached, cfg, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runAudit(ctx context.Context, w io.Writer, logger *zap.Logger, opts auditOptions, paths []string) error {
	switch opts.format {
	case formatText, formatJSON, formatSARIF:
	default:
		return fmt.Errorf("unknown output format %q", opts.format)
	}

	auditor, cfg, err := newAuditor(logger, opts)
	if err != nil {
		return err
	}

	results, err := audit.ProcessPaths(ctx, logger, auditor, paths, audit.Options{
		Workers:     cfg.Workers,
		Progress:    opts.progress,
		IgnorePaths: splitList(opts.ignorePaths),
	})
	if err != nil {
		logger.Error("Error processing files", zap.Error(err))
		return err
	}

	if opts.publishURL != "" {
		publishReports(ctx, logger, sink.New(opts.publishURL, opts.publishToken, logger), results)
	}

	out := w
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch opts.format {
	case formatJSON:
		err = writeJSON(out, results)
	case formatSARIF:
		err = writeSARIF(out, results)
	default:
		writeText(out, logger, results)
	}
	if err != nil {
		return err
	}

	if hasFindings(results) {
		return ErrIssuesFound
	}
	return nil
}

func hasFindings(results []audit.Result) bool {
	for _, r := range results {
		if r.Err != nil || r.Report == nil || r.Report.Score < 100 {
			return true
		}
	}
	return false
}

func publishReports(ctx context.Context, logger *zap.Logger, client *sink.Client, results []audit.Result) {
	for _, r := range results {
		if r.Report == nil {
			continue
		}
		if _, err := client.Save(ctx, r.Report); err != nil {
			logger.Warn("Failed to publish report", zap.String("file", r.Path), zap.Error(err))
		}
	}
}

func writeText(w io.Writer, logger *zap.Logger, results []audit.Result) {
	for _, r := range results {
		if r.Err != nil {
			writeFailure(w, r.Path, r.Err)
			continue
		}
		source, err := os.ReadFile(r.Path)
		if err != nil {
			logger.Error("Error reading source file", zap.String("file", r.Path), zap.Error(err))
			continue
		}
		fmt.Fprintln(w, formatter.FormatReport(r.Report, r.Path, formatter.NewSourceCode(string(source))))
	}
}

func writeFailure(w io.Writer, path string, err error) {
	fmt.Fprintf(w, "%s: %v\n", path, err)
	var f *orchestrator.Failure
	if errors.As(err, &f) {
		for _, d := range f.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
}

// fileResult is the JSON shape of one audited file.
type fileResult struct {
	File   string     `json:"file"`
	Report *tt.Report `json:"report,omitempty"`
	Error  any        `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []audit.Result) error {
	out := make([]fileResult, 0, len(results))
	for _, r := range results {
		fr := fileResult{File: r.Path, Report: r.Report}
		if r.Err != nil {
			var f *orchestrator.Failure
			if errors.As(r.Err, &f) {
				fr.Error = f
			} else {
				fr.Error = map[string]string{"message": r.Err.Error()}
			}
		}
		out = append(out, fr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("error marshalling reports to JSON: %w", err)
	}
	return nil
}

func writeSARIF(w io.Writer, results []audit.Result) error {
	files := make([]formatter.FileReport, 0, len(results))
	for _, r := range results {
		files = append(files, formatter.FileReport{Path: r.Path, Report: r.Report})
	}
	return formatter.WriteSARIF(w, files)
}
