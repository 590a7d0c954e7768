package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/audit"
	"github.com/gnolang/moveaudit/formatter"
	"github.com/gnolang/moveaudit/internal"
)

var watchFlags auditOptions

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-audit Move files whenever they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide directories to watch")
		}
		opts := watchFlags
		opts.configPath = cfgFile
		return runWatch(commandContext(cmd), cmd.OutOrStdout(), logger, opts, args)
	},
}

func init() {
	addAuditFlags(watchCmd, &watchFlags)
}

// runWatch prints a fresh report for every changed file until ctx is done.
func runWatch(ctx context.Context, w io.Writer, logger *zap.Logger, opts auditOptions, dirs []string) error {
	auditor, _, err := newAuditor(logger, opts)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	handle := func(ctx context.Context, path string) {
		report, err := audit.ProcessFile(ctx, auditor, path)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			writeFailure(w, path, err)
			return
		}
		source, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Error reading source file", zap.String("file", path), zap.Error(err))
			return
		}
		fmt.Fprintln(w, formatter.FormatReport(report, path, formatter.NewSourceCode(string(source))))
	}

	watcher, err := internal.NewWatcher(dirs, handle, logger)
	if err != nil {
		return err
	}
	logger.Info("watching for changes", zap.Strings("dirs", dirs))
	return watcher.Run(ctx)
}
