package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal/analysis/cfg"
	"github.com/gnolang/moveaudit/internal/parser"
)

// variable for flags
var (
	funcName string
	output   string
)

var errFunctionNotFound = errors.New("function not found")

var cfgCmd = &cobra.Command{
	Use:   "cfg [paths...]",
	Short: "Run control flow graph analysis",
	Long: `Outputs the Control Flow Graph (CFG) of the specified function in DOT format.
Example) moveaudit cfg --func withdraw sources/*.move`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide file paths")
		}
		return runCFGAnalysis(cmd.OutOrStdout(), logger, args, funcName, output)
	},
}

func init() {
	cfgCmd.Flags().StringVar(&funcName, "func", "", "Function name for CFG analysis")
	cfgCmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the DOT file")
}

func runCFGAnalysis(w io.Writer, logger *zap.Logger, paths []string, funcName string, output string) error {
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Failed to read file", zap.String("path", path), zap.Error(err))
			continue
		}
		file, _ := parser.ParseSource(string(source))
		for _, m := range file.Modules {
			fn := m.Function(funcName)
			if fn == nil {
				continue
			}
			var buf strings.Builder
			cfg.FromFunc(fn).PrintDot(&buf, nil)
			if output != "" {
				if err := os.WriteFile(output, []byte(buf.String()), 0o644); err != nil {
					return fmt.Errorf("failed to write CFG: %w", err)
				}
				fmt.Fprintf(w, "DOT file created: %s\n", output)
				return nil
			}
			fmt.Fprintf(w, "CFG for function %s in file %s:\n%s\n", funcName, path, buf.String())
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errFunctionNotFound, funcName)
}
