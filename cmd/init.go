package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal/config"
)

// initCmd: moveaudit init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new audit configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", path)
		return nil
	},
}

// initConfigurationFile writes every rule at its default severity so the
// file documents what can be tuned.
func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = config.DefaultFileName
	}
	if err := config.Template().Write(configurationPath); err != nil {
		return "", err
	}
	return configurationPath, nil
}
