package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal/server"
	"github.com/gnolang/moveaudit/internal/sink"
)

var (
	serveFlags auditOptions
	serveAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve audits over HTTP",
	Long: `Starts an HTTP server auditing uploaded files.
Example) curl -F file=@sources/vault.move localhost:8080/api/audit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := serveFlags
		opts.configPath = cfgFile

		auditor, _, err := newAuditor(logger, opts)
		if err != nil {
			return err
		}
		var srvOpts []server.Option
		if opts.publishURL != "" {
			srvOpts = append(srvOpts, server.WithPublisher(sink.New(opts.publishURL, opts.publishToken, logger)))
		}
		srv := server.New(auditor, logger, srvOpts...)
		if err := srv.ListenAndServe(commandContext(cmd), serveAddr); err != nil {
			logger.Error("Server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	addAuditFlags(serveCmd, &serveFlags)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
}
