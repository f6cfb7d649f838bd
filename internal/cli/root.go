/*
Package cli implements the tooldb command tree.

The server side is "tooldb serve". The agent side publishes and looks up
tools with "tooldb add" and "tooldb match", which talk to a running server
over HTTP.
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/khanglvm/tooldb/internal/config"
	"github.com/khanglvm/tooldb/internal/version"
)

// rootOptions holds the persistent flags and the logger shared by every
// subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	logger     *zap.Logger
}

// NewRootCmd builds the complete command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "tooldb",
		Short: "Semantic tool registry for connected agents",
		Long: `tooldb matches free-text task descriptions to the tool best suited
to handle them.

Agents register tools (a name, example commands and example tasks). Every
command and every example line is indexed on its own; a task is answered
with the name of the tool owning the nearest indexed fragment.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(config.LogConfig{Level: "info"}, opts.verbose)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.tooldb.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewAddCmd(opts))
	cmd.AddCommand(NewMatchCmd(opts))
	cmd.AddCommand(NewHistoryCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// newLogger builds a zap logger from cfg. verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
