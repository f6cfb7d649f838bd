package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/config"
)

// NewServeCmd creates the 'serve' command running the HTTP service.
func NewServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr    string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tooldb HTTP server",
		Long: `Start the tooldb HTTP server.

Endpoints:
  POST /tool/add     register a tool
  GET  /tool/match   resolve ?task= to a tool name
  GET  /healthz      liveness probe
  GET  /readyz       readiness probe
  GET  /metrics      Prometheus metrics

The collection starts empty on every run. SIGINT and SIGTERM drain
in-flight requests before exiting.`,
		Example: `  # Serve on 0.0.0.0:5000 with the keyword backend
  tooldb serve

  # Serve embeddings-backed matching from Postgres
  OPENAI_API_KEY=sk-... tooldb serve --backend pgvector`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("backend") {
				cfg.Store.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			logger, err := newLogger(cfg.Log, root.verbose)
			if err != nil {
				return err
			}
			root.logger = logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default 0.0.0.0:5000)")
	cmd.Flags().StringVar(&backend, "backend", "", "Vector store backend: bleve, memory or pgvector")

	return cmd
}

// runServe wires the server, listens on cfg.Server.Addr and blocks until
// ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}

	if err := a.run(ctx, ln); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
