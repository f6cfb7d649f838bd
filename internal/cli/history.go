package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/tooldb/internal/config"
	"github.com/khanglvm/tooldb/internal/storage"
)

// NewHistoryCmd creates the 'history' command summarising the local
// registration and match history.
func NewHistoryCmd(root *rootOptions) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent registrations and match statistics",
		Long: `Read the history database written by 'tooldb serve' and print the
tools registered and the match outcomes over the given period. Queries are
stored as hashes and cannot be shown.`,
		Example: `  tooldb history --since 24h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the configuration")
			}

			s := storage.NewStorage(cfg.History.Path, root.logger)
			if err := s.Init(); err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer s.Close()

			return printHistory(cmd.OutOrStdout(), s, time.Now().Add(-since))
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "How far back to look")

	return cmd
}

func printHistory(w io.Writer, s storage.Storage, since time.Time) error {
	regs, err := s.ListRegistrations(since)
	if err != nil {
		return fmt.Errorf("failed to list registrations: %w", err)
	}
	stats, err := s.MatchStats(since)
	if err != nil {
		return fmt.Errorf("failed to read match stats: %w", err)
	}

	fmt.Fprintf(w, "Registrations since %s: %d\n", since.Format(time.RFC3339), len(regs))
	if len(regs) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTOOL\tFRAGMENTS")
		for _, r := range regs {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Timestamp.Local().Format(time.DateTime), r.ToolName, r.FragmentCount)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "Matches: %d (found %d, not found %d)\n", stats.Total, stats.Found, stats.NotFound)
	return nil
}
