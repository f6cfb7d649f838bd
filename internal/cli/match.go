package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/client"
)

// errNoMatch is returned by 'match' so the process exits non-zero.
var errNoMatch = errors.New("no matching tool")

// NewMatchCmd creates the 'match' command resolving a task to a tool name.
func NewMatchCmd(root *rootOptions) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "match <task...>",
		Short: "Find the tool best suited to a task",
		Long: `Ask a running tooldb server which registered tool best matches a
task description. The tool name is printed on stdout. When nothing matches
the command prints nothing and exits with status 1.`,
		Example: `  tooldb match search files for pattern`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(server)
			if err != nil {
				return err
			}

			name, err := c.MatchTool(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, client.ErrNotFound) {
				return errNoMatch
			}
			if err != nil {
				return err
			}

			root.logger.Debug("matched task", zap.String("name", name))
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", client.DefaultServer, "tooldb server address")

	return cmd
}
