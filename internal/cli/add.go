package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/client"
	"github.com/khanglvm/tooldb/internal/registry"
)

// NewAddCmd creates the 'add' command registering a tool on a server.
func NewAddCmd(root *rootOptions) *cobra.Command {
	var (
		server       string
		name         string
		commands     []string
		examples     string
		examplesFile string
		jsonInput    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a tool on a tooldb server",
		Long: `Register a tool on a running tooldb server.

Each --command and each line of the examples is indexed separately and
tagged with the tool name. Registering the same name again adds more
fragments; nothing is replaced.

A complete tool object can be given with --json instead of the flags.`,
		Example: `  # Flag mode
  tooldb add --name grep --command "grep -r pattern dir" \
    --examples $'search files\nfind text'

  # Examples from a file, one per line
  tooldb add --name wiki --command "wiki search <topic>" --examples-file wiki.txt

  # JSON mode
  tooldb add --json '{"name":"calc","commands":["calc 1+1"],"examples":"add numbers"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := buildTool(name, commands, examples, examplesFile, jsonInput)
			if err != nil {
				return err
			}

			c, err := client.New(server)
			if err != nil {
				return err
			}

			echoed, err := c.AddTool(cmd.Context(), tool)
			if err != nil {
				return fmt.Errorf("failed to register %q: %w", tool.Name, err)
			}

			n := len(registry.Decompose(echoed))
			root.logger.Debug("tool registered", zap.String("tool", echoed.Name), zap.Int("fragments", n))
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered '%s' (%d fragments)\n", echoed.Name, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", client.DefaultServer, "tooldb server address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Tool name")
	cmd.Flags().StringArrayVarP(&commands, "command", "c", nil, "Example command (repeatable)")
	cmd.Flags().StringVarP(&examples, "examples", "e", "", "Example tasks, one per line")
	cmd.Flags().StringVarP(&examplesFile, "examples-file", "f", "", "Read example tasks from a file")
	cmd.Flags().StringVarP(&jsonInput, "json", "j", "", "Tool object as JSON")
	cmd.MarkFlagsMutuallyExclusive("examples", "examples-file")
	cmd.MarkFlagsMutuallyExclusive("json", "name")

	return cmd
}

// buildTool assembles a tool from the add flags.
func buildTool(name string, commands []string, examples, examplesFile, jsonInput string) (registry.Tool, error) {
	if jsonInput != "" {
		tool, err := registry.ParseTool(json.RawMessage(jsonInput))
		if err != nil {
			return registry.Tool{}, fmt.Errorf("invalid --json: %w", err)
		}
		return tool, nil
	}

	if name == "" {
		return registry.Tool{}, fmt.Errorf("--name is required unless --json is given")
	}

	if examplesFile != "" {
		data, err := os.ReadFile(examplesFile)
		if err != nil {
			return registry.Tool{}, fmt.Errorf("failed to read examples: %w", err)
		}
		// A trailing newline would index an empty fragment.
		examples = strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	}

	if commands == nil {
		commands = []string{}
	}
	return registry.Tool{Name: name, Commands: commands, Examples: examples}, nil
}
