package cmd

import (
	"github.com/huangsam/repohealth/internal/mcp"
	"github.com/huangsam/repohealth/internal/store"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the repohealth MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents evaluate repositories,
read stored reports and snapshots, and browse the check catalogue.

Logs go to stderr so stdout stays reserved for the protocol.`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		deps := mcp.Deps{
			Runner:   a.tracker,
			Registry: a.registry,
			Weights:  a.weights,
			Version:  version,
		}
		if cfg.StoreBackend != schema.NoneBackend {
			deps.Store = store.Manager.GetReportStore()
		}
		return mcp.StartMCPServer(cmd.Context(), deps)
	},
}
