// Package cli wires the dashboard commands: the combined service, one-shot
// collection, a standalone resolution worker and catalog seeding.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the dashboard command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Crypto project monitoring pipeline",
		Long:          "Collects project and market data from configured sources, resolves raw records against the project catalog with an LLM tool-use loop, and serves the admin API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewCollectCommand(),
		NewWorkerCommand(),
		NewSeedCommand(),
	)
	return cmd
}
