package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrouter/internal/telemetry"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of agentrouter",
		Args:  cobra.NoArgs,
		// Skips the config loading of the root command.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentrouter %s (%s)\n", telemetry.Version(), runtime.Version())
		},
	}
}
