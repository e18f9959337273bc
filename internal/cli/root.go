package cli

import "github.com/spf13/cobra"

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcy",
		Short:   "Simulate phased AI agent pipelines with approval gates",
		Version: version,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newPipelinesCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newSummaryCmd())
	root.AddCommand(newConfigCmd())

	// Top-level alias
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List pipelines (alias for 'pipelines list')",
		RunE:  newPipelinesListCmd().RunE,
	}
	root.AddCommand(lsCmd)

	return root
}

func Execute() error {
	return newRootCmd().Execute()
}
