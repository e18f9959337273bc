package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebeauty/agentcy/internal/catalog"
	"github.com/codebeauty/agentcy/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config and install built-in pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			cfgPath := config.GlobalConfigPath()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.Save(cfg, cfgPath); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
				fmt.Fprintf(stderr, "Config written to: %s\n", cfgPath)
			} else {
				fmt.Fprintf(stderr, "  already configured: %s\n", cfgPath)
			}

			dir := catalog.Dir()
			var diffFn catalog.DiffFunc
			auto, _ := cmd.Flags().GetBool("auto")
			if !auto {
				diffFn = syncDiffPrompt
			}
			written, err := catalog.SyncBuiltins(dir, diffFn)
			if err != nil {
				fmt.Fprintf(stderr, "warning: failed to sync pipelines: %v\n", err)
			} else if written > 0 {
				fmt.Fprintf(stderr, "%d pipeline(s) installed to %s\n", written, dir)
			}

			fmt.Fprintf(stderr, "\nDefault pipeline: %s  (try 'agentcy run %s')\n", cfg.Defaults.Pipeline, cfg.Defaults.Pipeline)
			return nil
		},
	}

	cmd.Flags().Bool("auto", false, "Keep edited pipelines without prompting")
	return cmd
}
