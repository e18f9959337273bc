package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/tui"
)

var jsonKeyRe = regexp.MustCompile(`^(\s*)"([^"]+)":`)

func colorizeJSON(line string) string {
	if m := jsonKeyRe.FindStringSubmatchIndex(line); m != nil {
		indent := line[:m[2*1+1]]
		key := line[m[2*2]:m[2*2+1]]
		rest := line[m[1]:]
		return indent + tui.StylePrimary.Render(`"`+key+`":`) + rest
	}
	return line
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show resolved configuration (global plus project overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			label := "Config file:"
			if tui.IsTTY() {
				label = tui.StyleBold.Render(label)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", label, config.GlobalConfigPath())
			if pc, _ := config.LoadProjectConfig(mustGetwd()); pc != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Project overrides: %s\n", config.ProjectFileName)
			}
			fmt.Fprintln(cmd.ErrOrStderr())

			cfg, err := config.LoadMerged(mustGetwd())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			if tui.IsTTY() {
				// keys in primary
				lines := strings.Split(string(data), "\n")
				for _, line := range lines {
					fmt.Fprintln(cmd.OutOrStdout(), colorizeJSON(line))
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
			return nil
		},
	}
}
