package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebeauty/agentcy/internal/output"
	"github.com/codebeauty/agentcy/internal/publish"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "View run summaries",
	}

	cmd.AddCommand(newSummaryLatestCmd())
	cmd.AddCommand(newSummaryListCmd())

	return cmd
}

func newSummaryLatestCmd() *cobra.Command {
	var (
		outputDir string
		showPath  bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent run summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := resolveOutputDir(outputDir)
			if err != nil {
				return err
			}

			runs, err := output.ScanRuns(baseDir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no runs found in %s", baseDir)
			}

			latest := runs[0]

			if showPath {
				fmt.Fprintln(cmd.OutOrStdout(), latest.Path)
				return nil
			}

			if jsonOut {
				m, err := output.ReadManifest(latest.Path)
				if err != nil {
					return fmt.Errorf("reading manifest: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			data, err := os.ReadFile(filepath.Join(latest.Path, output.SummaryFile))
			if err != nil {
				return fmt.Errorf("reading summary: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory (default: from config)")
	cmd.Flags().BoolVar(&showPath, "path", false, "Print the run directory path instead of summary")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run manifest (run.json) instead of summary")

	return cmd
}

func newSummaryListCmd() *cobra.Command {
	var (
		outputDir string
		limit     int
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := resolveOutputDir(outputDir)
			if err != nil {
				return err
			}

			runs, err := output.ScanRuns(baseDir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}

			if limit > 0 && limit < len(runs) {
				runs = runs[:limit]
			}

			if jsonOut {
				var manifests []*output.Manifest
				for _, r := range runs {
					m, err := output.ReadManifest(r.Path)
					if err != nil {
						continue
					}
					manifests = append(manifests, m)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(manifests)
			}

			w := cmd.OutOrStdout()
			for _, r := range runs {
				m, err := output.ReadManifest(r.Path)
				if err != nil {
					continue
				}

				fmt.Fprintf(w, "─── %s ───\n", r.Mtime.Format("2006-01-02 15:04"))

				title := m.Pipeline
				if m.Title != "" {
					title += " · " + m.Title
				}
				fmt.Fprintf(w, "Pipeline: %s\n", title)
				fmt.Fprintf(w, "Outcome:  %s (%d/%d phases approved, %s)\n",
					m.Outcome, m.PhasesApproved, len(m.Phases), m.Duration)

				if m.Publish != nil && len(m.Publish.Platforms) > 0 {
					names := make([]string, len(m.Publish.Platforms))
					for i, p := range m.Publish.Platforms {
						icon := "✓"
						if p.Status != publish.StatusCompleted {
							icon = "✗"
						}
						names[i] = fmt.Sprintf("%s %s", p.Name, icon)
					}
					fmt.Fprintf(w, "Publish:  %s\n", strings.Join(names, ", "))
				}

				fmt.Fprintf(w, "Path:     %s\n\n", r.Path)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory (default: from config)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON array of manifests")

	return cmd
}
