package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codebeauty/agentcy/internal/catalog"
)

func newPipelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"pipeline"},
		Short:   "Manage pipeline definitions",
	}

	cmd.AddCommand(newPipelinesListCmd())
	cmd.AddCommand(newPipelinesShowCmd())
	cmd.AddCommand(newPipelinesCreateCmd())
	cmd.AddCommand(newPipelinesEditCmd())
	cmd.AddCommand(newPipelinesResetCmd())
	cmd.AddCommand(newPipelinesDeleteCmd())
	return cmd
}

type pipelineListing struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Phases  int    `json:"phases"`
	Agents  int    `json:"agents"`
	Builtin bool   `json:"builtin"`
	Error   string `json:"error,omitempty"`
}

func newPipelinesListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all available pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := catalog.Dir()
			ids, err := catalog.List(dir)
			if err != nil {
				return err
			}
			builtin := make(map[string]bool)
			for _, id := range catalog.BuiltinIDs() {
				builtin[id] = true
			}

			var listing []pipelineListing
			for _, id := range ids {
				entry := pipelineListing{ID: id, Builtin: builtin[id]}
				if p, err := catalog.Load(id, dir); err != nil {
					entry.Error = err.Error()
				} else {
					entry.Title = p.Title
					entry.Phases = len(p.Phases)
					entry.Agents = p.AgentCount()
				}
				listing = append(listing, entry)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}
			for _, l := range listing {
				if l.Error != "" {
					fmt.Fprintf(w, "%-20s  invalid: %s\n", l.ID, l.Error)
					continue
				}
				label := fmt.Sprintf("%-20s  %d phases, %2d agents  %s", l.ID, l.Phases, l.Agents, l.Title)
				if l.Builtin {
					label += "  (built-in)"
				}
				fmt.Fprintln(w, label)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPipelinesShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := catalog.Load(args[0], catalog.Dir())
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			data, err := catalog.Marshal(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPipelinesCreateCmd() *cobra.Command {
	var (
		from     string
		noEditor bool
	)

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a new pipeline from an existing one (opens $EDITOR)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := catalog.ValidateID(id); err != nil {
				return err
			}
			dir := catalog.Dir()
			path := filepath.Join(dir, id+".yaml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("pipeline %q already exists, use 'agentcy pipelines edit %s'", id, id)
			}

			base, err := catalog.Load(from, dir)
			if err != nil {
				return err
			}
			p := *base
			p.ID = id
			p.Next = ""
			if err := catalog.Save(&p, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Created %s from %s\n", path, from)
			if noEditor {
				return nil
			}
			return editAndValidate(id, path)
		},
	}

	cmd.Flags().StringVar(&from, "from", "campaign", "Pipeline to copy")
	cmd.Flags().BoolVar(&noEditor, "no-editor", false, "Write the file without opening an editor")
	return cmd
}

func newPipelinesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a pipeline in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := catalog.ValidateID(id); err != nil {
				return err
			}
			dir := catalog.Dir()
			path := filepath.Join(dir, id+".yaml")
			if _, err := os.Stat(path); os.IsNotExist(err) {
				// Editing a built-in starts from a user copy of it.
				p, err := catalog.Builtin(id)
				if err != nil {
					return err
				}
				if err := catalog.Save(p, dir); err != nil {
					return err
				}
			}
			return editAndValidate(id, path)
		},
	}
}

func newPipelinesResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Re-sync built-in pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := catalog.Dir()
			diffFn := syncDiffPrompt
			if force {
				diffFn = func(string, string, string) catalog.SyncAction { return catalog.SyncBackup }
			}
			written, err := catalog.SyncBuiltins(dir, diffFn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d pipeline(s) written to %s\n", written, dir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Back up and overwrite edited built-ins without asking")
	return cmd
}

func newPipelinesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user pipeline file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := catalog.ValidateID(id); err != nil {
				return err
			}
			path := filepath.Join(catalog.Dir(), id+".yaml")
			if err := os.Remove(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("pipeline %q has no user file", id)
				}
				return err
			}
			msg := fmt.Sprintf("Deleted pipeline %q", id)
			if _, ok := catalog.BuiltinSource(id); ok {
				msg += " (the built-in version is used again)"
			}
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
			return nil
		},
	}
}

func editAndValidate(id, path string) error {
	if err := openEditor(path); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if _, err := catalog.Load(id, filepath.Dir(path)); err != nil {
		return fmt.Errorf("%s is not a valid pipeline: %w", path, err)
	}
	return nil
}

func syncDiffPrompt(id, existing, builtin string) catalog.SyncAction {
	fmt.Fprintf(os.Stderr, "\nPipeline %q has been modified.\n", id)
	fmt.Fprintf(os.Stderr, "  [o]verwrite  [s]kip  [b]ackup & overwrite\n")
	fmt.Fprintf(os.Stderr, "  Choice: ")

	var choice string
	fmt.Scanln(&choice)
	switch choice {
	case "o", "overwrite":
		return catalog.SyncOverwrite
	case "b", "backup":
		return catalog.SyncBackup
	default:
		return catalog.SyncSkip
	}
}

func openEditor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.Command(editor, path)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
