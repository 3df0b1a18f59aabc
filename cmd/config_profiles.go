package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/bibe/internal/config"
)

var (
	flagAddFrom     string
	flagForceRemove bool
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "LABEL\tPATH\tACTIVE")

		for _, c := range list {
			mark := ""
			if c.Active {
				mark = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Label, c.Path, mark)
		}

		return w.Flush()
	},
}

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch to a different config profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string

		if len(args) == 1 {
			label = args[0]
		} else {
			list, err := config.ListConfigs()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return fmt.Errorf("no configs available, run `bibe config init` first")
			}

			items := make([]string, len(list))
			for i, c := range list {
				items[i] = c.Label
				if c.Active {
					items[i] += "  (active)"
				}
			}

			prompt := promptui.Select{
				Label: "Select config",
				Items: items,
			}

			idx, _, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("selection cancelled")
			}

			label = list[idx].Label
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Switched to:", label)
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Create a new config profile with default values, or copy one with --from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]

		if flagAddFrom != "" {
			if err := config.AddConfig(label, flagAddFrom); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added config %q from %s\n", label, flagAddFrom)
			return nil
		}

		path, err := config.CreateEmptyConfig(label)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created new config: %s\n", path)
		return nil
	},
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a config profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]
		out := cmd.OutOrStdout()

		active, _ := config.CurrentLabel()
		if label == active && !flagForceRemove &&
			!confirm(cmd, fmt.Sprintf("Config %q is currently active. Remove it anyway?", label)) {
			_, _ = fmt.Fprintln(out, "Aborted.")
			return nil
		}

		switched, err := config.RemoveConfig(label)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "Removed config %q\n", label)
		if switched {
			_, _ = fmt.Fprintf(out, "Switched to %s\n", config.DefaultLabel)
		}
		return nil
	},
}

var configRenameCmd = &cobra.Command{
	Use:   "rename <old_label> <new_label>",
	Short: "Rename a config profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RenameConfig(args[0], args[1]); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed config %q to %q\n", args[0], args[1])
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringVar(&flagAddFrom, "from", "", "YAML file to copy the new profile from")
	configRemoveCmd.Flags().BoolVarP(&flagForceRemove, "force", "f", false, "remove the active config without asking")

	configCmd.AddCommand(configListCmd, configSwitchCmd, configAddCmd, configRemoveCmd, configRenameCmd)
}
