package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/bibe/internal/config"
)

var flagAssumeYes bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged config and manage config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Loaded config from:\n  %s\n\n", used)
		cfg.Print(out)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default config and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		_, _ = fmt.Fprintln(out, "Default configuration:")
		config.DefaultConfig().Print(out)
		_, _ = fmt.Fprintln(out)

		if !flagAssumeYes && !confirm(cmd, fmt.Sprintf("Create %s config in %s?", config.DefaultLabel, config.ConfigsDir())) {
			_, _ = fmt.Fprintln(out, "Aborted.")
			return nil
		}

		path, err := config.InitDefaultConfig()
		if errors.Is(err, os.ErrExist) {
			_, _ = fmt.Fprintf(out, "Config already exists at %s and is now active.\n", path)
			_, _ = fmt.Fprintln(out, "Use `bibe config reset` to recreate it.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		_, _ = fmt.Fprintln(out, "Config created at:", path)
		_, _ = fmt.Fprintf(out, "This config is now active (label: %s).\n", config.DefaultLabel)
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the active config to default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		activePath, err := config.ActiveConfigPath()
		if err != nil {
			return err
		}

		if err := config.SaveYAML(config.DefaultConfig(), activePath); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset active config: %s\n", activePath)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit [label]",
	Short: "Open the active or the given config in $EDITOR",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			var err error
			if label, err = config.CurrentLabel(); err != nil {
				return fmt.Errorf("failed to get current config label: %w", err)
			}
		}

		path, err := config.ConfigPathByLabel(label)
		if err != nil {
			return err
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		c := exec.CommandContext(cmd.Context(), editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		if err := c.Run(); err != nil {
			return fmt.Errorf("failed to open editor %s: %w", editor, err)
		}

		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagAssumeYes, "yes", "y", false, "do not ask for confirmation")

	configCmd.AddCommand(configInitCmd, configResetCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

func confirm(cmd *cobra.Command, question string) bool {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	return readAnswer(cmd.InOrStdin()) == "y"
}

func readAnswer(r io.Reader) string {
	resp, _ := bufio.NewReader(r).ReadString('\n')
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "yes" {
		return "y"
	}
	return resp
}
