package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "./configs/config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Speech credentials are read from VIDCOLLECT_SPEECH_API_KEY and VIDCOLLECT_SPEECH_SECRET_KEY")
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
