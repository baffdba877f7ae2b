package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "vidcollect",
		Short: "vidcollect - collect short videos and their metadata from share links",
		Long: `Collects metadata, media files and transcripts for share links from
Douyin, Xiaohongshu, Kuaishou and WeChat Channels into a spreadsheet.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./configs/config.yaml or $HOME/.vidcollect/config.yaml)")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
