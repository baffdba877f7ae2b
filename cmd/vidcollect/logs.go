package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs [pipeline|tool|error]",
	Short: "Show recent entries of an event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := logger.ParseCategory(args[0])
		if err != nil {
			return err
		}

		config, err := app.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		date := time.Now()
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			date, err = time.ParseInLocation("2006-01-02", raw, time.Local)
			if err != nil {
				return fmt.Errorf("invalid date %q, use YYYY-MM-DD", raw)
			}
		}
		query, _ := cmd.Flags().GetString("grep")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := logger.NewLogReader(config.Download.LogsDir).ReadLogs(category, date, query, limit)
		if err != nil {
			return err
		}
		renderLogs(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	logsCmd.Flags().String("date", "", "Day to read as YYYY-MM-DD (default today)")
	logsCmd.Flags().String("grep", "", "Only entries containing this text")
	logsCmd.Flags().Int("limit", 50, "Show at most this many of the latest entries (0 for all)")
}
