package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var collectCmd = &cobra.Command{
	Use:   "collect [file]",
	Short: "Collect every share link in a file (or stdin) and append them to the spreadsheet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := readLines(args)
		if err != nil {
			return err
		}

		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		// the first interrupt stops new links from starting; links already
		// running finish their current step
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := a.runner.Collect(ctx, lines)
		if err != nil {
			return err
		}

		renderSummary(cmd.OutOrStdout(), summary)
		a.log.Info("Spreadsheet updated", zap.String("path", a.exporter.Path()))
		if summary.Suspended > 0 {
			fmt.Fprintf(cmd.OutOrStdout(),
				"\n%d link(s) need a login. Run `vidcollect login <platform> --cookie name=value` to resume them.\n",
				summary.Suspended)
		}
		return nil
	},
}

// readLines reads share text from the named file, or stdin when none is given
func readLines(args []string) ([]string, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}
