package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

var loginCmd = &cobra.Command{
	Use:   "login [platform]",
	Short: "Store login cookies for a platform and resume the links waiting for it",
	Long: `Store cookies and headers copied from a logged-in browser session. Every link
suspended on that platform is fetched again with the new credentials.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := domain.ParsePlatform(args[0])
		if err != nil {
			return err
		}

		cookiePairs, _ := cmd.Flags().GetStringArray("cookie")
		headerPairs, _ := cmd.Flags().GetStringArray("header")
		cookieString, _ := cmd.Flags().GetString("cookies")
		expires, _ := cmd.Flags().GetDuration("expires")

		cookies, err := parsePairs(cookiePairs)
		if err != nil {
			return err
		}
		fromHeader, err := parseCookieHeader(cookieString)
		if err != nil {
			return err
		}
		for name, value := range fromHeader {
			cookies[name] = value
		}
		headers, err := parsePairs(headerPairs)
		if err != nil {
			return err
		}

		creds := &domain.Credentials{Platform: platform, Cookies: cookies, Headers: headers}
		if expires > 0 {
			at := time.Now().Add(expires)
			creds.ExpiresAt = &at
		}

		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		outcomes, err := a.pipeline.Resume(ctx, creds)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Credentials stored for %s; resumed %d link(s)\n", platform, len(outcomes))
		if len(outcomes) > 0 {
			renderSummary(cmd.OutOrStdout(), domain.Summarize("resume-"+string(platform), outcomes))
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := make(map[string]interface{})
		for _, key := range []string{"state", "platform", "batch"} {
			if value, _ := cmd.Flags().GetString(key); value != "" {
				column := key
				if key == "batch" {
					column = "batch_id"
				}
				filters[column] = value
			}
		}

		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.runner.ListJobs(filters)
		if err != nil {
			return err
		}
		renderJobs(cmd.OutOrStdout(), jobs)
		return nil
	},
}

var jobCmd = &cobra.Command{
	Use:   "job [id]",
	Short: "Show job details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.runner.GetJob(args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job not found: %s", args[0])
		}
		renderJob(cmd.OutOrStdout(), job)
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Run a failed or suspended job again from the fetch step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		outcome, err := a.pipeline.Retry(ctx, args[0])
		if err != nil {
			return err
		}
		renderSummary(cmd.OutOrStdout(), domain.Summarize("retry", []domain.LinkOutcome{outcome}))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.runner.GetStats()
		if err != nil {
			return err
		}
		renderStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringArray("cookie", nil, "Cookie as name=value (repeatable)")
	loginCmd.Flags().String("cookies", "", "Cookie header as copied from the browser (a=1; b=2)")
	loginCmd.Flags().StringArray("header", nil, "Extra request header as Name=value (repeatable)")
	loginCmd.Flags().Duration("expires", 0, "Forget the credentials after this long (0 keeps them)")

	jobsCmd.Flags().String("state", "", "Filter by state")
	jobsCmd.Flags().String("platform", "", "Filter by platform")
	jobsCmd.Flags().String("batch", "", "Filter by batch id")
}

// parsePairs splits name=value arguments
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

// parseCookieHeader splits a browser Cookie header into name/value pairs
func parseCookieHeader(header string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(header) == "" {
		return out, nil
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie header: %w", err)
	}
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}
