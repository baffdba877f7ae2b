package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Send share links to a running server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		wait, _ := cmd.Flags().GetBool("wait")

		lines, err := readLines(args)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]interface{}{"lines": lines, "wait": wait})
		if err != nil {
			return err
		}

		client := &http.Client{}
		if !wait {
			client.Timeout = 30 * time.Second
		}
		resp, err := client.Post(serverURL+"/api/v1/batches", "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to reach server: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var summary domain.BatchSummary
			if err := json.Unmarshal(body, &summary); err != nil {
				return fmt.Errorf("unexpected response: %w", err)
			}
			renderSummary(cmd.OutOrStdout(), &summary)
		case http.StatusAccepted:
			var accepted struct {
				BatchID string        `json:"batch_id"`
				Jobs    []*domain.Job `json:"jobs"`
			}
			if err := json.Unmarshal(body, &accepted); err != nil {
				return fmt.Errorf("unexpected response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s accepted with %d link(s)\n", accepted.BatchID, len(accepted.Jobs))
		default:
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().String("server", "http://localhost:8090", "Server URL")
	submitCmd.Flags().Bool("wait", false, "Wait for the batch to finish and print its summary")
}
