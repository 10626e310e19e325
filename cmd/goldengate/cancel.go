package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	var adminAddr string
	var adminToken string

	cmd := &cobra.Command{
		Use:   "cancel <grant-id>",
		Short: "Cancel a pending time-lock grant on a running gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(adminAddr, adminToken, args[0])
		},
	}
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "127.0.0.1:9191", "address of the gateway's admin HTTP listener")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "bearer token for the admin HTTP listener")
	return cmd
}

func runCancel(adminAddr, adminToken, grantID string) error {
	url := fmt.Sprintf("http://%s/timelock/%s/cancel", adminAddr, grantID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting gateway admin listener: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cancel request failed: %s", resp.Status)
	}
	return nil
}
