package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/agriops/server"
)

func newCacheCmd() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache of a running server",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the response cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv("ADMIN_API_KEY")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			msg, err := clearCache(ctx, http.DefaultClient, baseURL, apiKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8000", "base URL of the server")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "admin API key (default $ADMIN_API_KEY)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	cmd.AddCommand(clearCmd)
	return cmd
}

// clearCache calls the admin endpoint with the key in the X-API-Key header.
func clearCache(ctx context.Context, hc *http.Client, baseURL, apiKey string) (server.StatusMessage, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/admin/clear-cache"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return server.StatusMessage{}, fmt.Errorf("build request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return server.StatusMessage{}, fmt.Errorf("clear cache: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Detail == "" {
			body.Detail = http.StatusText(resp.StatusCode)
		}
		return server.StatusMessage{}, fmt.Errorf("clear cache: %s (%d)", body.Detail, resp.StatusCode)
	}

	var msg server.StatusMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return server.StatusMessage{}, fmt.Errorf("clear cache: decode response: %w", err)
	}
	return msg, nil
}
