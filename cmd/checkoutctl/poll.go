package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"templateshop/internal/config"
	"templateshop/internal/logging"
	"templateshop/internal/poller"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func pollCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll [intent-id]",
		Short: "Wait for the order of a payment intent to appear",
		Long: `Polls GET /orders/by-intent/{id} with exponential backoff.

A missing order is not a failure: after the last attempt the result is
"pending" (order still processing, check your orders page).

Examples:
  checkoutctl poll pi_123 --token $TOKEN
  CHECKOUTCTL_BASE_URL=https://shop.example.com checkoutctl poll pi_123 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(config.Log{Level: v.GetString("log-level"), Format: "text"}, cmd.ErrOrStderr())

			p := poller.New(
				poller.NewHTTPFetcher(v.GetString("base-url"), v.GetString("token"), v.GetDuration("request-timeout")),
				poller.Config{
					MaxAttempts:  v.GetInt("attempts"),
					InitialDelay: v.GetDuration("initial-delay"),
					MaxDelay:     v.GetDuration("max-delay"),
				},
				log,
			)

			res, err := p.Wait(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("poll %s: %w", args[0], err)
			}
			return render(cmd.OutOrStdout(), v.GetString("output"), res)
		},
	}

	cmd.Flags().String("base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().String("token", "", "bearer token of the purchasing user")
	cmd.Flags().Int("attempts", 10, "maximum number of polls")
	cmd.Flags().Duration("initial-delay", 500*time.Millisecond, "delay before the second poll")
	cmd.Flags().Duration("max-delay", 8*time.Second, "backoff ceiling")
	cmd.Flags().Duration("request-timeout", 5*time.Second, "per-request timeout")
	cmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")
	cmd.Flags().String("log-level", "warn", "log level for retry diagnostics")

	return cmd
}

func render(w io.Writer, format string, res poller.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
