package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"templateshop/internal/gateway"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 開発・検証用：ペイロードに署名してヘッダ値を出す
func signWebhookCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign-webhook [payload-file]",
		Short: "Print the Payment-Signature header for a webhook payload",
		Long: `Reads the payload from the file (or stdin when the argument is "-")
and prints the header value for the given webhook secret.

Example:
  checkoutctl sign-webhook event.json --secret whsec_dev
  curl -H "Payment-Signature: $(checkoutctl sign-webhook event.json)" --data-binary @event.json ...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("secret")
			if secret == "" {
				return fmt.Errorf("webhook secret is required (--secret or CHECKOUTCTL_SECRET)")
			}

			body, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			at := time.Now()
			if ts := v.GetInt64("timestamp"); ts > 0 {
				at = time.Unix(ts, 0)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), gateway.Sign(secret, body, at))
			return err
		},
	}

	cmd.Flags().String("secret", "", "webhook signing secret")
	cmd.Flags().Int64("timestamp", 0, "unix timestamp to sign with (default: now)")
	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return b, nil
}
