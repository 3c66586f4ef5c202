package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"templateshop/internal/config"
	"templateshop/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd はサブコマンドごとに独立したviperを持たせる（テストで何度も作れるように）
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Operator tool for the checkout reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cmd)
		},
	}
	root.PersistentFlags().String("config", "", "YAML config file (default: ./checkoutctl.yaml if present)")

	root.AddCommand(pollCmd(v))
	root.AddCommand(signWebhookCmd(v))
	root.AddCommand(migrateCmd(v))
	return root
}

// 優先順位：フラグ > CHECKOUTCTL_* 環境変数 > 設定ファイル > デフォルト
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix("CHECKOUTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	v.SetConfigName("checkoutctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// 標準エラーに出すだけのロガー
func stderrLogger() *slog.Logger {
	return logging.New(config.Log{Level: "info", Format: "text"}, os.Stderr)
}
