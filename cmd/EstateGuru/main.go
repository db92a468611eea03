package main

import (
	"context"
	"fmt"
	"os"

	"EstateGuru/internal/config"
	"EstateGuru/internal/initial"
	"EstateGuru/pkg/zlog"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "estateguru",
	Short: "Real estate question answering service",
	Long: `estateguru answers real estate questions from an indexed document corpus
and a property catalog. Run "serve" for the HTTP API, or use the ingest/ask/reindex
commands for one-off operations against the same configuration.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		config.SetConfig(conf)
		lc := conf.LogConfig
		return zlog.Init(zlog.Options{
			Level:      lc.Level,
			Path:       lc.LogPath,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Console:    lc.Console,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zlog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config_local.toml", "path to the toml config file")
	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, reindexCmd)
}

// 命令行子命令共用：按当前配置组装 App
func newApp(ctx context.Context) (*initial.App, error) {
	return initial.NewApp(ctx, config.GetConfig())
}
