// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mdscan CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/internal/tempdir"
	"github.com/pdiddy/mdscan/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the mdscan CLI.
var rootCmd = &cobra.Command{
	Use:   "mdscan",
	Short: "Convert scanned article images to Markdown",
	Long: `mdscan turns web articles published as scanned images into Markdown.
It downloads an article's images, sends them to the MinerU OCR service as
one batch, and merges the per-image results into a single document with a
consolidated image directory and a packaged archive.

Each stage is a subcommand: fetch downloads an article's images, convert
runs OCR over a directory of images, run does both end to end, and serve
starts the web front-end.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; environment variables win over it either way.
		_ = godotenv.Load()

		mode, _ := cmd.Flags().GetString("log-mode")
		level, _ := cmd.Flags().GetString("log-level")
		if err := logging.Init(mode, level); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mdscan.yaml or ~/.config/mdscan/config.yaml)")
	rootCmd.PersistentFlags().String("log-mode", "production", "log output mode (production or development)")
	rootCmd.PersistentFlags().String("log-level", "info", "minimum log level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mdscan")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mdscan"))
		}
	}

	viper.SetEnvPrefix("MDSCAN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the stage configuration from defaults, the
// config file, and the environment. The MINERU_API_TOKEN variable always
// wins for the credential.
func pipelineConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if v := viper.GetString("mineru.base_url"); v != "" {
		cfg.Mineru.BaseURL = v
	}
	if v := viper.GetString("mineru.api_token"); v != "" {
		cfg.Mineru.APIToken = v
	}
	if v := viper.GetString("mineru.language"); v != "" {
		cfg.Mineru.Language = v
	}
	if v := viper.GetInt("mineru.max_concurrent_uploads"); v > 0 {
		cfg.Mineru.MaxConcurrentUploads = v
	}
	if v := viper.GetDuration("mineru.poll_max_wait"); v > 0 {
		cfg.Mineru.PollMaxWait = v
	}
	if v := viper.GetDuration("mineru.poll_interval"); v > 0 {
		cfg.Mineru.PollInterval = v
	}
	if v := viper.GetString("fetch.output_dir"); v != "" {
		cfg.Fetch.OutputDir = v
		cfg.Web.OutputDir = v
	}
	if v := viper.GetString("web.host"); v != "" {
		cfg.Web.Host = v
	}
	if v := viper.GetInt("web.port"); v > 0 {
		cfg.Web.Port = v
	}
	if v := viper.GetInt("web.max_history_items"); v > 0 {
		cfg.Web.MaxHistoryItems = v
	}
	if v := viper.GetString("workspace.base_dir"); v != "" {
		cfg.Workspace.BaseDir = v
	}
	if v := viper.GetDuration("workspace.max_age"); v > 0 {
		cfg.Workspace.MaxAge = v
	}

	if v := os.Getenv("MINERU_API_TOKEN"); v != "" {
		cfg.Mineru.APIToken = v
	}
	return cfg
}

// newWorkspaceManager builds the shared workspace manager and reclaims
// orphans left behind by crashed runs.
func newWorkspaceManager(cfg types.WorkspaceConfig) *tempdir.Manager {
	mgr := tempdir.NewManager(cfg)
	if removed, err := mgr.SweepOld(cfg.MaxAge); err != nil {
		logging.Warn("stale workspace sweep failed", zap.Error(err))
	} else if removed > 0 {
		logging.Info("reclaimed stale workspaces", zap.Int("count", removed))
	}
	return mgr
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
