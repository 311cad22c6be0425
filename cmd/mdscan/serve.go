// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/history"
	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/internal/pipeline"
	"github.com/pdiddy/mdscan/internal/webapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front-end",
	Long: `Serve starts the HTTP front-end. It accepts article URLs, runs
conversions as background tasks, keeps a history of recent results, and
serves the converted Markdown and archives for download.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen address (default \"0.0.0.0\")")
	serveCmd.Flags().Int("port", 0, "listen port (default 8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Mineru.APIToken == "" {
		return fmt.Errorf("no API token configured: set MINERU_API_TOKEN")
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Web.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Web.Port = port
	}

	store, err := history.NewStore(cfg.Web.OutputDir)
	if err != nil {
		logging.Warn("conversion history disabled", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	workspaces := newWorkspaceManager(cfg.Workspace)
	defer workspaces.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := webapp.NewServer(cfg.Web, pipeline.New(cfg, workspaces), store)
	return server.Start(ctx)
}
