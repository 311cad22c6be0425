// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdscan/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Fetch an article and convert it to Markdown in one step",
	Long: `Run executes the full pipeline: it downloads the article's images,
sends them to the MinerU OCR service, and writes the merged Markdown
document, the extracted images, and a packaged archive under the output
directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("output-dir", "", "base directory for results (default \"output\")")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Mineru.APIToken == "" {
		return fmt.Errorf("no API token configured: set MINERU_API_TOKEN")
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Fetch.OutputDir = dir
	}

	workspaces := newWorkspaceManager(cfg.Workspace)
	defer workspaces.Shutdown()

	result, err := pipeline.New(cfg, workspaces).Run(cmd.Context(), args[0], os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\ntitle:    %s\n", result.Title)
	fmt.Printf("markdown: %s\n", result.Batch.MarkdownFile)
	fmt.Printf("images:   %d\n", result.Batch.ImageCount)
	fmt.Printf("archive:  %s\n", result.Batch.ZipFile)
	return nil
}
