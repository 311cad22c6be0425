// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdscan/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [image-dir]",
	Short: "Convert a directory of scanned images to Markdown",
	Long: `Convert sends every supported image in a directory to the MinerU OCR
service as one batch and merges the results into a single Markdown document
next to the input directory, together with the extracted images and a
packaged archive.

The API token is read from the MINERU_API_TOKEN environment variable or a
.env file.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("output-dir", "", "directory for the converted result (default: next to the image directory)")
	convertCmd.Flags().String("name", "", "base name for the merged output (default \"converted\")")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Mineru.APIToken == "" {
		return fmt.Errorf("no API token configured: set MINERU_API_TOKEN")
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	name, _ := cmd.Flags().GetString("name")

	workspaces := newWorkspaceManager(cfg.Workspace)
	defer workspaces.Shutdown()

	converter := convert.NewConverter(cfg.Mineru, workspaces)
	result, err := converter.ConvertImages(cmd.Context(), args[0], outputDir, name, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\nmarkdown: %s\n", result.MarkdownFile)
	fmt.Printf("archive:  %s\n", result.ZipFile)
	return nil
}
