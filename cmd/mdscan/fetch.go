// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdscan/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download an article's images without converting them",
	Long: `Fetch downloads the content images of a web article into a directory
named after the article title, numbered in page order. Use convert on the
resulting directory to run OCR separately.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("output-dir", "", "base directory for fetched articles (default \"output\")")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Fetch.OutputDir = dir
	}

	fetcher := fetch.NewFetcher(cfg.Fetch)
	result, err := fetcher.FetchArticle(cmd.Context(), args[0], os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\ntitle:  %s\n", result.Title)
	fmt.Printf("images: %d in %s\n", len(result.Images), result.ImagesDir)
	return nil
}
