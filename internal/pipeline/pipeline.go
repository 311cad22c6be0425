// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline composes the fetch and convert stages into the full
// article-to-Markdown run used by the CLI and the web front-end.
package pipeline

import (
	"context"
	"io"

	"github.com/pdiddy/mdscan/internal/convert"
	"github.com/pdiddy/mdscan/internal/fetch"
	"github.com/pdiddy/mdscan/internal/tempdir"
	"github.com/pdiddy/mdscan/pkg/types"
)

// Result is the outcome of one end-to-end run.
type Result struct {
	Title string             `json:"title"`
	Batch *types.BatchResult `json:"batch"`
}

// Pipeline runs fetch followed by convert.
type Pipeline struct {
	fetcher   *fetch.Fetcher
	converter *convert.Converter
}

// New wires both stages from config and the shared workspace manager.
func New(cfg types.PipelineConfig, workspaces *tempdir.Manager) *Pipeline {
	return &Pipeline{
		fetcher:   fetch.NewFetcher(cfg.Fetch),
		converter: convert.NewConverter(cfg.Mineru, workspaces),
	}
}

// Run downloads the article at url and converts its images into the
// merged Markdown result. Progress from both stages is written to w.
func (p *Pipeline) Run(ctx context.Context, url string, w io.Writer) (*Result, error) {
	fetched, err := p.fetcher.FetchArticle(ctx, url, w)
	if err != nil {
		return nil, err
	}

	batch, err := p.converter.ConvertImages(ctx, fetched.ImagesDir, fetched.ResultDir, "", w)
	if err != nil {
		return nil, err
	}

	return &Result{Title: fetched.Title, Batch: batch}, nil
}
