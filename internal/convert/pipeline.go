// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements the batch conversion pipeline: it submits a
// directory of scanned images to the MinerU service, uploads them
// concurrently, waits for remote processing, materializes each file's
// result archive, and merges everything into one Markdown document plus a
// consolidated image directory and a packaged zip.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/mdscan/internal/httputil"
	"github.com/pdiddy/mdscan/internal/mineru"
	"github.com/pdiddy/mdscan/internal/tempdir"
	"github.com/pdiddy/mdscan/pkg/types"
)

// sectionSeparator joins per-file Markdown sections in the merged document.
const sectionSeparator = "\n\n---\n\n"

// defaultOutputName names the converted result when the caller does not.
const defaultOutputName = "converted"

// ErrNoInputFiles reports an input directory with no convertible files.
var ErrNoInputFiles = errors.New("no supported image files found")

// PackagingError reports a filesystem failure while writing the merged
// output or the final archive. It is fatal to the batch: no partial
// BatchResult is returned.
type PackagingError struct {
	Step string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging failed during %s: %v", e.Step, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Converter runs batch conversions against the remote service.
type Converter struct {
	cfg        types.MineruConfig
	api        *mineru.Client
	download   *httputil.Client
	workspaces *tempdir.Manager
}

// NewConverter wires a converter from config and the shared workspace
// manager. Result-archive downloads get their own retrying client with the
// longer zip timeout.
func NewConverter(cfg types.MineruConfig, workspaces *tempdir.Manager) *Converter {
	return &Converter{
		cfg:        cfg,
		api:        mineru.NewClient(cfg),
		download:   httputil.NewClient(cfg.ZipDownloadTimeout, cfg.Retry),
		workspaces: workspaces,
	}
}

// ConvertImages converts every supported image in imageDir through the
// remote service and writes the merged result. Output lands in
// outputDir/outputName (or next to imageDir when outputDir is empty), and
// the whole per-article result tree is packaged one level above it.
// Per-file progress is written to w.
//
// Per-file failures degrade to inline placeholder comments; batch-level
// failures (submission rejected, poll timeout, packaging) return an error
// and no result.
func (c *Converter) ConvertImages(ctx context.Context, imageDir, outputDir, outputName string, w io.Writer) (*types.BatchResult, error) {
	images, err := c.listImages(imageDir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, imageDir)
	}

	if outputName == "" {
		outputName = defaultOutputName
	}
	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(strings.TrimRight(imageDir, "/")), outputName)
	} else {
		outputDir = filepath.Join(outputDir, outputName)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &PackagingError{Step: "creating output directory", Err: err}
	}

	fmt.Fprintf(w, "found %d file(s) in %s\n", len(images), imageDir)

	fileNames := make([]string, len(images))
	for i, img := range images {
		fileNames[i] = filepath.Base(img)
	}

	fmt.Fprintln(w, "requesting upload slots...")
	batchID, slots, err := c.api.RequestUploadSlots(ctx, fileNames)
	if err != nil {
		return nil, fmt.Errorf("requesting upload slots: %w", err)
	}
	fmt.Fprintf(w, "batch id: %s\n", batchID)

	fmt.Fprintln(w, "uploading files...")
	uploaded, err := c.api.UploadAll(ctx, images, slots)
	if err != nil {
		return nil, fmt.Errorf("uploading files: %w", err)
	}
	fmt.Fprintf(w, "uploaded %d/%d file(s)\n", uploaded, len(images))

	fmt.Fprintln(w, "waiting for remote processing...")
	results, err := c.api.AwaitCompletion(ctx, batchID, c.cfg.PollMaxWait, c.cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("awaiting batch %s: %w", batchID, err)
	}

	ws, err := c.workspaces.Create("converter")
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	sections, totalImages, err := c.materializeAll(ctx, results, ws.Path(), w)
	if err != nil {
		return nil, err
	}

	// The manifest goes in before packaging so the archive carries it.
	if err := writeManifest(outputDir, batchID, results, totalImages); err != nil {
		return nil, &PackagingError{Step: "writing manifest", Err: err}
	}

	result, err := c.writeOutput(sections, ws.Path(), outputDir, outputName, totalImages)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "\ndone: %s (%d images, archive %s)\n",
		result.MarkdownFile, result.ImageCount, result.ZipFile)
	return result, nil
}

// listImages returns the supported files in dir sorted by name; the sorted
// position is each file's sequence index for the rest of the pipeline.
func (c *Converter) listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory %s: %w", dir, err)
	}

	supported := make(map[string]bool, len(c.cfg.SupportedFormats))
	for _, ext := range c.cfg.SupportedFormats {
		supported[strings.ToLower(ext)] = true
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !supported[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// materializeAll runs the per-file materializer over the terminal results,
// concurrently but slotted by sequence order so the merge is deterministic.
// Failed files contribute a placeholder section and zero images.
func (c *Converter) materializeAll(ctx context.Context, results []mineru.FileResult, wsPath string, w io.Writer) ([]string, int, error) {
	sorted := make([]mineru.FileResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SequenceIndex < sorted[j].SequenceIndex
	})

	workers := c.cfg.MaxConcurrentUploads
	if workers <= 0 {
		workers = 5
	}

	sections := make([]string, len(sorted))
	counts := make([]int, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range sorted {
		g.Go(func() error {
			if r.State == mineru.StateDone && r.ZipURL != "" {
				sections[i], counts[i] = c.materialize(gctx, r.ZipURL, r.FileName, i, wsPath)
				return nil
			}
			errMsg := r.ErrMsg
			if errMsg == "" {
				errMsg = "unknown error"
			}
			sections[i] = fmt.Sprintf("\n\n<!-- %s conversion failed: %s -->\n\n", r.FileName, errMsg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for i, r := range sorted {
		total += counts[i]
		if r.State == mineru.StateDone {
			fmt.Fprintf(w, "materialized %s (%d images)\n", r.FileName, counts[i])
		} else {
			fmt.Fprintf(w, "failed %s: %s\n", r.FileName, r.ErrMsg)
		}
	}
	return sections, total, nil
}

// writeOutput merges the sections, consolidates extracted images, and
// packages the whole result tree. Any filesystem failure aborts the batch
// with *PackagingError.
func (c *Converter) writeOutput(sections []string, wsPath, outputDir, outputName string, imageCount int) (*types.BatchResult, error) {
	merged := strings.Join(sections, sectionSeparator)
	mdFile := filepath.Join(outputDir, outputName+".md")
	if err := os.WriteFile(mdFile, []byte(merged), 0o644); err != nil {
		return nil, &PackagingError{Step: "writing merged markdown", Err: err}
	}

	wsImages := filepath.Join(wsPath, "images")
	outImages := ""
	if entries, err := os.ReadDir(wsImages); err == nil && len(entries) > 0 {
		outImages = filepath.Join(outputDir, "images")
		if err := copyDir(wsImages, outImages); err != nil {
			return nil, &PackagingError{Step: "consolidating images", Err: err}
		}
	}

	// Package the whole per-article tree (merged output plus any sibling
	// assets from the fetch stage) one level above it.
	resultRoot := filepath.Dir(outputDir)
	zipFile := filepath.Join(filepath.Dir(resultRoot), filepath.Base(resultRoot)+".zip")
	if err := zipDirectory(resultRoot, zipFile); err != nil {
		return nil, &PackagingError{Step: "packaging archive", Err: err}
	}

	return &types.BatchResult{
		OutputDir:    outputDir,
		MarkdownFile: mdFile,
		ImagesDir:    outImages,
		ZipFile:      zipFile,
		ImageCount:   imageCount,
	}, nil
}
