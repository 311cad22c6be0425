// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
)

// canonicalMarkdown is the conventional name of the full document inside a
// result archive, at top level or nested one directory deep.
const canonicalMarkdown = "full.md"

// imageExtensions are the entry types extracted from result archives.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".webp": true, ".svg": true,
}

// materialize downloads one file's result archive and unpacks it: the
// Markdown payload with image references rewritten for the merge, and the
// archive's images extracted into wsPath/images with the sequence-index
// prefix. Every failure (transport, HTTP status, corrupt zip) degrades
// to a placeholder comment and zero images; materialization never fails
// the batch.
func (c *Converter) materialize(ctx context.Context, zipURL, fileName string, index int, wsPath string) (string, int) {
	req, err := http.NewRequest(http.MethodGet, zipURL, nil)
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("invalid result URL: %v", err)), 0
	}

	resp, err := c.download.Do(ctx, req)
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("download failed: %v", err)), 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return placeholder(fileName, fmt.Sprintf("download failed with HTTP %d", resp.StatusCode)), 0
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("reading archive: %v", err)), 0
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("opening archive: %v", err)), 0
	}

	md, err := extractMarkdown(zr, index)
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("reading markdown: %v", err)), 0
	}
	if md == "" {
		md = placeholder(fileName, "no markdown found in result archive")
	}

	count, err := c.extractImages(zr, index, wsPath)
	if err != nil {
		return placeholder(fileName, fmt.Sprintf("extracting images: %v", err)), 0
	}

	logging.Debug("materialized result",
		zap.String("file", fileName),
		zap.Int("index", index),
		zap.Int("images", count),
	)
	return md, count
}

// placeholder builds the inline failure comment recorded in the merged
// document for a file that could not be materialized.
func placeholder(fileName, reason string) string {
	return fmt.Sprintf("<!-- %s: %s -->", fileName, reason)
}

// extractMarkdown locates the Markdown payload: the canonical full.md at
// top level or one directory deep is preferred, then any .md at the same
// depth. An empty return means the archive carries no markdown at all.
func extractMarkdown(zr *zip.Reader, index int) (string, error) {
	var fallback *zip.File
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".md") || strings.Count(f.Name, "/") > 1 {
			continue
		}
		if strings.HasSuffix(f.Name, canonicalMarkdown) {
			return readRewritten(f, index)
		}
		if fallback == nil {
			fallback = f
		}
	}
	if fallback == nil {
		return "", nil
	}
	return readRewritten(fallback, index)
}

func readRewritten(f *zip.File, index int) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return RewriteImageRefs(string(data), index), nil
}

// extractImages writes every image entry under the archive's images folder
// to wsPath/images with the sequence-index prefix. The folder match
// tolerates archives that nest content one level deep.
func (c *Converter) extractImages(zr *zip.Reader, index int, wsPath string) (int, error) {
	outDir := filepath.Join(wsPath, "images")
	count := 0

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !imageExtensions[strings.ToLower(path.Ext(f.Name))] {
			continue
		}
		if !strings.Contains(f.Name, "/images/") && !strings.HasPrefix(f.Name, imagesPrefix) {
			continue
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return count, err
		}

		target := filepath.Join(outDir, fmt.Sprintf("%04d_%s", index, path.Base(f.Name)))
		if err := writeZipEntry(f, target); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
