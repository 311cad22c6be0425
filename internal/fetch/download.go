// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var fmtParam = regexp.MustCompile(`fmt=([a-zA-Z]+)`)

// sleep is swapped out in tests.
var sleep = time.Sleep

// downloadImages fetches urls sequentially into dir as 001.jpg,
// 002.png, ... with a politeness delay between downloads. Failures are
// reported on w and skipped.
func (f *Fetcher) downloadImages(ctx context.Context, urls []string, dir string, w io.Writer) ([]string, error) {
	var saved []string
	for i, url := range urls {
		if i > 0 && f.cfg.DownloadDelay > 0 {
			sleep(f.cfg.DownloadDelay)
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		name := fmt.Sprintf("%03d.%s", i+1, imageFormat(url))
		path := filepath.Join(dir, name)
		if err := f.downloadFile(ctx, url, path); err != nil {
			fmt.Fprintf(w, "image %d/%d failed: %v\n", i+1, len(urls), err)
			continue
		}
		fmt.Fprintf(w, "saved [%d/%d]: %s\n", i+1, len(urls), name)
		saved = append(saved, path)
	}
	return saved, nil
}

// imageFormat reads the image format from the URL's fmt query parameter,
// defaulting to jpg.
func imageFormat(url string) string {
	if m := fmtParam.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return "jpg"
}

// downloadFile fetches url to destPath through a temporary file so a
// partial download never leaves a truncated image behind.
func (f *Fetcher) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
