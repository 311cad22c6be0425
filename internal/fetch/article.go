// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads web articles and saves their images as a
// numbered sequence ready for batch conversion.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/mdscan/internal/httputil"
	"github.com/pdiddy/mdscan/pkg/types"
)

// imagesSubdir holds the downloaded page images inside the article
// directory.
const imagesSubdir = "downloaded_images"

var (
	illegalTitleChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// Fetcher downloads article pages and their images.
type Fetcher struct {
	cfg    types.FetchConfig
	client *httputil.Client
}

// NewFetcher builds a fetcher with a retrying HTTP client.
func NewFetcher(cfg types.FetchConfig) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: httputil.NewClient(cfg.RequestTimeout, cfg.Retry),
	}
}

// FetchArticle retrieves the page at url, derives a directory name from
// its title, and downloads the content images into
// {OutputDir}/{title}/downloaded_images as a numbered sequence.
// Individual image failures are reported on w and skipped; the page
// request itself failing is fatal.
func (f *Fetcher) FetchArticle(ctx context.Context, url string, w io.Writer) (*types.FetchResult, error) {
	fmt.Fprintf(w, "fetching article: %s\n", url)

	doc, err := f.fetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching article page: %w", err)
	}

	title := extractTitle(doc, f.cfg.MaxTitleLength)
	fmt.Fprintf(w, "article title: %s\n", title)

	resultDir := filepath.Join(f.cfg.OutputDir, title)
	imagesDir := filepath.Join(resultDir, imagesSubdir)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating article directory: %w", err)
	}

	urls := extractImageURLs(doc)
	fmt.Fprintf(w, "found %d image(s)\n", len(urls))

	images, err := f.downloadImages(ctx, urls, imagesDir, w)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "saved %d/%d image(s) to %s\n", len(images), len(urls), imagesDir)

	return &types.FetchResult{
		Title:     title,
		ResultDir: resultDir,
		ImagesDir: imagesDir,
		Images:    images,
	}, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// extractTitle derives a filesystem-safe article title. It tries the
// article heading element, then the og:title meta tag, then the document
// title, and falls back to a timestamped name when all are empty.
func extractTitle(doc *goquery.Document, maxLen int) string {
	title := strings.TrimSpace(doc.Find("#activity-name").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	title = sanitizeTitle(title, maxLen)
	if title == "" {
		return fmt.Sprintf("article_%d", time.Now().Unix())
	}
	return title
}

// sanitizeTitle replaces characters that are unsafe in directory names,
// collapses whitespace, and caps the length.
func sanitizeTitle(title string, maxLen int) string {
	title = illegalTitleChars.ReplaceAllString(title, "_")
	title = strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
	if maxLen > 0 {
		if runes := []rune(title); len(runes) > maxLen {
			title = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return title
}

// extractImageURLs collects the content images in document order. The
// article body is the #img-content element, or .rich_media_content when
// absent; real image URLs live in the data-src attribute.
func extractImageURLs(doc *goquery.Document) []string {
	content := doc.Find("#img-content").First()
	if content.Length() == 0 {
		content = doc.Find(".rich_media_content").First()
	}
	if content.Length() == 0 {
		return nil
	}

	var urls []string
	content.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("data-src"); ok && src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}
