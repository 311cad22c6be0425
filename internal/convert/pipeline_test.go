// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdscan/internal/tempdir"
	"github.com/pdiddy/mdscan/pkg/types"
)

// fakeService mocks the MinerU API plus upload and result-archive hosting.
type fakeService struct {
	srv *httptest.Server

	mu      sync.Mutex
	status  string
	zips    map[string][]byte
	uploads map[string][]byte
}

func newFakeService(t *testing.T, fileCount int) *fakeService {
	t.Helper()
	f := &fakeService{
		zips:    make(map[string][]byte),
		uploads: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /file-urls/batch", func(w http.ResponseWriter, r *http.Request) {
		urls := make([]string, fileCount)
		for i := range urls {
			urls[i] = fmt.Sprintf("%q", fmt.Sprintf("%s/up/%d", f.srv.URL, i))
		}
		fmt.Fprintf(w, `{"code":0,"data":{"batch_id":"batch-e2e","file_urls":[%s]}}`,
			strings.Join(urls, ","))
	})
	mux.HandleFunc("PUT /up/{i}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads[r.PathValue("i")] = body
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /extract-results/batch/batch-e2e", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprint(w, f.status)
	})
	mux.HandleFunc("GET /zip/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		payload, ok := f.zips[r.PathValue("name")]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(payload)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) addZip(t *testing.T, name string, entries map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zips[name] = buildZip(t, entries)
	return f.srv.URL + "/zip/" + name
}

func (f *fakeService) setStatus(items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = fmt.Sprintf(`{"code":0,"data":{"extract_result":[%s]}}`, strings.Join(items, ","))
}

func doneItem(name, dataID, zipURL string) string {
	return fmt.Sprintf(`{"file_name":%q,"data_id":%q,"state":"done","full_zip_url":%q}`,
		name, dataID, zipURL)
}

func failedItem(name, dataID, errMsg string) string {
	return fmt.Sprintf(`{"file_name":%q,"data_id":%q,"state":"failed","err_msg":%q}`,
		name, dataID, errMsg)
}

// newPipeline builds a converter against the fake service with a dedicated
// workspace base so tests can assert cleanup.
func newPipeline(t *testing.T, f *fakeService) (*Converter, string) {
	t.Helper()
	wsBase := t.TempDir()
	cfg := types.DefaultMineruConfig()
	cfg.BaseURL = f.srv.URL
	cfg.APIToken = "t"
	cfg.RequestTimeout = 5 * time.Second
	cfg.ZipDownloadTimeout = 5 * time.Second
	cfg.PollMaxWait = 5 * time.Second
	cfg.PollInterval = time.Millisecond
	cfg.Retry = types.RetryConfig{
		MaxAttempts:    1,
		WaitMultiplier: 1,
		WaitMin:        time.Millisecond,
		WaitMax:        time.Millisecond,
	}
	return NewConverter(cfg, tempdir.NewManager(types.WorkspaceConfig{BaseDir: wsBase})), wsBase
}

// setupArticle creates base/article/downloaded_images with n numbered jpgs
// and returns the article directory and image directory.
func setupArticle(t *testing.T, n int) (articleDir, imageDir string) {
	t.Helper()
	articleDir = filepath.Join(t.TempDir(), "article")
	imageDir = filepath.Join(articleDir, "downloaded_images")
	require.NoError(t, os.MkdirAll(imageDir, 0o755))
	for i := range n {
		path := filepath.Join(imageDir, fmt.Sprintf("%03d.jpg", i+1))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("jpeg-%d", i)), 0o644))
	}
	return articleDir, imageDir
}

func assertNoWorkspacesLeft(t *testing.T, wsBase string) {
	t.Helper()
	entries, err := os.ReadDir(wsBase)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), tempdir.Prefix),
			"workspace %s not cleaned up", e.Name())
	}
}

func TestConvertImages_EndToEnd(t *testing.T) {
	f := newFakeService(t, 2)
	articleDir, imageDir := setupArticle(t, 2)

	zipA := f.addZip(t, "a", map[string]string{
		"full.md":        "First page ![f](images/foo.png)",
		"images/foo.png": "png-a",
	})
	zipB := f.addZip(t, "b", map[string]string{
		"full.md":        "Second page ![f](images/foo.png)",
		"images/foo.png": "png-b",
	})
	f.setStatus(
		doneItem("001.jpg", "file_0000_1700000000", zipA),
		doneItem("002.jpg", "file_0001_1700000000", zipB),
	)

	c, wsBase := newPipeline(t, f)

	var out bytes.Buffer
	result, err := c.ConvertImages(context.Background(), imageDir, articleDir, "converted", &out)
	require.NoError(t, err)

	// Both files were uploaded as raw bytes.
	assert.Equal(t, []byte("jpeg-0"), f.uploads["0"])
	assert.Equal(t, []byte("jpeg-1"), f.uploads["1"])

	// Merged document: two sections joined by the separator, references
	// rewritten collision-free.
	md, err := os.ReadFile(result.MarkdownFile)
	require.NoError(t, err)
	assert.Equal(t,
		"First page ![f](images/0000_foo.png)\n\n---\n\nSecond page ![f](images/0001_foo.png)",
		string(md))

	// Consolidated images with unique prefixes.
	assert.Equal(t, 2, result.ImageCount)
	assert.FileExists(t, filepath.Join(result.ImagesDir, "0000_foo.png"))
	assert.FileExists(t, filepath.Join(result.ImagesDir, "0001_foo.png"))

	// Archive packages the whole article tree and never itself.
	assert.Equal(t, filepath.Join(filepath.Dir(articleDir), "article.zip"), result.ZipFile)
	names := zipEntryNames(t, result.ZipFile)
	assert.Contains(t, names, "converted/converted.md")
	assert.Contains(t, names, "converted/images/0000_foo.png")
	assert.Contains(t, names, "converted/images/0001_foo.png")
	assert.Contains(t, names, "converted/manifest.yaml")
	assert.Contains(t, names, "downloaded_images/001.jpg")
	for _, n := range names {
		assert.False(t, strings.HasSuffix(n, ".zip"), "archive contains %s", n)
	}

	assertNoWorkspacesLeft(t, wsBase)
}

func zipEntryNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestConvertImages_MergeOrderFollowsSubmission(t *testing.T) {
	f := newFakeService(t, 3)
	articleDir, imageDir := setupArticle(t, 3)

	zips := make([]string, 3)
	for i, text := range []string{"section A", "section B", "section C"} {
		zips[i] = f.addZip(t, fmt.Sprintf("z%d", i), map[string]string{"full.md": text})
	}
	// The service reports completion in reverse order; the merge must
	// still follow submission order.
	f.setStatus(
		doneItem("003.jpg", "file_0002_1700000000", zips[2]),
		doneItem("002.jpg", "file_0001_1700000000", zips[1]),
		doneItem("001.jpg", "file_0000_1700000000", zips[0]),
	)

	c, _ := newPipeline(t, f)

	result, err := c.ConvertImages(context.Background(), imageDir, articleDir, "converted", io.Discard)
	require.NoError(t, err)

	md, err := os.ReadFile(result.MarkdownFile)
	require.NoError(t, err)
	assert.Equal(t, "section A\n\n---\n\nsection B\n\n---\n\nsection C", string(md))
}

func TestConvertImages_FailedFileBecomesPlaceholder(t *testing.T) {
	f := newFakeService(t, 2)
	articleDir, imageDir := setupArticle(t, 2)

	zipA := f.addZip(t, "a", map[string]string{
		"full.md":      "good page ![i](images/i.png)",
		"images/i.png": "png",
	})
	f.setStatus(
		doneItem("001.jpg", "file_0000_1700000000", zipA),
		failedItem("002.jpg", "file_0001_1700000000", "low quality scan"),
	)

	c, wsBase := newPipeline(t, f)

	result, err := c.ConvertImages(context.Background(), imageDir, articleDir, "converted", io.Discard)
	require.NoError(t, err)

	md, err := os.ReadFile(result.MarkdownFile)
	require.NoError(t, err)

	// The failed file contributes exactly one placeholder naming it and
	// the remote error; the sibling is unaffected.
	assert.Equal(t, 1, strings.Count(string(md), "002.jpg"))
	assert.Contains(t, string(md), "<!-- 002.jpg conversion failed: low quality scan -->")
	assert.Contains(t, string(md), "good page ![i](images/0000_i.png)")
	assert.Equal(t, 1, result.ImageCount)

	assertNoWorkspacesLeft(t, wsBase)
}

func TestConvertImages_UnreachableArchiveDegrades(t *testing.T) {
	f := newFakeService(t, 1)
	articleDir, imageDir := setupArticle(t, 1)

	f.setStatus(doneItem("001.jpg", "file_0000_1700000000", f.srv.URL+"/zip/missing"))

	c, wsBase := newPipeline(t, f)

	result, err := c.ConvertImages(context.Background(), imageDir, articleDir, "converted", io.Discard)
	require.NoError(t, err)

	md, err := os.ReadFile(result.MarkdownFile)
	require.NoError(t, err)
	assert.Contains(t, string(md), "<!-- 001.jpg: download failed with HTTP 404 -->")
	assert.Equal(t, 0, result.ImageCount)
	assert.Empty(t, result.ImagesDir)

	assertNoWorkspacesLeft(t, wsBase)
}

func TestConvertImages_SubmissionRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /file-urls/batch", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":-500,"msg":"service unavailable"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	articleDir, imageDir := setupArticle(t, 1)

	wsBase := t.TempDir()
	cfg := types.DefaultMineruConfig()
	cfg.BaseURL = srv.URL
	cfg.Retry = types.RetryConfig{MaxAttempts: 1, WaitMultiplier: 1, WaitMin: time.Millisecond, WaitMax: time.Millisecond}
	c := NewConverter(cfg, tempdir.NewManager(types.WorkspaceConfig{BaseDir: wsBase}))

	result, err := c.ConvertImages(context.Background(), imageDir, articleDir, "converted", io.Discard)
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestConvertImages_EmptyDirectory(t *testing.T) {
	f := newFakeService(t, 0)
	c, _ := newPipeline(t, f)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, err := c.ConvertImages(context.Background(), dir, "", "", io.Discard)
	assert.True(t, errors.Is(err, ErrNoInputFiles))
}
