// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mineru is a client for the MinerU OCR/layout-recognition batch
// API: it requests upload slots, uploads files to pre-signed URLs, and
// polls batch status until every file reaches a terminal state.
package mineru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/mdscan/internal/httputil"
	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/pkg/types"
)

// now is swapped out by tests that need deterministic data_ids.
var now = time.Now

// Client talks to the MinerU batch API. API calls carry the bearer token;
// pre-signed upload URLs are hit without it.
type Client struct {
	cfg  types.MineruConfig
	http *httputil.Client
}

// NewClient builds a client from config. The retrying HTTP client uses the
// ordinary request timeout; result-archive downloads use their own client
// with a longer timeout (see the convert package).
func NewClient(cfg types.MineruConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: httputil.NewClient(cfg.RequestTimeout, cfg.Retry),
	}
}

// UploadSlot is one file's pre-signed upload target, in submission order.
type UploadSlot struct {
	// SequenceIndex is the file's stable 0-based position in the batch.
	SequenceIndex int

	// FileName is the original file name submitted for this slot.
	FileName string

	// DataID is the per-file identifier sent at submission; it encodes
	// the sequence index so results can be re-ordered later.
	DataID string

	// URL is the pre-signed upload target.
	URL string
}

// dataID builds the per-file identifier "file_{index:04d}_{unixts}".
func dataID(index int, ts int64) string {
	return fmt.Sprintf("file_%04d_%d", index, ts)
}

type submitFile struct {
	Name   string `json:"name"`
	DataID string `json:"data_id"`
}

type submitRequest struct {
	Files         []submitFile `json:"files"`
	EnableFormula bool         `json:"enable_formula"`
	EnableTable   bool         `json:"enable_table"`
	LayoutModel   string       `json:"layout_model"`
	Language      string       `json:"language"`
}

type submitResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		BatchID  string   `json:"batch_id"`
		FileURLs []string `json:"file_urls"`
	} `json:"data"`
}

// RequestUploadSlots submits the ordered file list and returns the batch
// identifier plus one upload slot per file, in submission order.
func (c *Client) RequestUploadSlots(ctx context.Context, fileNames []string) (string, []UploadSlot, error) {
	ts := now().Unix()
	files := make([]submitFile, len(fileNames))
	for i, name := range fileNames {
		files[i] = submitFile{Name: name, DataID: dataID(i, ts)}
	}

	body := submitRequest{
		Files:         files,
		EnableFormula: c.cfg.EnableFormula,
		EnableTable:   c.cfg.EnableTable,
		LayoutModel:   c.cfg.LayoutModel,
		Language:      c.cfg.Language,
	}

	var resp submitResponse
	if err := c.apiPost(ctx, c.cfg.BaseURL+"/file-urls/batch", body, &resp); err != nil {
		return "", nil, err
	}

	if len(resp.Data.FileURLs) != len(fileNames) {
		return "", nil, fmt.Errorf("service returned %d upload URLs for %d files",
			len(resp.Data.FileURLs), len(fileNames))
	}

	slots := make([]UploadSlot, len(fileNames))
	for i, url := range resp.Data.FileURLs {
		slots[i] = UploadSlot{
			SequenceIndex: i,
			FileName:      fileNames[i],
			DataID:        files[i].DataID,
			URL:           url,
		}
	}
	return resp.Data.BatchID, slots, nil
}

// UploadAll uploads the files concurrently with a bounded worker pool and
// returns the number of successes. One file's failure does not cancel the
// others; the caller decides whether a partial upload is acceptable.
func (c *Client) UploadAll(ctx context.Context, filePaths []string, slots []UploadSlot) (int, error) {
	if len(filePaths) != len(slots) {
		return 0, fmt.Errorf("%d file paths for %d upload slots", len(filePaths), len(slots))
	}

	workers := c.cfg.MaxConcurrentUploads
	if workers <= 0 {
		workers = 5
	}
	logging.Info("uploading files",
		zap.Int("count", len(filePaths)),
		zap.Int("workers", workers),
	)

	var successCount atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range filePaths {
		path, slot := filePaths[i], slots[i]
		g.Go(func() error {
			if err := c.uploadOne(gctx, path, slot.URL); err != nil {
				logging.Error("upload failed",
					zap.String("file", filepath.Base(path)),
					zap.Error(err),
				)
				return nil
			}
			logging.Info("upload succeeded", zap.String("file", filepath.Base(path)))
			successCount.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(successCount.Load()), err
	}

	logging.Info("uploads complete",
		zap.Int("succeeded", int(successCount.Load())),
		zap.Int("total", len(filePaths)),
	)
	return int(successCount.Load()), nil
}

// uploadOne PUTs the raw file bytes to the pre-signed URL. The file is
// read into memory so the retrying client can replay the body.
func (c *Client) uploadOne(ctx context.Context, path, url string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// apiPost issues an authenticated JSON POST and decodes the envelope,
// converting non-200 statuses and non-zero codes to *RemoteRejectedError.
func (c *Client) apiPost(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

// apiGet issues an authenticated GET and decodes the envelope.
func (c *Client) apiGet(ctx context.Context, url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

// envelope is the common {code, msg} shape of API responses.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func decodeEnvelope(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		return &RemoteRejectedError{HTTPStatus: resp.StatusCode}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.Code != 0 {
		return &RemoteRejectedError{HTTPStatus: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
