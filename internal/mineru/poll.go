// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mineru

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
)

// pollSleep is swapped out by tests to avoid real interval waits.
var pollSleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// FileResult is one file's terminal outcome as reported by the service.
type FileResult struct {
	// SequenceIndex is the stable 0-based submission position, recovered
	// from DataID. It is the sole ordering key for the final merge.
	SequenceIndex int

	// FileName is the original file name.
	FileName string

	// DataID is the identifier assigned at submission time.
	DataID string

	// State is the remote processing state.
	State ConversionState

	// ZipURL is the result archive location, present when State is done.
	ZipURL string

	// ErrMsg is the remote error description, present when State is failed.
	ErrMsg string
}

type statusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ExtractResult []struct {
			FileName   string `json:"file_name"`
			DataID     string `json:"data_id"`
			State      string `json:"state"`
			FullZipURL string `json:"full_zip_url"`
			ErrMsg     string `json:"err_msg"`
		} `json:"extract_result"`
	} `json:"data"`
}

// AwaitCompletion polls batch status until no file remains pending or
// processing, then returns every file's result. It blocks the calling
// goroutine for the whole wait; the only deadline is the configured
// maximum, after which it fails with *PollTimeoutError. Zero maxWait and
// interval fall back to the configured values.
//
// Files that failed remotely are returned alongside completed ones; the
// poller does not short-circuit on the first failure, it waits until the
// batch can make no further progress.
func (c *Client) AwaitCompletion(ctx context.Context, batchID string, maxWait, interval time.Duration) ([]FileResult, error) {
	if maxWait <= 0 {
		maxWait = c.cfg.PollMaxWait
	}
	if interval <= 0 {
		interval = c.cfg.PollInterval
	}

	url := fmt.Sprintf("%s/extract-results/batch/%s", c.cfg.BaseURL, batchID)
	start := now()

	for {
		var resp statusResponse
		if err := c.apiGet(ctx, url, &resp); err != nil {
			return nil, err
		}

		items := resp.Data.ExtractResult
		if len(items) > 0 {
			results := make([]FileResult, len(items))
			pending := 0
			done := 0
			for i, item := range items {
				state, err := ParseState(item.State)
				if err != nil {
					return nil, err
				}
				if !state.Terminal() {
					pending++
				}
				if state == StateDone {
					done++
				}
				idx, err := sequenceIndex(item.DataID)
				if err != nil {
					idx = i
				}
				results[i] = FileResult{
					SequenceIndex: idx,
					FileName:      item.FileName,
					DataID:        item.DataID,
					State:         state,
					ZipURL:        item.FullZipURL,
					ErrMsg:        item.ErrMsg,
				}
			}

			if pending == 0 {
				logging.Info("batch reached terminal state",
					zap.String("batch_id", batchID),
					zap.Int("done", done),
					zap.Int("total", len(results)),
				)
				return results, nil
			}
			logging.Debug("batch still processing",
				zap.String("batch_id", batchID),
				zap.Int("done", done),
				zap.Int("total", len(results)),
				zap.Duration("elapsed", now().Sub(start)),
			)
		} else {
			logging.Debug("waiting for extraction to start",
				zap.String("batch_id", batchID),
				zap.Duration("elapsed", now().Sub(start)),
			)
		}

		if now().Sub(start)+interval > maxWait {
			return nil, &PollTimeoutError{BatchID: batchID, Waited: maxWait}
		}
		if err := pollSleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// sequenceIndex recovers the 0-based submission position from a data_id of
// the form "file_{index:04d}_{unixts}".
func sequenceIndex(dataID string) (int, error) {
	parts := strings.Split(dataID, "_")
	if len(parts) != 3 || parts[0] != "file" {
		return 0, fmt.Errorf("malformed data_id %q", dataID)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed data_id %q: %w", dataID, err)
	}
	return idx, nil
}
