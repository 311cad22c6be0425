// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package webapp serves the web front-end: it accepts article URLs,
// runs conversions as asynchronous tasks, and serves the resulting
// Markdown and archives.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/history"
	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/internal/pipeline"
	"github.com/pdiddy/mdscan/pkg/types"
)

// Runner executes one end-to-end conversion. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, url string, w io.Writer) (*pipeline.Result, error)
}

// Server is the web front-end.
type Server struct {
	cfg    types.WebConfig
	runner Runner
	store  *history.Store
	tasks  *taskRegistry
}

// NewServer builds the front-end around a conversion runner and the
// history store. The store may be nil, which disables history.
func NewServer(cfg types.WebConfig, runner Runner, store *history.Store) *Server {
	return &Server{
		cfg:    cfg,
		runner: runner,
		store:  store,
		tasks:  newTaskRegistry(),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/convert", s.handleConvert).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}", s.handleTaskStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/preview", s.handlePreview).Methods(http.MethodGet)
	r.HandleFunc("/download/md", s.handleDownloadMarkdown).Methods(http.MethodGet)
	r.HandleFunc("/download/zip", s.handleDownloadZip).Methods(http.MethodGet)
	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("web server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type convertRequest struct {
	URL string `json:"url"`
}

// handleConvert validates the request, registers a task, and starts the
// conversion in the background. The response carries the task ID for
// status polling.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "article url is required")
		return
	}
	if !strings.HasPrefix(url, "http") {
		writeError(w, http.StatusBadRequest, "invalid url format")
		return
	}

	task := s.tasks.create(url)
	go s.runTask(task.ID, url)

	writeJSON(w, task, http.StatusAccepted)
}

func (s *Server) runTask(taskID, url string) {
	logging.Info("conversion task started",
		zap.String("task_id", taskID),
		zap.String("url", url),
	)

	s.tasks.setProcessing(taskID)
	pw := &progressWriter{registry: s.tasks, taskID: taskID}

	result, err := s.runner.Run(context.Background(), url, pw)
	if err != nil {
		logging.Error("conversion task failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		s.tasks.setFailed(taskID, err)
		return
	}

	s.tasks.setDone(taskID, result)
	s.recordHistory(result)

	logging.Info("conversion task finished",
		zap.String("task_id", taskID),
		zap.String("title", result.Title),
	)
}

func (s *Server) recordHistory(result *pipeline.Result) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.store.Add(ctx, types.ConversionRecord{
		Title:        result.Title,
		MarkdownFile: result.Batch.MarkdownFile,
		ZipFile:      result.Batch.ZipFile,
		ImageCount:   result.Batch.ImageCount,
	})
	if err != nil {
		logging.Warn("recording conversion history failed", zap.Error(err))
		return
	}
	if err := s.store.Trim(ctx, s.cfg.MaxHistoryItems); err != nil {
		logging.Warn("trimming conversion history failed", zap.Error(err))
	}
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, task, http.StatusOK)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []types.ConversionRecord{}, http.StatusOK)
		return
	}

	records, err := s.store.Recent(r.Context(), s.cfg.MaxHistoryItems)
	if err != nil {
		logging.Error("loading history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []types.ConversionRecord{}
	}
	writeJSON(w, records, http.StatusOK)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveOutputPath(r.URL.Query().Get("file"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, map[string]string{"content": string(content)}, http.StatusOK)
}

func (s *Server) handleDownloadMarkdown(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveOutputPath(r.URL.Query().Get("file"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveOutputPath(r.URL.Query().Get("file"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// resolveOutputPath confines a requested file to the output directory so
// download handlers cannot be walked out of it.
func (s *Server) resolveOutputPath(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("file parameter is required")
	}

	base, err := filepath.Abs(s.cfg.OutputDir)
	if err != nil {
		return "", errors.New("invalid output directory")
	}

	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(base, candidate)
	}
	candidate, err = filepath.Abs(candidate)
	if err != nil {
		return "", errors.New("invalid file path")
	}

	rel, err := filepath.Rel(base, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("file path outside output directory")
	}
	return candidate, nil
}
