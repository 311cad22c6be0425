// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package webapp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
)

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		logging.Error("failed to marshal response", zap.Error(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)

	if _, err := w.Write(body); err != nil {
		logging.Error("failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body, err := json.Marshal(errorResponse{Status: statusCode, Error: message})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(body); err != nil {
		logging.Error("failed to write response", zap.Error(err))
		return
	}

	logging.Warn("request failed",
		zap.Int("status", statusCode),
		zap.String("message", message),
	)
}
