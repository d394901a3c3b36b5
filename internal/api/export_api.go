package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"classbook/internal/audit"
	"classbook/internal/metrics"
	"classbook/internal/notify"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport streams the schedule as an Excel workbook.
// GET /api/export
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")

	var buf bytes.Buffer
	if err := audit.WriteWorkbook(&buf, s.controller.Snapshot()); err != nil {
		s.logger.Error().Err(err).Msg("Export failed")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", audit.Filename(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleNotifyTest sends a test email through the configured form.
// POST /api/notify/test
func (s *HTTPServer) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("notify_test")

	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if s.tester == nil {
		writeError(w, http.StatusServiceUnavailable, notify.ErrNotConfigured.Error())
		return
	}

	result, err := s.tester.TestConfiguration(r.Context(), req.Email)
	if errors.Is(err, notify.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}
