package handler

import (
	"log/slog"
	"net/http"

	"github.com/tinychef/UserData/internal/apperror"
)

// StatusHandler serves the liveness endpoints.
type StatusHandler struct {
	logger *slog.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(logger *slog.Logger) *StatusHandler {
	return &StatusHandler{logger: logger}
}

// HandleHome answers with a plain-text greeting.
//
// HTTP: GET /
func (h *StatusHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("Hello, World!")); err != nil {
		h.logger.Error("failed to write greeting", slog.String("error", err.Error()))
	}
}

// HandleNotFound answers unmatched routes with the standard JSON error
// body instead of chi's plain-text 404.
func (h *StatusHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("no route matched", slog.String("path", r.URL.Path))
	writeError(w, h.logger, apperror.NotFound("route", r.URL.Path))
}

// HandleTest confirms the API is reachable.
//
// HTTP: GET /test
func (h *StatusHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("test endpoint called")
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Server is working!"})
}
