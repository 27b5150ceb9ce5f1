package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/middleware"
	"github.com/coreflowhq/wabroker/internal/poller"
)

const (
	errorCodePollerAlreadyRunning = "POLLER_ALREADY_RUNNING"
	errorCodePollerNotRunning     = "POLLER_NOT_RUNNING"
)

type pollerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StartPoller starts the event ingestion loop.
func (h *Handler) StartPoller(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Poller.Start(); err != nil {
		if errors.Is(err, poller.ErrPollerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodePollerAlreadyRunning, "Poller is already running")
			return
		}

		h.logger.Error("Failed to start poller",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to start poller")
		return
	}

	render.JSON(w, r, pollerResponse{
		Status:  "started",
		Message: "Poller started successfully",
	})
}

// StopPoller stops the event ingestion loop.
func (h *Handler) StopPoller(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Poller.Stop(); err != nil {
		if errors.Is(err, poller.ErrPollerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodePollerNotRunning, "Poller is not running")
			return
		}

		h.logger.Error("Failed to stop poller",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Failed to stop poller")
		return
	}

	render.JSON(w, r, pollerResponse{
		Status:  "stopped",
		Message: "Poller stopped successfully",
	})
}
