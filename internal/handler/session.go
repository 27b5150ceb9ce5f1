package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/middleware"
	"github.com/coreflowhq/wabroker/internal/models"
)

const (
	errorCodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	errorCodeMissingSessionID   = "MISSING_SESSION_ID"
	errorCodeBrokerDisabled     = "BROKER_NOT_CONFIGURED"
)

// ConnectSession starts (or resumes) a broker session.
func (h *Handler) ConnectSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	status, err := h.service.Session.Connect(r.Context(), sessionID)
	if err != nil {
		h.handleGatewayError(w, r, "connect session", sessionID, err)
		return
	}

	render.JSON(w, r, status)
}

// LogoutSession terminates a broker session.
func (h *Handler) LogoutSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	if err := h.service.Session.Logout(r.Context(), sessionID); err != nil {
		h.handleGatewayError(w, r, "logout session", sessionID, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "logged_out"})
}

// GetSessionStatus reports the broker's view of one session.
func (h *Handler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	status, err := h.service.Session.Status(r.Context(), sessionID)
	if err != nil {
		h.handleGatewayError(w, r, "get session status", sessionID, err)
		return
	}

	render.JSON(w, r, status)
}

// GetQRCode returns the pairing QR for a session. An empty body is a normal
// transient state while the broker has not generated a code yet.
func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	qr, err := h.service.Session.QRCode(r.Context(), sessionID)
	if err != nil {
		h.handleGatewayError(w, r, "get qr code", sessionID, err)
		return
	}

	render.JSON(w, r, qr)
}

// SendMessage sends one outbound message over a session.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	var input models.SendMessageInput
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequestBody, "Invalid request body")
		return
	}

	result, err := h.service.Session.SendMessage(r.Context(), sessionID, input)
	if err != nil {
		h.handleGatewayError(w, r, "send message", sessionID, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// CreatePoll sends an outbound poll over a session.
func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingSessionID, "Session id is required")
		return
	}

	var input models.CreatePollInput
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequestBody, "Invalid request body")
		return
	}
	if input.Question == "" || len(input.Options) < 2 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequestBody, "A poll needs a question and at least two options")
		return
	}

	result, err := h.service.Session.CreatePoll(r.Context(), sessionID, input)
	if err != nil {
		h.handleGatewayError(w, r, "create poll", sessionID, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

func (h *Handler) handleGatewayError(w http.ResponseWriter, r *http.Request, op, sessionID string, err error) {
	if errors.Is(err, broker.ErrNotConfigured) {
		h.sendError(w, r, http.StatusServiceUnavailable, errorCodeBrokerDisabled, "Broker integration is not configured")
		return
	}

	h.logger.Warn("Broker call failed",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))
	h.sendBrokerError(w, r, err)
}
