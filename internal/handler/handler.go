// Package handler provides HTTP request handlers for the application.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/middleware"
	"github.com/coreflowhq/wabroker/internal/service"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now(),
	})
}

// sendBrokerError maps a normalized broker failure onto an HTTP status. The
// canonical kind doubles as the wire error code.
func (h *Handler) sendBrokerError(w http.ResponseWriter, r *http.Request, err error) {
	be, ok := broker.AsError(err)
	if !ok {
		h.logger.Error("Unexpected error from broker gateway",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
		return
	}

	h.sendError(w, r, brokerErrorStatus(be.Kind), string(be.Kind), be.Message)
}

func brokerErrorStatus(kind broker.Kind) int {
	switch kind {
	case broker.KindRateLimited:
		return http.StatusTooManyRequests
	case broker.KindTimeout:
		return http.StatusGatewayTimeout
	case broker.KindNotConnected:
		return http.StatusConflict
	case broker.KindInvalidTo, broker.KindInvalidMediaPayload, broker.KindUnsupportedMessageType:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
