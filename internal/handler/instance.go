package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const errorCodeMissingInstanceID = "MISSING_INSTANCE_ID"

type createInstanceRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

// ListInstances returns all provisioned broker instances.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.service.Session.ListInstances(r.Context())
	if err != nil {
		h.handleGatewayError(w, r, "list instances", "", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"instances": instances,
		"total":     len(instances),
	})
}

// CreateInstance provisions a new broker instance.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequestBody, "Invalid request body")
		return
	}

	instance, err := h.service.Session.CreateInstance(r.Context(), req.TenantID, req.Name)
	if err != nil {
		h.handleGatewayError(w, r, "create instance", "", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, instance)
}

// DeleteInstance removes a broker instance.
func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeMissingInstanceID, "Instance id is required")
		return
	}

	if err := h.service.Session.DeleteInstance(r.Context(), instanceID); err != nil {
		h.handleGatewayError(w, r, "delete instance", instanceID, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "deleted"})
}
