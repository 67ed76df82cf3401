package handlers

import (
	"context"
	"net/http"

	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserAdminService defines administrative account operations
type UserAdminService interface {
	SetActive(ctx context.Context, username string, active bool) (*models.UserProfile, error)
}

// UpdateStatusRequest is the body of a status change
type UpdateStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// AdminHandler handles /api/admin requests
type AdminHandler struct {
	service UserAdminService
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service UserAdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

// HandleUpdateStatus handles PATCH /api/admin/users/{username}/status
func (h *AdminHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		_ = utils.WriteBadRequest(w, "username is required", nil)
		return
	}

	var req UpdateStatusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	profile, err := h.service.SetActive(r.Context(), username, *req.Active)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, profile)
}
