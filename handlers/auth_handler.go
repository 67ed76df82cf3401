package handlers

import (
	"context"
	"net/http"

	"github.com/carrot-market/backend/middleware"
	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/services"
	"github.com/carrot-market/backend/utils"
	"go.uber.org/zap"
)

// AuthService defines the account operations behind the /auth endpoints
type AuthService interface {
	Signup(ctx context.Context, input services.SignupInput) (*models.UserProfile, error)
	Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
	CurrentIdentity(ctx context.Context) (*models.UserProfile, error)
}

// AuthHandler handles signup, login and current-user requests
type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSignup handles POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var input services.SignupInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	profile, err := h.service.Signup(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, profile)
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&input); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	input.IPAddress = middleware.ClientIP(r)

	result, err := h.service.Login(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CurrentIdentity(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, profile)
}
