package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/carrot-market/backend/services"
	"github.com/carrot-market/backend/utils"
	"go.uber.org/zap"
)

// LocationService resolves coordinates to an address
type LocationService interface {
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (*services.LocationResult, error)
}

// LocationHandler handles /api/location requests
type LocationHandler struct {
	service LocationService
	logger  *zap.Logger
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(service LocationService, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		service: service,
		logger:  logger,
	}
}

// HandleReverseGeocode handles GET /api/location/reverse-geocode?latitude=&longitude=
func (h *LocationHandler) HandleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	details := make(map[string]interface{})

	latitude, err := strconv.ParseFloat(query.Get("latitude"), 64)
	if err != nil {
		details["latitude"] = "latitude must be a number"
	}
	longitude, err := strconv.ParseFloat(query.Get("longitude"), 64)
	if err != nil {
		details["longitude"] = "longitude must be a number"
	}
	if len(details) > 0 {
		_ = utils.WriteBadRequest(w, "Invalid coordinates", details)
		return
	}

	result, err := h.service.ReverseGeocode(r.Context(), latitude, longitude)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}
