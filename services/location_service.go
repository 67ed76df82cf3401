package services

import (
	"context"
	"errors"
	"math"

	"github.com/carrot-market/backend/services/audit"
	"github.com/carrot-market/backend/services/geocoding"
	"go.uber.org/zap"
)

// LocationResult is the response of a reverse geocoding lookup
type LocationResult struct {
	Address string             `json:"address"`
	Detail  *geocoding.Address `json:"detail"`
}

// LocationService resolves coordinates to a neighbourhood name
type LocationService struct {
	provider geocoding.Provider
	logger   *zap.Logger
}

// NewLocationService creates a new LocationService
func NewLocationService(provider geocoding.Provider, logger *zap.Logger) *LocationService {
	return &LocationService{provider: provider, logger: logger}
}

// ReverseGeocode validates the point and asks the provider for its address
func (s *LocationService) ReverseGeocode(ctx context.Context, latitude, longitude float64) (*LocationResult, error) {
	if !validCoordinate(latitude, 90) || !validCoordinate(longitude, 180) {
		return nil, ErrInvalidCoordinates.Wrap(nil).
			WithDetail("latitude", "must be between -90 and 90").
			WithDetail("longitude", "must be between -180 and 180")
	}

	requestID := audit.RequestInfoFromContext(ctx).RequestID
	addr, err := s.provider.ReverseGeocode(ctx, latitude, longitude)
	if errors.Is(err, geocoding.ErrNoResult) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		s.logger.Error("reverse geocoding failed",
			zap.String("request_id", requestID),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return nil, ErrGeocodingUnavailable.Wrap(err)
	}

	s.logger.Debug("reverse geocoded",
		zap.String("request_id", requestID),
		zap.String("address", addr.String()))

	return &LocationResult{Address: addr.String(), Detail: addr}, nil
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
