// Package geocoding turns coordinates into a human readable region name.
package geocoding

import (
	"context"
	"errors"
	"time"
)

// ErrNoResult means the provider answered but had no address for the point.
var ErrNoResult = errors.New("no address found for coordinates")

// Provider defines the interface reverse geocoding backends implement
type Provider interface {
	// Name returns the provider name (e.g., "kakao")
	Name() string

	// ReverseGeocode resolves a point to an address. ErrNoResult when nothing matches.
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (*Address, error)
}

// Address is a resolved administrative address
type Address struct {
	// Region1 is the province or metropolitan city (시/도)
	Region1 string `json:"region_1"`
	// Region2 is the district (구/군)
	Region2 string `json:"region_2"`
	// Region3 is the neighbourhood (동/읍/면), may be empty
	Region3 string `json:"region_3,omitempty"`
}

// String joins the non-empty regions with single spaces
func (a *Address) String() string {
	s := a.Region1 + " " + a.Region2
	if a.Region3 != "" {
		s += " " + a.Region3
	}
	return s
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout for requests
	Timeout time.Duration

	// MaxRetries for 5xx and transport failures
	MaxRetries int

	// RetryDelay between retries, multiplied by the attempt number
	RetryDelay time.Duration
}

// DefaultProviderConfig returns the default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
