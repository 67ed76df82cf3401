package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/carrot-market/backend/services/geocoding"
)

const (
	defaultBaseURL    = "https://dapi.kakao.com"
	coord2AddressPath = "/v2/local/geo/coord2address.json"
	maxBodyBytes      = 1 << 20
)

// KakaoAdapter implements geocoding.Provider on the Kakao Local API
type KakaoAdapter struct {
	config     geocoding.ProviderConfig
	httpClient *http.Client
}

// NewKakaoAdapter creates a new Kakao adapter
func NewKakaoAdapter(config geocoding.ProviderConfig) *KakaoAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &KakaoAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *KakaoAdapter) Name() string {
	return "kakao"
}

// coord2AddressResponse is the subset of the coord2address payload we read
type coord2AddressResponse struct {
	Documents []struct {
		Address     *regionFields `json:"address"`
		RoadAddress *regionFields `json:"road_address"`
	} `json:"documents"`
}

type regionFields struct {
	Region1 string `json:"region_1depth_name"`
	Region2 string `json:"region_2depth_name"`
	Region3 string `json:"region_3depth_name"`
}

type errorResponse struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// ReverseGeocode resolves latitude/longitude through coord2address.
// The lot-number address is preferred; the road address fills a missing neighbourhood.
func (a *KakaoAdapter) ReverseGeocode(ctx context.Context, latitude, longitude float64) (*geocoding.Address, error) {
	if a.config.APIKey == "" {
		return nil, geocoding.NewProviderError(a.Name(), "NOT_CONFIGURED", "api key not configured", 0, false, nil)
	}

	q := url.Values{}
	q.Set("x", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(latitude, 'f', -1, 64))
	endpoint := a.config.BaseURL + coord2AddressPath + "?" + q.Encode()

	body, err := a.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp coord2AddressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, geocoding.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to decode response", http.StatusOK, false, err)
	}
	if len(resp.Documents) == 0 {
		return nil, geocoding.ErrNoResult
	}

	doc := resp.Documents[0]
	var addr geocoding.Address
	if doc.Address != nil {
		addr = geocoding.Address{Region1: doc.Address.Region1, Region2: doc.Address.Region2, Region3: doc.Address.Region3}
	}
	if doc.RoadAddress != nil {
		if addr.Region1 == "" {
			addr.Region1 = doc.RoadAddress.Region1
		}
		if addr.Region2 == "" {
			addr.Region2 = doc.RoadAddress.Region2
		}
		if addr.Region3 == "" {
			addr.Region3 = doc.RoadAddress.Region3
		}
	}

	if addr.Region1 == "" || addr.Region2 == "" {
		return nil, geocoding.ErrNoResult
	}
	return &addr, nil
}

func (a *KakaoAdapter) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, geocoding.NewProviderError(a.Name(), "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		body, err := a.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !geocoding.IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (a *KakaoAdapter) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, geocoding.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	req.Header.Set("Authorization", "KakaoAK "+a.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, geocoding.NewProviderError(a.Name(), "HTTP_ERROR", "request failed", 0, ctx.Err() == nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, geocoding.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", resp.StatusCode, false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

func (a *KakaoAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	message := fmt.Sprintf("unexpected status %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return geocoding.NewProviderError(a.Name(), "AUTH_ERROR", message, statusCode, false, nil)
	case statusCode == http.StatusTooManyRequests:
		return geocoding.NewProviderError(a.Name(), "RATE_LIMITED", message, statusCode, true, nil)
	case statusCode >= 500:
		return geocoding.NewProviderError(a.Name(), "SERVER_ERROR", message, statusCode, true, nil)
	default:
		return geocoding.NewProviderError(a.Name(), "BAD_REQUEST", message, statusCode, false, nil)
	}
}
