package kakao

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carrot-market/backend/services/geocoding"
)

func newTestAdapter(url string) *KakaoAdapter {
	return NewKakaoAdapter(geocoding.ProviderConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
}

func TestNewKakaoAdapter(t *testing.T) {
	adapter := NewKakaoAdapter(geocoding.ProviderConfig{APIKey: "k"})

	if adapter.Name() != "kakao" {
		t.Errorf("Name() = %s, want kakao", adapter.Name())
	}
	if adapter.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", adapter.config.BaseURL, defaultBaseURL)
	}
	if adapter.httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", adapter.httpClient.Timeout)
	}
}

func TestKakaoAdapter_ReverseGeocode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantNone bool
	}{
		{
			name: "lot number address",
			body: `{"meta":{"total_count":1},"documents":[{"address":{"region_1depth_name":"서울","region_2depth_name":"마포구","region_3depth_name":"서교동"},"road_address":null}]}`,
			want: "서울 마포구 서교동",
		},
		{
			name: "road address fills neighbourhood",
			body: `{"documents":[{"address":{"region_1depth_name":"경기","region_2depth_name":"성남시 분당구","region_3depth_name":""},"road_address":{"region_1depth_name":"경기","region_2depth_name":"성남시 분당구","region_3depth_name":"삼평동"}}]}`,
			want: "경기 성남시 분당구 삼평동",
		},
		{
			name: "no neighbourhood anywhere",
			body: `{"documents":[{"address":{"region_1depth_name":"세종특별자치시","region_2depth_name":"세종시","region_3depth_name":""}}]}`,
			want: "세종특별자치시 세종시",
		},
		{
			name:     "no documents",
			body:     `{"meta":{"total_count":0},"documents":[]}`,
			wantNone: true,
		},
		{
			name:     "missing district",
			body:     `{"documents":[{"address":{"region_1depth_name":"서울","region_2depth_name":""}}]}`,
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != coord2AddressPath {
					t.Errorf("path = %s, want %s", r.URL.Path, coord2AddressPath)
				}
				if got := r.Header.Get("Authorization"); got != "KakaoAK test-key" {
					t.Errorf("Authorization = %q", got)
				}
				if r.URL.Query().Get("x") != "126.9236" || r.URL.Query().Get("y") != "37.5563" {
					t.Errorf("query = %s, want x=lon y=lat", r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			addr, err := newTestAdapter(server.URL).ReverseGeocode(context.Background(), 37.5563, 126.9236)
			if tt.wantNone {
				if !errors.Is(err, geocoding.ErrNoResult) {
					t.Fatalf("err = %v, want ErrNoResult", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReverseGeocode() error = %v", err)
			}
			if addr.String() != tt.want {
				t.Errorf("address = %q, want %q", addr.String(), tt.want)
			}
		})
	}
}

func TestKakaoAdapter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  string
		wantCalls int32
	}{
		{"unauthorized is not retried", http.StatusUnauthorized, "AUTH_ERROR", 1},
		{"bad request is not retried", http.StatusBadRequest, "BAD_REQUEST", 1},
		{"server error is retried", http.StatusBadGateway, "SERVER_ERROR", 3},
		{"rate limit is retried", http.StatusTooManyRequests, "RATE_LIMITED", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errorType":"X","message":"upstream says no"}`))
			}))
			defer server.Close()

			_, err := newTestAdapter(server.URL).ReverseGeocode(context.Background(), 37.5, 127.0)

			var provErr *geocoding.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("err = %v, want *ProviderError", err)
			}
			if provErr.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", provErr.Code, tt.wantCode)
			}
			if provErr.Message != "upstream says no" {
				t.Errorf("Message = %q", provErr.Message)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestKakaoAdapter_RecoversAfterRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"documents":[{"address":{"region_1depth_name":"서울","region_2depth_name":"강남구","region_3depth_name":"역삼동"}}]}`))
	}))
	defer server.Close()

	addr, err := newTestAdapter(server.URL).ReverseGeocode(context.Background(), 37.5, 127.0)
	if err != nil {
		t.Fatalf("ReverseGeocode() error = %v", err)
	}
	if addr.Region3 != "역삼동" {
		t.Errorf("Region3 = %q", addr.Region3)
	}
}

func TestKakaoAdapter_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).ReverseGeocode(context.Background(), 37.5, 127.0)
	if err == nil || errors.Is(err, geocoding.ErrNoResult) {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestKakaoAdapter_NotConfigured(t *testing.T) {
	adapter := NewKakaoAdapter(geocoding.ProviderConfig{})

	_, err := adapter.ReverseGeocode(context.Background(), 37.5, 127.0)
	if err == nil {
		t.Fatal("expected error without api key")
	}
	if geocoding.IsRetryable(err) {
		t.Error("missing key must not be retryable")
	}
}
