package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUserAdminService is a mock implementation of UserAdminService
type MockUserAdminService struct {
	mock.Mock
}

func (m *MockUserAdminService) SetActive(ctx context.Context, username string, active bool) (*models.UserProfile, error) {
	args := m.Called(ctx, username, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Patch("/api/admin/users/{username}/status", h.HandleUpdateStatus)
	return r
}

func TestHandleUpdateStatus(t *testing.T) {
	logger := zap.NewNop()

	t.Run("deactivates user", func(t *testing.T) {
		svc := new(MockUserAdminService)
		profile := testProfile("alice")
		profile.IsActive = false
		svc.On("SetActive", mock.Anything, "alice", false).Return(profile, nil)

		req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/alice/status", strings.NewReader(`{"active":false}`))
		w := httptest.NewRecorder()
		adminRouter(NewAdminHandler(svc, logger)).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got models.UserProfile
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &got))
		assert.False(t, got.IsActive)
		svc.AssertExpectations(t)
	})

	t.Run("active is required", func(t *testing.T) {
		svc := new(MockUserAdminService)

		req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/alice/status", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		adminRouter(NewAdminHandler(svc, logger)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeEnvelope(t, w).Details, "active")
		svc.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := new(MockUserAdminService)
		svc.On("SetActive", mock.Anything, "ghost", true).Return(nil, services.ErrUserNotFound)

		req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/ghost/status", strings.NewReader(`{"active":true}`))
		w := httptest.NewRecorder()
		adminRouter(NewAdminHandler(svc, logger)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing username param", func(t *testing.T) {
		svc := new(MockUserAdminService)

		w := httptest.NewRecorder()
		NewAdminHandler(svc, logger).HandleUpdateStatus(w,
			httptest.NewRequest(http.MethodPatch, "/api/admin/users//status", strings.NewReader(`{"active":true}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
