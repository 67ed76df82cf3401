package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/carrot-market/backend/utils"
	"go.uber.org/zap"
)

// Check values reported by the readiness probe
const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDisabled  = "disabled"
)

// Pinger is a dependency that can report its own reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	db      *sql.DB
	redis   Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil when
// login throttling is not configured.
func NewHealthHandler(db *sql.DB, redis Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only, always 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz
// Answers 503 until both the database and Redis (when configured) respond
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database readiness check failed", zap.Error(err))
		checks["database"] = checkUnhealthy
		ready = false
	} else {
		checks["database"] = checkHealthy
	}

	if h.redis == nil {
		checks["redis"] = checkDisabled
	} else if err := h.redis.Ping(ctx); err != nil {
		h.logger.Warn("redis readiness check failed", zap.Error(err))
		checks["redis"] = checkUnhealthy
		ready = false
	} else {
		checks["redis"] = checkHealthy
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if err := utils.WriteJSON(w, code, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return sql.ErrConnDone
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
