package middleware

import (
	"net/http"

	"github.com/carrot-market/backend/internal/observability"
	"github.com/carrot-market/backend/internal/policy"
	"github.com/carrot-market/backend/security/identity"
	"github.com/carrot-market/backend/utils"
	"go.uber.org/zap"
)

// PolicyDecider decides whether a request may reach its handler
type PolicyDecider interface {
	Decide(method, path string, subject *policy.Subject) policy.Decision
}

// PolicyMiddleware enforces the route access policy.
// It must run after Authenticate.
type PolicyMiddleware struct {
	decider PolicyDecider
	logger  *zap.Logger
}

// NewPolicyMiddleware creates a new PolicyMiddleware
func NewPolicyMiddleware(decider PolicyDecider, logger *zap.Logger) *PolicyMiddleware {
	return &PolicyMiddleware{
		decider: decider,
		logger:  logger,
	}
}

// Enforce answers 401 when the route needs an identity and there is none,
// 403 when the identity is disabled or lacks the route's role, and
// otherwise calls next.
func (m *PolicyMiddleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		var subject *policy.Subject
		if id, ok := identity.FromContext(ctx); ok {
			subject = &policy.Subject{Roles: id.Roles, Active: id.Active}
		}

		decision := m.decider.Decide(r.Method, r.URL.Path, subject)
		observability.PolicyDecisions.WithLabelValues(decision.Verdict.String()).Inc()

		switch decision.Verdict {
		case policy.Allow:
			next.ServeHTTP(w, r)
		case policy.DenyUnauthenticated:
			m.logger.Debug("request requires authentication",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Authentication required")
		default:
			m.logger.Warn("request forbidden by policy",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("reason", decision.Reason))
			_ = utils.WriteForbidden(w, "Access denied")
		}
	})
}
