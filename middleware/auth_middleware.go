package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carrot-market/backend/internal/observability"
	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/repositories"
	"github.com/carrot-market/backend/security/identity"
	"github.com/carrot-market/backend/security/token"
	"go.uber.org/zap"
)

// TokenVerifier checks a raw bearer token
type TokenVerifier interface {
	Verify(raw string, now time.Time) (*token.Claims, error)
}

// PrincipalResolver loads the account a verified token names
type PrincipalResolver interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Token verification outcomes, used as metric labels
const (
	outcomeValid          = "valid"
	outcomeMalformed      = "malformed"
	outcomeBadSignature   = "bad_signature"
	outcomeExpired        = "expired"
	outcomeUnknownSubject = "unknown_subject"
	outcomeError          = "error"
)

// AuthMiddleware attaches the caller's identity to the request context
type AuthMiddleware struct {
	verifier TokenVerifier
	resolver PrincipalResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, resolver PrincipalResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate resolves the bearer token, if any, into an identity.
// It never rejects a request: a missing or invalid token leaves the context
// without an identity and the policy middleware decides what that means.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if id := m.resolve(ctx, raw); id != nil {
			ctx = identity.NewContext(ctx, id)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resolve(ctx context.Context, raw string) *identity.Identity {
	requestID := GetRequestIDFromContext(ctx)

	claims, err := m.verifier.Verify(raw, m.now())
	if err != nil {
		outcome := verifyOutcome(err)
		observability.TokenVerifications.WithLabelValues(outcome).Inc()
		m.logger.Debug("bearer token rejected",
			zap.String("request_id", requestID),
			zap.String("reason", outcome))
		return nil
	}

	user, err := m.resolver.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			observability.TokenVerifications.WithLabelValues(outcomeUnknownSubject).Inc()
			m.logger.Warn("token subject has no account",
				zap.String("request_id", requestID),
				zap.String("username", claims.Subject))
			return nil
		}
		observability.TokenVerifications.WithLabelValues(outcomeError).Inc()
		m.logger.Error("failed to resolve token subject",
			zap.String("request_id", requestID),
			zap.String("username", claims.Subject),
			zap.Error(err))
		return nil
	}

	observability.TokenVerifications.WithLabelValues(outcomeValid).Inc()
	m.logger.Debug("authentication successful",
		zap.String("request_id", requestID),
		zap.String("username", user.Username))

	return identity.New(user.Username, user.Roles(), user.IsActive)
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return outcomeExpired
	case errors.Is(err, token.ErrBadSignature):
		return outcomeBadSignature
	default:
		return outcomeMalformed
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
