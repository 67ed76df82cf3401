package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carrot-market/backend/internal/observability"
	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/repositories"
	"github.com/carrot-market/backend/security/identity"
	"github.com/carrot-market/backend/security/token"
	"github.com/carrot-market/backend/services/audit"
	"github.com/carrot-market/backend/services/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenType is the scheme clients put in front of the token.
const TokenType = "Bearer"

// PasswordHasher hashes and checks secrets
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
	VerifyDummy(secret string)
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	Issue(subject string, now time.Time, ttl time.Duration) (string, *token.Claims, error)
}

// LoginLimiter throttles repeated login failures
type LoginLimiter interface {
	Allow(ctx context.Context, username, ip string) (*ratelimit.Result, error)
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username string) error
}

// AuditLogger records auth events
type AuditLogger interface {
	LogSignup(ctx context.Context, user *models.User)
	LogLoginSucceeded(ctx context.Context, user *models.User)
	LogLoginFailed(ctx context.Context, username string, userID *uuid.UUID, reason string)
	LogLoginThrottled(ctx context.Context, username, scope string)
	LogStatusChanged(ctx context.Context, actor string, user *models.User)
}

// SignupInput is a validated registration request
type SignupInput struct {
	Username    string `json:"username" validate:"required,notblank,min=1,max=10"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,password"`
	Nickname    string `json:"nickname" validate:"omitempty,max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
	Location    string `json:"location" validate:"required,notblank,max=100"`
}

// LoginInput carries credentials for one login call. Never persisted.
type LoginInput struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
	// IPAddress is the client address, used for throttling.
	IPAddress string `json:"-"`
}

// LoginResult is returned on a successful login
type LoginResult struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
}

// AuthConfig holds the AuthService settings
type AuthConfig struct {
	TokenTTL time.Duration
}

// AuthService handles signup, login and identity lookups
type AuthService struct {
	users   repositories.UserRepository
	txMgr   repositories.TransactionManager
	hasher  PasswordHasher
	tokens  TokenIssuer
	limiter LoginLimiter
	audit   AuditLogger
	config  AuthConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService creates a new AuthService. limiter and auditLogger may be nil.
func NewAuthService(
	users repositories.UserRepository,
	txMgr repositories.TransactionManager,
	hasher PasswordHasher,
	tokens TokenIssuer,
	limiter LoginLimiter,
	auditLogger AuditLogger,
	config AuthConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		txMgr:   txMgr,
		hasher:  hasher,
		tokens:  tokens,
		limiter: limiter,
		audit:   auditLogger,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Signup registers a new USER account
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.UserProfile, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	location := strings.TrimSpace(input.Location)

	blank := make(map[string]string)
	if username == "" {
		blank["username"] = "username must not be blank"
	}
	if location == "" {
		blank["location"] = "location must not be blank"
	}
	if len(blank) > 0 {
		return nil, NewValidationFailure(blank)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, WrapInternal("failed to hash password", err)
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = username
	}

	user, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.User, error) {
		taken, err := s.users.ExistsByUsername(ctx, username)
		if err != nil {
			return nil, ErrDatabaseError.Wrap(err)
		}
		if taken {
			return nil, ErrDuplicateUsername
		}

		registered, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, ErrDatabaseError.Wrap(err)
		}
		if registered {
			return nil, ErrDuplicateEmail
		}

		user := models.NewUser(username, email, hash, nickname, location)
		user.PhoneNumber = strings.TrimSpace(input.PhoneNumber)

		if err := s.users.Save(ctx, user); err != nil {
			return nil, mapSaveError(err)
		}
		return user, nil
	})
	if err != nil {
		s.logger.Info("signup rejected",
			zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
			zap.String("username", username),
			zap.String("reason", string(GetErrorType(err))))
		return nil, err
	}

	observability.Signups.Inc()
	s.logAudit(func(a AuditLogger) { a.LogSignup(ctx, user) })
	s.logger.Info("user signed up",
		zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	return user.Profile(), nil
}

// Login verifies credentials and issues a session token. Unknown usernames
// and wrong passwords both yield ErrInvalidCredentials. A disabled account
// yields ErrAccountDisabled whatever the password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	requestID := audit.RequestInfoFromContext(ctx).RequestID
	username := strings.TrimSpace(input.Username)
	if username == "" {
		s.hasher.VerifyDummy(input.Password)
		observability.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if err := s.checkLimiter(ctx, username, input.IPAddress); err != nil {
		observability.LoginAttempts.WithLabelValues("throttled").Inc()
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		observability.LoginAttempts.WithLabelValues("error").Inc()
		s.logger.Error("failed to look up user",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, ErrDatabaseError.Wrap(err)
	}

	if user == nil {
		s.hasher.VerifyDummy(input.Password)
		s.loginFailed(ctx, username, input.IPAddress, nil, "unknown_user")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.hasher.VerifyDummy(input.Password)
		observability.LoginAttempts.WithLabelValues("disabled").Inc()
		s.logAudit(func(a AuditLogger) { a.LogLoginFailed(ctx, username, &user.ID, "account_disabled") })
		s.logger.Info("login refused for disabled account",
			zap.String("request_id", requestID),
			zap.String("username", username))
		return nil, ErrAccountDisabled
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.loginFailed(ctx, username, input.IPAddress, &user.ID, "bad_password")
		return nil, ErrInvalidCredentials
	}

	raw, claims, err := s.tokens.Issue(user.Username, s.now(), s.config.TokenTTL)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("error").Inc()
		return nil, WrapInternal("failed to issue token", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.Warn("failed to reset login limiter",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}

	observability.LoginAttempts.WithLabelValues("success").Inc()
	s.logAudit(func(a AuditLogger) { a.LogLoginSucceeded(ctx, user) })
	s.logger.Info("user logged in",
		zap.String("request_id", requestID),
		zap.String("user_id", user.ID.String()))

	return &LoginResult{
		Token:     raw,
		Type:      TokenType,
		ExpiresAt: claims.ExpiresAt,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Nickname:  user.Nickname,
	}, nil
}

// CurrentIdentity returns the profile of the principal on ctx. The principal
// is re-read so a deactivation after token issue takes effect immediately.
func (s *AuthService) CurrentIdentity(ctx context.Context) (*models.UserProfile, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.FindByUsername(ctx, id.Username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, ErrDatabaseError.Wrap(err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return user.Profile(), nil
}

// SetActive activates or deactivates an account. Tokens already issued for a
// deactivated account stop working on their next request.
func (s *AuthService) SetActive(ctx context.Context, username string, active bool) (*models.UserProfile, error) {
	user, err := s.users.UpdateActive(ctx, username, active)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, ErrDatabaseError.Wrap(err)
	}

	actor := ""
	if id, ok := identity.FromContext(ctx); ok {
		actor = id.Username
	}
	s.logAudit(func(a AuditLogger) { a.LogStatusChanged(ctx, actor, user) })
	s.logger.Info("user status changed",
		zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
		zap.String("username", username),
		zap.Bool("active", active),
		zap.String("actor", actor))

	return user.Profile(), nil
}

func (s *AuthService) checkLimiter(ctx context.Context, username, ip string) error {
	if s.limiter == nil {
		return nil
	}

	res, err := s.limiter.Allow(ctx, username, ip)
	if err != nil {
		// fail open while the limiter backend is down
		s.logger.Warn("login limiter unavailable",
			zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
			zap.Error(err))
		return nil
	}
	if res.Allowed {
		return nil
	}

	s.logAudit(func(a AuditLogger) { a.LogLoginThrottled(ctx, username, string(res.Violated)) })
	return ErrTooManyAttempts.Wrap(nil).
		WithDetail("retry_after_seconds", int(res.RetryAfter.Seconds()))
}

func (s *AuthService) loginFailed(ctx context.Context, username, ip string, userID *uuid.UUID, reason string) {
	observability.LoginAttempts.WithLabelValues("invalid_credentials").Inc()

	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, username, ip); err != nil {
			s.logger.Warn("failed to record login failure",
				zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
				zap.Error(err))
		}
	}

	s.logAudit(func(a AuditLogger) { a.LogLoginFailed(ctx, username, userID, reason) })
	s.logger.Info("login failed",
		zap.String("request_id", audit.RequestInfoFromContext(ctx).RequestID),
		zap.String("username", username),
		zap.String("reason", reason))
}

func (s *AuthService) logAudit(fn func(AuditLogger)) {
	if s.audit != nil {
		fn(s.audit)
	}
}

func mapSaveError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicateUsername):
		return ErrDuplicateUsername.Wrap(err)
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return ErrDuplicateEmail.Wrap(err)
	default:
		return ErrDatabaseError.Wrap(err)
	}
}
