package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUnavailable indicates the limiter backend could not be reached.
var ErrUnavailable = errors.New("login limiter backend unavailable")

// Scope identifies which counter tripped.
type Scope string

const (
	ScopeUsername Scope = "username"
	ScopeIP       Scope = "ip"
)

// Config holds the login throttling thresholds.
type Config struct {
	// MaxAttempts is the number of failures allowed per username within Window.
	MaxAttempts int
	// IPMaxAttempts is the number of failures allowed per client address within Window.
	IPMaxAttempts int
	// Window is both the counting window and the lockout duration.
	Window time.Duration
	// KeyPrefix namespaces the Redis keys.
	KeyPrefix string
}

// Result represents the result of a limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Violated   Scope
}

// LoginLimiter counts failed logins per username and per client address in
// Redis. A counter starts its window on the first failure and expires with it.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config Config
	logger *zap.Logger
}

// NewLoginLimiter creates a limiter. A nil client yields a limiter that always allows.
func NewLoginLimiter(client redis.UniversalClient, cfg Config, logger *zap.Logger) *LoginLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "login"
	}
	return &LoginLimiter{
		redis:  client,
		config: cfg,
		logger: logger,
	}
}

// Enabled reports whether a backend is configured.
func (l *LoginLimiter) Enabled() bool {
	return l.redis != nil && l.config.Window > 0
}

// Allow reports whether another login attempt may be made. It does not
// consume an attempt; call RecordFailure after a failed login.
func (l *LoginLimiter) Allow(ctx context.Context, username, ip string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true, Remaining: l.config.MaxAttempts}, nil
	}

	userRes, err := l.check(ctx, l.userKey(username), l.config.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if !userRes.Allowed {
		userRes.Violated = ScopeUsername
		return userRes, nil
	}

	if ip != "" && l.config.IPMaxAttempts > 0 {
		ipRes, err := l.check(ctx, l.ipKey(ip), l.config.IPMaxAttempts)
		if err != nil {
			return nil, err
		}
		if !ipRes.Allowed {
			ipRes.Violated = ScopeIP
			return ipRes, nil
		}
	}

	return userRes, nil
}

// RecordFailure counts a failed attempt against the username and address.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username, ip string) error {
	if !l.Enabled() {
		return nil
	}

	if err := l.incr(ctx, l.userKey(username)); err != nil {
		return err
	}
	if ip != "" && l.config.IPMaxAttempts > 0 {
		if err := l.incr(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}

	l.logger.Debug("login failure recorded",
		zap.String("username", username),
		zap.String("ip", ip))
	return nil
}

// Reset clears the username counter after a successful login.
// The address counter keeps running so one good account cannot unlock a sprayed address.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks connectivity with the backend.
func (l *LoginLimiter) Ping(ctx context.Context) error {
	if l.redis == nil {
		return nil
	}
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) check(ctx context.Context, key string, max int) (*Result, error) {
	if max <= 0 {
		return &Result{Allowed: true}, nil
	}

	count, err := l.redis.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return &Result{Allowed: true, Remaining: max}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count < max {
		return &Result{Allowed: true, Remaining: max - count}, nil
	}

	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		ttl = l.config.Window
	}
	return &Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
}

func (l *LoginLimiter) incr(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *LoginLimiter) userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", l.config.KeyPrefix, strings.ToLower(username))
}

func (l *LoginLimiter) ipKey(ip string) string {
	return fmt.Sprintf("%s:ip:%s", l.config.KeyPrefix, ip)
}
