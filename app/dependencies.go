package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carrot-market/backend/config"
	"github.com/carrot-market/backend/internal/observability"
	"github.com/carrot-market/backend/internal/policy"
	"github.com/carrot-market/backend/middleware"
	"github.com/carrot-market/backend/repositories"
	"github.com/carrot-market/backend/repositories/postgres"
	"github.com/carrot-market/backend/security/password"
	"github.com/carrot-market/backend/security/token"
	"github.com/carrot-market/backend/services"
	"github.com/carrot-market/backend/services/audit"
	"github.com/carrot-market/backend/services/geocoding"
	"github.com/carrot-market/backend/services/geocoding/kakao"
	"github.com/carrot-market/backend/services/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// auditStopTimeout bounds how long Close waits for queued audit entries
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  redis.UniversalClient
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Security
	Hasher       *password.Hasher
	Tokens       *token.Codec
	PolicyEngine *policy.Engine

	// Services
	LoginLimiter    *ratelimit.LoginLimiter
	AuditService    *audit.AuditService
	AuthService     *services.AuthService
	LocationService *services.LocationService

	// Middleware
	AuthMiddleware   *middleware.AuthMiddleware
	PolicyMiddleware *middleware.PolicyMiddleware
}

// NewDependencies connects to PostgreSQL and Redis and wires up every
// service on top of them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repos := deps.RepoFactory.NewRepositories()
	deps.Users = repos.Users
	deps.AuditLogs = repos.AuditLogs
	deps.TxManager = deps.RepoFactory.GetTransactionManager()
	logger.Info("repositories initialized")

	if err := deps.initRedis(ctx, cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesFromStore wires the services over an already opened
// credential store. redisClient may be nil to disable login throttling.
func NewDependenciesFromStore(
	cfg *config.Config,
	logger *zap.Logger,
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	redisClient redis.UniversalClient,
) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Redis:     redisClient,
		Users:     repos.Users,
		AuditLogs: repos.AuditLogs,
		TxManager: txMgr,
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, err
	}
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.Observability.MetricsEnabled {
		if err := observability.RegisterDBStats(prometheus.DefaultRegisterer, d.DB.DB); err != nil {
			d.Logger.Warn("failed to register database metrics", zap.Error(err))
		}
	}

	return nil
}

// initRedis connects the login limiter backend. An unset REDIS_URL leaves
// throttling disabled; an unreachable server is tolerated since the
// limiter fails open.
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) error {
	if !cfg.Redis.Enabled() {
		d.Logger.Warn("redis not configured, login throttling disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if cfg.Redis.DialTimeout > 0 {
		opts.DialTimeout = cfg.Redis.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		d.Logger.Warn("redis ping failed, continuing", zap.Error(err))
	} else {
		d.Logger.Info("redis connection established", zap.String("addr", opts.Addr))
	}

	d.Redis = client
	return nil
}

// initServices builds the security primitives, services and middleware
func (d *Dependencies) initServices(cfg *config.Config) error {
	if d.Users == nil || d.TxManager == nil {
		return errors.New("user repository and transaction manager are required")
	}

	hasher, err := password.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}
	d.Hasher = hasher

	codec, err := token.NewCodec(cfg.Auth.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}
	d.Tokens = codec

	engine, err := policy.NewEngine(policy.DefaultRules(cfg.Auth.PublicPaths)...)
	if err != nil {
		return fmt.Errorf("failed to build access policy: %w", err)
	}
	d.PolicyEngine = engine

	d.LoginLimiter = ratelimit.NewLoginLimiter(d.Redis, ratelimit.Config{
		MaxAttempts:   cfg.Auth.LoginMaxAttempts,
		IPMaxAttempts: cfg.Auth.LoginIPMaxAttempts,
		Window:        cfg.Auth.LoginLockoutWindow,
	}, d.Logger)

	var auditLogger services.AuditLogger
	if d.AuditLogs != nil {
		d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.DefaultConfig())
		if err := d.AuditService.Start(); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
		auditLogger = d.AuditService
	}

	d.AuthService = services.NewAuthService(
		d.Users,
		d.TxManager,
		hasher,
		codec,
		d.LoginLimiter,
		auditLogger,
		services.AuthConfig{TokenTTL: cfg.Auth.TokenTTL},
		d.Logger,
	)

	providerCfg := geocoding.DefaultProviderConfig()
	providerCfg.APIKey = cfg.Geocoding.APIKey
	providerCfg.BaseURL = cfg.Geocoding.BaseURL
	if cfg.Geocoding.Timeout > 0 {
		providerCfg.Timeout = cfg.Geocoding.Timeout
	}
	if providerCfg.APIKey == "" {
		d.Logger.Warn("KAKAO_API_KEY not set, reverse geocoding will fail")
	}
	d.LocationService = services.NewLocationService(kakao.NewKakaoAdapter(providerCfg), d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(codec, d.Users, d.Logger)
	d.PolicyMiddleware = middleware.NewPolicyMiddleware(engine, d.Logger)

	d.Logger.Info("services initialized",
		zap.Int("bcrypt_cost", hasher.Cost()),
		zap.Duration("token_ttl", cfg.Auth.TokenTTL),
		zap.Bool("login_throttling", d.LoginLimiter.Enabled()),
		zap.Int("policy_rules", len(engine.Rules())))

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil {
		if err := d.AuditService.Stop(auditStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.AuditService = nil
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Redis = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
