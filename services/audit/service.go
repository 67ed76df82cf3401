package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carrot-market/backend/internal/observability"
	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// ErrNotStarted is returned when events are logged before Start or after Stop.
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the queue cannot take another event.
	ErrBufferFull = errors.New("audit event buffer full")
)

// AuditService handles asynchronous audit logging. Events are queued on a
// buffered channel and written by a fixed pool of workers.
type AuditService struct {
	auditRepo    repositories.AuditRepository
	logger       *zap.Logger
	eventChan    chan *models.AuditLog
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	mu           sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  5,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	return &AuditService{
		auditRepo:    auditRepo,
		logger:       logger,
		eventChan:    make(chan *models.AuditLog, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("audit service already stopped")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued events to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an entry without blocking. A full queue drops the entry.
func (s *AuditService) LogEvent(log *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- log:
		return nil
	default:
		observability.AuditDropped.Inc()
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("username", log.Username))
		return ErrBufferFull
	}
}

// LogEventBlocking queues an entry, waiting for room until ctx is done
func (s *AuditService) LogEventBlocking(ctx context.Context, log *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- log:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEvent(log); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)),
				zap.String("request_id", log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processEvent(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// Convenience methods for the auth events. Request metadata comes from ctx.

func (s *AuditService) record(ctx context.Context, log *models.AuditLog) {
	info := RequestInfoFromContext(ctx)
	log.WithRequest(info.RequestID, info.IPAddress, info.UserAgent)
	if err := s.LogEvent(log); err != nil && !errors.Is(err, ErrBufferFull) {
		s.logger.Warn("audit event not recorded",
			zap.String("action", string(log.Action)),
			zap.String("request_id", info.RequestID),
			zap.Error(err))
	}
}

// LogSignup records a new account
func (s *AuditService) LogSignup(ctx context.Context, user *models.User) {
	s.record(ctx, models.NewAuditLog(models.AuditActionSignup, user.Username, OutcomeSuccess).
		WithUser(user.ID))
}

// LogLoginSucceeded records a successful login
func (s *AuditService) LogLoginSucceeded(ctx context.Context, user *models.User) {
	s.record(ctx, models.NewAuditLog(models.AuditActionLoginSucceeded, user.Username, OutcomeSuccess).
		WithUser(user.ID))
}

// LogLoginFailed records a rejected login. reason stays internal.
func (s *AuditService) LogLoginFailed(ctx context.Context, username string, userID *uuid.UUID, reason string) {
	log := models.NewAuditLog(models.AuditActionLoginFailed, username, OutcomeFailure).WithReason(reason)
	if userID != nil {
		log.WithUser(*userID)
	}
	s.record(ctx, log)
}

// LogLoginThrottled records a login refused by the attempt limiter
func (s *AuditService) LogLoginThrottled(ctx context.Context, username, scope string) {
	s.record(ctx, models.NewAuditLog(models.AuditActionLoginThrottled, username, OutcomeFailure).
		WithReason("too_many_attempts").
		WithDetails(map[string]interface{}{"scope": scope}))
}

// LogStatusChanged records an administrative activation change
func (s *AuditService) LogStatusChanged(ctx context.Context, actor string, user *models.User) {
	s.record(ctx, models.NewAuditLog(models.AuditActionStatusChanged, user.Username, OutcomeSuccess).
		WithUser(user.ID).
		WithDetails(map[string]interface{}{"actor": actor, "active": user.IsActive}))
}
