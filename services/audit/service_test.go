package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carrot-market/backend/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, username, limit)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, len(m.insertedLogs))
	copy(out, m.insertedLogs)
	return out
}

func startService(t *testing.T, repo *MockAuditRepository, config Config) *AuditService {
	t.Helper()
	service := NewAuditService(repo, zap.NewNop(), config)
	require.NoError(t, service.Start())
	return service
}

func waitForInserts(t *testing.T, repo *MockAuditRepository, n int) []*models.AuditLog {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(repo.GetInsertedLogs()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return repo.GetInsertedLogs()
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start(), "cannot start twice")

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)

	assert.ErrorIs(t, service.Stop(time.Second), ErrNotStarted)
	assert.Error(t, service.Start(), "cannot restart after stop")
}

func TestAuditService_LogEventAfterStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Stop(time.Second))

	err := service.LogEvent(models.NewAuditLog(models.AuditActionSignup, "carrot", OutcomeSuccess))
	assert.ErrorIs(t, err, ErrNotStarted)

	err = service.LogEventBlocking(context.Background(), models.NewAuditLog(models.AuditActionSignup, "carrot", OutcomeSuccess))
	assert.ErrorIs(t, err, ErrNotStarted)
	mockRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAuditService_LogEvent(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 2})
	defer service.Stop(5 * time.Second)

	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionLoginFailed, "carrot", OutcomeFailure)))

	logs := waitForInserts(t, mockRepo, 1)
	assert.Equal(t, "carrot", logs[0].Username)
	assert.Equal(t, models.AuditActionLoginFailed, logs[0].Action)
}

func TestAuditService_LogEventBlocking(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 2})
	defer service.Stop(5 * time.Second)

	err := service.LogEventBlocking(context.Background(), models.NewAuditLog(models.AuditActionSignup, "carrot", OutcomeSuccess))
	require.NoError(t, err)

	waitForInserts(t, mockRepo, 1)
}

func TestAuditService_StopDrainsQueue(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 3})

	for i := 0; i < 50; i++ {
		require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionLoginSucceeded, "carrot", OutcomeSuccess)))
	}
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 50)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 1000, WorkerCount: 4})

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = service.LogEvent(models.NewAuditLog(models.AuditActionLoginFailed, "carrot", OutcomeFailure))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 200)
}

func TestAuditService_InsertErrorKeepsWorking(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})
	defer service.Stop(5 * time.Second)

	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionSignup, "a", OutcomeSuccess)))
	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionSignup, "b", OutcomeSuccess)))

	waitForInserts(t, mockRepo, 2)
}

func TestAuditService_BufferFull(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startService(t, mockRepo, Config{BufferSize: 5, WorkerCount: 1})

	var full int
	for i := 0; i < 20; i++ {
		if err := service.LogEvent(models.NewAuditLog(models.AuditActionLoginFailed, "carrot", OutcomeFailure)); errors.Is(err, ErrBufferFull) {
			full++
		}
	}
	assert.Greater(t, full, 0)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestAuditService_StopTimeout(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	defer close(release)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 1})

	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionSignup, "carrot", OutcomeSuccess)))

	err := service.Stop(100 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAuditService_GetStats(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 5})

	stats := service.GetStats()
	assert.False(t, stats.Started)
	assert.Equal(t, 5, stats.WorkerCount)
	assert.Equal(t, 100, stats.BufferSize)
	assert.Equal(t, 0, stats.PendingEvents)
}

func TestAuditService_AuthEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	ctx := WithRequestInfo(context.Background(), RequestInfo{RequestID: "req-7", IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	user := models.NewUser("carrot", "carrot@example.com", "hash", "Carrot", "Seoul")
	unknown := uuid.New()

	service.LogSignup(ctx, user)
	service.LogLoginFailed(ctx, "carrot", &unknown, "bad_password")
	service.LogLoginFailed(ctx, "ghost", nil, "unknown_user")
	service.LogLoginThrottled(ctx, "carrot", "username")
	user.IsActive = false
	service.LogStatusChanged(ctx, "admin", user)
	require.NoError(t, service.Stop(5*time.Second))

	logs := mockRepo.GetInsertedLogs()
	require.Len(t, logs, 5)

	byAction := map[models.AuditAction][]*models.AuditLog{}
	for _, l := range logs {
		assert.Equal(t, "req-7", l.RequestID)
		assert.Equal(t, "10.0.0.1", l.IPAddress)
		assert.Equal(t, "curl/8", l.UserAgent)
		byAction[l.Action] = append(byAction[l.Action], l)
	}

	require.Len(t, byAction[models.AuditActionSignup], 1)
	assert.Equal(t, user.ID, *byAction[models.AuditActionSignup][0].UserID)

	require.Len(t, byAction[models.AuditActionLoginFailed], 2)
	for _, l := range byAction[models.AuditActionLoginFailed] {
		assert.Equal(t, OutcomeFailure, l.Outcome)
		if l.Username == "ghost" {
			assert.Nil(t, l.UserID)
			assert.Equal(t, "unknown_user", l.Reason)
		}
	}

	require.Len(t, byAction[models.AuditActionLoginThrottled], 1)
	assert.JSONEq(t, `{"scope":"username"}`, string(byAction[models.AuditActionLoginThrottled][0].Details))

	require.Len(t, byAction[models.AuditActionStatusChanged], 1)
	assert.JSONEq(t, `{"actor":"admin","active":false}`, string(byAction[models.AuditActionStatusChanged][0].Details))
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 10000, config.BufferSize)
	assert.Equal(t, 5, config.WorkerCount)
	assert.Equal(t, 5*time.Second, config.WriteTimeout)
}
