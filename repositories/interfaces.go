package repositories

import (
	"context"
	"errors"

	"github.com/carrot-market/backend/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUsername is returned when a unique username constraint is violated
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrDuplicateEmail is returned when a unique email constraint is violated
	ErrDuplicateEmail = errors.New("email already registered")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context bound to the transaction; repositories called
	// with it execute inside the transaction
	Context() context.Context
}

// UserRepository is the credential store. Lookups are by username, which is unique.
type UserRepository interface {
	// Save inserts a new user. Unique violations surface as ErrDuplicateUsername / ErrDuplicateEmail.
	Save(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// FindByUsername retrieves a user by username, ErrNotFound when absent
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// ExistsByUsername reports whether the username is taken
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail reports whether the email is registered
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdateActive flips the active flag, ErrNotFound when the user does not exist
	UpdateActive(ctx context.Context, username string, active bool) (*models.User, error)
}

// AuditRepository handles auth audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByUsername retrieves the most recent entries for a username
	ListByUsername(ctx context.Context, username string, limit int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users     UserRepository
	AuditLogs AuditRepository
}
