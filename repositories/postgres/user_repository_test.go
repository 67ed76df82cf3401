package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carrot-market/backend/models"
	"github.com/carrot-market/backend/repositories"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var userRowColumns = []string{
	"id", "username", "email", "password_hash", "nickname", "phone_number", "profile_image_url",
	"location", "manner_temperature", "role", "is_active", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{DB: sqlDB, logger: zap.NewNop()}, mock
}

func userRow(u *models.User) *sqlmock.Rows {
	return sqlmock.NewRows(userRowColumns).AddRow(
		u.ID.String(), u.Username, u.Email, u.PasswordHash, u.Nickname, u.PhoneNumber, u.ProfileImageURL,
		u.Location, u.MannerTemperature, string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
}

func TestUserRepository_Save(t *testing.T) {
	ctx := context.Background()
	user := models.NewUser("carrot", "carrot@example.com", "hash", "Carrot", "Seoul")

	t.Run("inserts user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, user.Username, user.Email, user.PasswordHash, user.Nickname,
				user.PhoneNumber, user.ProfileImageURL, user.Location, user.MannerTemperature,
				user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Save(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violations", func(t *testing.T) {
		tests := []struct {
			constraint string
			want       error
		}{
			{"users_username_key", repositories.ErrDuplicateUsername},
			{"users_email_key", repositories.ErrDuplicateEmail},
		}

		for _, tt := range tests {
			t.Run(tt.constraint, func(t *testing.T) {
				db, mock := newMockDB(t)
				repo := NewUserRepository(db, zap.NewNop())

				mock.ExpectExec("INSERT INTO users").
					WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tt.constraint})

				err := repo.Save(ctx, user)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("wraps other errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO users").WillReturnError(sql.ErrConnDone)

		err := repo.Save(ctx, user)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NotErrorIs(t, err, repositories.ErrDuplicateUsername)
	})
}

func TestUserRepository_FindByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("carrot", "carrot@example.com", "hash", "Carrot", "Seoul")

		mock.ExpectQuery("SELECT (.+) FROM users WHERE username = \\$1").
			WithArgs("carrot").
			WillReturnRows(userRow(user))

		got, err := repo.FindByUsername(ctx, "carrot")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, models.RoleUser, got.Role)
		assert.True(t, got.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users WHERE username = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepository_Exists(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM users WHERE username = \\$1\\)").
		WithArgs("carrot").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM users WHERE email = \\$1\\)").
		WithArgs("new@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := repo.ExistsByUsername(ctx, "carrot")
	require.NoError(t, err)
	assert.True(t, taken)

	registered, err := repo.ExistsByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.False(t, registered)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateActive(t *testing.T) {
	ctx := context.Background()

	t.Run("returns updated user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("carrot", "carrot@example.com", "hash", "Carrot", "Seoul")
		user.IsActive = false

		mock.ExpectQuery("UPDATE users").
			WithArgs("carrot", false, sqlmock.AnyArg()).
			WillReturnRows(userRow(user))

		got, err := repo.UpdateActive(ctx, "carrot", false)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("UPDATE users").
			WithArgs("ghost", true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.UpdateActive(ctx, "ghost", true)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepository_RunsInsideTransaction(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	txMgr := NewTransactionManager(db, zap.NewNop())
	user := models.NewUser("carrot", "carrot@example.com", "hash", "Carrot", "Seoul")
	user.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs("carrot").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		taken, err := repo.ExistsByUsername(ctx, user.Username)
		if err != nil || taken {
			return err
		}
		return repo.Save(ctx, user)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
