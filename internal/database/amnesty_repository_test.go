package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var amnestyColumns = []string{
	"id", "tenant_id", "notification_message", "grace_period_days",
	"grace_period_expires_at", "status", "affected_user_count",
	"initiated_by", "enforcement_started_at", "cancellation_reason",
	"created_at", "updated_at",
}

func sampleProgram(tenantID uuid.UUID) *AmnestyProgram {
	now := time.Now().UTC()
	return &AmnestyProgram{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		NotificationMessage:  "Migrate to governed tooling within the grace period.",
		GracePeriodDays:      30,
		GracePeriodExpiresAt: now.Add(30 * 24 * time.Hour),
		Status:               AmnestyStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestAmnestyRepositoryCreate(t *testing.T) {
	tenantID := uuid.New()

	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO amnesty_programs").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(context.Background(), sampleProgram(tenantID))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrConflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO amnesty_programs").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), sampleProgram(tenantID))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO amnesty_programs").
			WillReturnError(sql.ErrConnDone)

		err := repo.Create(context.Background(), sampleProgram(tenantID))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrConflict)
	})
}

func TestAmnestyRepositoryGetActiveForTenant(t *testing.T) {
	tenantID := uuid.New()

	t.Run("no program returns nil without error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM amnesty_programs").
			WithArgs(tenantID).
			WillReturnError(sql.ErrNoRows)

		program, err := repo.GetActiveForTenant(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Nil(t, program)
	})

	t.Run("returns the non-terminal program", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		id := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM amnesty_programs").
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows(amnestyColumns).AddRow(
				id.String(), tenantID.String(), "msg", 30,
				now.Add(30*24*time.Hour), AmnestyStatusActive, 0,
				nil, nil, nil, now, now))

		program, err := repo.GetActiveForTenant(context.Background(), tenantID)
		require.NoError(t, err)
		require.NotNil(t, program)
		assert.Equal(t, id, program.ID)
		assert.Equal(t, AmnestyStatusActive, program.Status)
		assert.Nil(t, program.EnforcementStartedAt)
	})
}

func TestAmnestyRepositoryUpdateStatus(t *testing.T) {
	programID := uuid.New()

	t.Run("transition to enforcing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE amnesty_programs").
			WillReturnResult(sqlmock.NewResult(0, 1))

		now := time.Now().UTC()
		err := repo.UpdateStatus(context.Background(), programID, AmnestyStatusUpdate{
			Status:               AmnestyStatusEnforcing,
			EnforcementStartedAt: &now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown program maps to ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAmnestyRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE amnesty_programs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), programID, AmnestyStatusUpdate{
			Status: AmnestyStatusCancelled,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAmnestyRepositoryUpdateAffectedUserCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAmnestyRepository(db, zap.NewNop())

	mock.ExpectExec("UPDATE amnesty_programs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAffectedUserCount(context.Background(), uuid.New(), 17)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
