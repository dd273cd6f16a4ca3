package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres error code raised when the partial
// unique index rejects a second non-terminal program for a tenant.
const uniqueViolation = "23505"

// AmnestyStatusUpdate carries the mutable fields of a status transition.
// Nil optional fields are left untouched.
type AmnestyStatusUpdate struct {
	Status               string
	EnforcementStartedAt *time.Time
	CancellationReason   *string
}

// AmnestyRepository handles amnesty program persistence. The schema's
// partial unique index serializes concurrent initiations: at most one
// non-terminal program can exist per tenant, enforced at the persistence
// boundary rather than in application code.
type AmnestyRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewAmnestyRepository creates a new amnesty repository.
func NewAmnestyRepository(db *sqlx.DB, logger *zap.Logger) *AmnestyRepository {
	return &AmnestyRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create persists a new amnesty program. Returns ErrConflict when the
// tenant already has a non-terminal program.
func (r *AmnestyRepository) Create(ctx context.Context, program *AmnestyProgram) error {
	query := `
		INSERT INTO amnesty_programs (
			id, tenant_id, notification_message, grace_period_days,
			grace_period_expires_at, status, affected_user_count,
			initiated_by, enforcement_started_at, cancellation_reason,
			created_at, updated_at
		) VALUES (
			:id, :tenant_id, :notification_message, :grace_period_days,
			:grace_period_expires_at, :status, :affected_user_count,
			:initiated_by, :enforcement_started_at, :cancellation_reason,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: tenant %s already has an active amnesty program",
				ErrConflict, program.TenantID)
		}
		r.logger.Error("failed to create amnesty program",
			zap.String("tenant_id", program.TenantID.String()), zap.Error(err))
		return fmt.Errorf("failed to create amnesty program: %w", err)
	}

	r.logger.Info("amnesty program created",
		zap.String("program_id", program.ID.String()),
		zap.String("tenant_id", program.TenantID.String()),
		zap.Int("grace_period_days", program.GracePeriodDays))
	return nil
}

// GetActiveForTenant returns the tenant's non-terminal program, or
// (nil, nil) when none exists. Absence is a normal outcome, not an error.
func (r *AmnestyRepository) GetActiveForTenant(ctx context.Context, tenantID uuid.UUID) (*AmnestyProgram, error) {
	query := `
		SELECT * FROM amnesty_programs
		WHERE tenant_id = $1 AND status NOT IN ('enforcing', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1`

	var program AmnestyProgram
	err := r.db.GetContext(ctx, &program, query, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get active amnesty program",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get active amnesty program: %w", err)
	}

	return &program, nil
}

// UpdateStatus applies a status transition to a program.
func (r *AmnestyRepository) UpdateStatus(ctx context.Context, programID uuid.UUID, update AmnestyStatusUpdate) error {
	query := `
		UPDATE amnesty_programs SET
			status = $2,
			enforcement_started_at = COALESCE($3, enforcement_started_at),
			cancellation_reason = COALESCE($4, cancellation_reason),
			updated_at = $5
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, programID, update.Status,
		update.EnforcementStartedAt, update.CancellationReason, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to update amnesty program status",
			zap.String("program_id", programID.String()), zap.Error(err))
		return fmt.Errorf("failed to update amnesty program status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: amnesty program %s", ErrNotFound, programID)
	}

	r.logger.Info("amnesty program status updated",
		zap.String("program_id", programID.String()),
		zap.String("status", update.Status))
	return nil
}

// UpdateAffectedUserCount refreshes the affected-user snapshot taken at
// program initiation.
func (r *AmnestyRepository) UpdateAffectedUserCount(ctx context.Context, programID uuid.UUID, count int) error {
	query := `
		UPDATE amnesty_programs SET
			affected_user_count = $2,
			updated_at = $3
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, programID, count, time.Now().UTC()); err != nil {
		r.logger.Error("failed to update affected user count",
			zap.String("program_id", programID.String()), zap.Error(err))
		return fmt.Errorf("failed to update affected user count: %w", err)
	}

	return nil
}

// ListByTenant retrieves all of a tenant's amnesty programs, newest first.
func (r *AmnestyRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*AmnestyProgram, error) {
	query := `
		SELECT * FROM amnesty_programs
		WHERE tenant_id = $1
		ORDER BY created_at DESC`

	var programs []*AmnestyProgram
	if err := r.db.SelectContext(ctx, &programs, query, tenantID); err != nil {
		r.logger.Error("failed to list amnesty programs",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list amnesty programs: %w", err)
	}

	return programs, nil
}
