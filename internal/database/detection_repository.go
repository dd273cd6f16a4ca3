package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DetectionFilter narrows ListByTenant results. Zero values mean no filter.
type DetectionFilter struct {
	Severity string
	Status   string
	Provider string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// DetectionRepository handles detection record persistence, tenant-scoped.
type DetectionRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewDetectionRepository creates a new detection repository.
func NewDetectionRepository(db *sqlx.DB, logger *zap.Logger) *DetectionRepository {
	return &DetectionRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

const detectionInsert = `
	INSERT INTO shadow_detections (
		id, tenant_id, source_ip, destination_domain, provider,
		estimated_data_sensitivity, estimated_daily_cost_usd,
		compliance_risk_score, business_value_indicator, status,
		created_at, updated_at
	) VALUES (
		:id, :tenant_id, :source_ip, :destination_domain, :provider,
		:estimated_data_sensitivity, :estimated_daily_cost_usd,
		:compliance_risk_score, :business_value_indicator, :status,
		:created_at, :updated_at
	)`

// Create persists a single detection.
func (r *DetectionRepository) Create(ctx context.Context, detection *Detection) error {
	if _, err := r.db.NamedExecContext(ctx, detectionInsert, detection); err != nil {
		r.logger.Error("failed to create detection",
			zap.String("detection_id", detection.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to create detection: %w", err)
	}

	r.logger.Info("detection created",
		zap.String("detection_id", detection.ID.String()),
		zap.String("provider", detection.Provider))
	return nil
}

// BulkCreate persists a batch of detections in one transaction.
func (r *DetectionRepository) BulkCreate(ctx context.Context, detections []*Detection) error {
	if len(detections) == 0 {
		return nil
	}

	err := r.Transaction(func(tx *sqlx.Tx) error {
		for _, detection := range detections {
			if _, err := tx.NamedExecContext(ctx, detectionInsert, detection); err != nil {
				return fmt.Errorf("failed to insert detection %s: %w", detection.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to bulk create detections",
			zap.Int("count", len(detections)), zap.Error(err))
		return err
	}

	r.logger.Info("detections created", zap.Int("count", len(detections)))
	return nil
}

// GetByID retrieves a detection scoped to a tenant.
func (r *DetectionRepository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*Detection, error) {
	query := `
		SELECT * FROM shadow_detections
		WHERE id = $1 AND tenant_id = $2`

	var detection Detection
	err := r.db.GetContext(ctx, &detection, query, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get detection",
			zap.String("detection_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}

	return &detection, nil
}

// ListByTenant retrieves detections with filtering and pagination,
// returning the page and the total count across all pages.
func (r *DetectionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter DetectionFilter) ([]*Detection, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	argIndex := 1

	if filter.Severity != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("estimated_data_sensitivity = $%d", argIndex))
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
	}
	if filter.Provider != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("provider = $%d", argIndex))
		args = append(args, filter.Provider)
	}
	if filter.DateFrom != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.DateTo)
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM shadow_detections %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("failed to count detections", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count detections: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	argIndex++
	limitArg := argIndex
	argIndex++
	offsetArg := argIndex
	args = append(args, pageSize, (page-1)*pageSize)

	dataQuery := fmt.Sprintf(`
		SELECT * FROM shadow_detections %s
		ORDER BY compliance_risk_score DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, limitArg, offsetArg)

	var detections []*Detection
	if err := r.db.SelectContext(ctx, &detections, dataQuery, args...); err != nil {
		r.logger.Error("failed to list detections", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list detections: %w", err)
	}

	return detections, total, nil
}

// UpdateStatus performs a lifecycle transition on a detection. The
// transition is validated against the forward-only lifecycle; terminal or
// out-of-order moves return ErrConflict.
func (r *DetectionRepository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, newStatus string) (*Detection, error) {
	detection, err := r.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if !ValidDetectionTransition(detection.Status, newStatus) {
		return nil, fmt.Errorf("%w: cannot move detection from %s to %s",
			ErrConflict, detection.Status, newStatus)
	}

	query := `
		UPDATE shadow_detections SET
			status = $3,
			updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND status = $5`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, id, tenantID, newStatus, now, detection.Status)
	if err != nil {
		r.logger.Error("failed to update detection status",
			zap.String("detection_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to update detection status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Status changed underneath us between read and write.
		return nil, fmt.Errorf("%w: detection %s transitioned concurrently", ErrConflict, id)
	}

	detection.Status = newStatus
	detection.UpdatedAt = now

	r.logger.Info("detection status updated",
		zap.String("detection_id", id.String()),
		zap.String("status", newStatus))
	return detection, nil
}
