package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ProposalRepository handles migration proposal persistence. Proposals are
// immutable after creation; there is no update path.
type ProposalRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewProposalRepository creates a new proposal repository.
func NewProposalRepository(db *sqlx.DB, logger *zap.Logger) *ProposalRepository {
	return &ProposalRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create persists a migration proposal.
func (r *ProposalRepository) Create(ctx context.Context, proposal *MigrationProposal) error {
	query := `
		INSERT INTO shadow_migration_proposals (
			id, tenant_id, detection_id, proposed_module, migration_complexity,
			estimated_migration_hours, productivity_preservation_pct,
			compliance_gain_description, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :detection_id, :proposed_module, :migration_complexity,
			:estimated_migration_hours, :productivity_preservation_pct,
			:compliance_gain_description, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		r.logger.Error("failed to create migration proposal",
			zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to create migration proposal: %w", err)
	}

	r.logger.Info("migration proposal created",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("detection_id", proposal.DetectionID.String()),
		zap.String("module", proposal.ProposedModule))
	return nil
}

// ListByDetection retrieves all proposals generated for a detection,
// newest first. A detection may accumulate multiple proposals over time.
func (r *ProposalRepository) ListByDetection(ctx context.Context, detectionID, tenantID uuid.UUID) ([]*MigrationProposal, error) {
	query := `
		SELECT * FROM shadow_migration_proposals
		WHERE detection_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC`

	var proposals []*MigrationProposal
	if err := r.db.SelectContext(ctx, &proposals, query, detectionID, tenantID); err != nil {
		r.logger.Error("failed to list proposals",
			zap.String("detection_id", detectionID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	return proposals, nil
}
