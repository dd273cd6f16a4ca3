// Package amnesty manages the shadow AI amnesty program lifecycle: a
// tenant-wide grace period during which shadow AI usage is surfaced and
// migrated rather than blocked. After the grace period expires, the program
// transitions to governed-only enforcement.
package amnesty

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

// Store is the amnesty program persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, program *database.AmnestyProgram) error
	GetActiveForTenant(ctx context.Context, tenantID uuid.UUID) (*database.AmnestyProgram, error)
	UpdateStatus(ctx context.Context, programID uuid.UUID, update database.AmnestyStatusUpdate) error
	UpdateAffectedUserCount(ctx context.Context, programID uuid.UUID, count int) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*database.AmnestyProgram, error)
}

// DetectionLister provides read access to a tenant's detections for
// affected-user aggregation.
type DetectionLister interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter database.DetectionFilter) ([]*database.Detection, int, error)
}

// AffectedUser is one aggregation bucket of a tenant's detections eligible
// for amnesty. Detections carry no user attribution at the network level, so
// all of a tenant's detections currently fall into a single bucket with a
// nil UserID; correlating source IPs to identities requires IAM integration.
type AffectedUser struct {
	UserID           *uuid.UUID `json:"user_id"`
	DetectionCount   int        `json:"detection_count"`
	Providers        []string   `json:"providers"`
	HighestRiskScore float64    `json:"highest_risk_score"`
}

// Status is a point-in-time snapshot of a tenant's amnesty program. When no
// program exists the snapshot carries the synthetic status "none", which is
// never persisted.
type Status struct {
	TenantID             uuid.UUID  `json:"tenant_id"`
	ProgramID            *uuid.UUID `json:"program_id"`
	Status               string     `json:"status"`
	GracePeriodDays      int        `json:"grace_period_days"`
	GracePeriodExpiresAt *time.Time `json:"grace_period_expires_at"`
	AffectedUserCount    int        `json:"affected_user_count"`
	IsActive             bool       `json:"is_active"`
	EnforcementStartedAt *time.Time `json:"enforcement_started_at"`
}

// Service orchestrates amnesty program initiation, status reads with lazy
// enforcement transition, cancellation, and affected-user aggregation.
type Service struct {
	store      Store
	detections DetectionLister
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an amnesty service backed by the given store.
func NewService(store Store, detections DetectionLister, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		detections: detections,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Initiate starts an amnesty program for a tenant. The grace period begins
// immediately; expiry is computed at initiation and fixed thereafter.
// Returns database.ErrConflict when the tenant already has a non-terminal
// program.
func (s *Service) Initiate(ctx context.Context, tenantID uuid.UUID, message string, gracePeriodDays int, initiatedBy *uuid.UUID) (*database.AmnestyProgram, error) {
	if gracePeriodDays < 1 {
		return nil, fmt.Errorf("grace period must be at least one day, got %d", gracePeriodDays)
	}

	now := s.now()
	program := &database.AmnestyProgram{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		NotificationMessage:  message,
		GracePeriodDays:      gracePeriodDays,
		GracePeriodExpiresAt: now.Add(time.Duration(gracePeriodDays) * 24 * time.Hour),
		Status:               database.AmnestyStatusActive,
		InitiatedBy:          initiatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.Create(ctx, program); err != nil {
		return nil, err
	}

	s.logger.Info("amnesty program initiated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("program_id", program.ID.String()),
		zap.Int("grace_period_days", gracePeriodDays),
		zap.Time("grace_expires_at", program.GracePeriodExpiresAt))

	return program, nil
}

// SnapshotAffectedUserCount persists the affected user count observed at
// initiation on the program row.
func (s *Service) SnapshotAffectedUserCount(ctx context.Context, program *database.AmnestyProgram, count int) error {
	if err := s.store.UpdateAffectedUserCount(ctx, program.ID, count); err != nil {
		return err
	}
	program.AffectedUserCount = count
	return nil
}

// Status returns the tenant's current amnesty snapshot. Reading status is
// side-effecting: a program whose grace period has expired is transitioned
// to "enforcing" and the enforcement start time persisted before the
// snapshot is returned. No external scheduler is involved; the transition
// happens on whichever read first observes the expiry. The transition is
// irreversible.
func (s *Service) Status(ctx context.Context, tenantID uuid.UUID) (*Status, error) {
	program, err := s.store.GetActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return &Status{
			TenantID: tenantID,
			Status:   database.AmnestyStatusNone,
		}, nil
	}

	now := s.now()
	currentStatus := program.Status
	enforcementStartedAt := program.EnforcementStartedAt

	// "active" and "grace_period" are the same phase; either transitions
	// to enforcing once expiry passes.
	if !database.TerminalAmnestyStatus(currentStatus) && !now.Before(program.GracePeriodExpiresAt) {
		currentStatus = database.AmnestyStatusEnforcing
		enforcementStartedAt = &now
		if err := s.store.UpdateStatus(ctx, program.ID, database.AmnestyStatusUpdate{
			Status:               database.AmnestyStatusEnforcing,
			EnforcementStartedAt: &now,
		}); err != nil {
			return nil, err
		}

		s.logger.Info("amnesty program transitioned to enforcing",
			zap.String("tenant_id", tenantID.String()),
			zap.String("program_id", program.ID.String()),
			zap.Time("enforcement_started_at", now))
	}

	programID := program.ID
	expiresAt := program.GracePeriodExpiresAt
	return &Status{
		TenantID:             tenantID,
		ProgramID:            &programID,
		Status:               currentStatus,
		GracePeriodDays:      program.GracePeriodDays,
		GracePeriodExpiresAt: &expiresAt,
		AffectedUserCount:    program.AffectedUserCount,
		IsActive:             !database.TerminalAmnestyStatus(currentStatus),
		EnforcementStartedAt: enforcementStartedAt,
	}, nil
}

// Cancel cancels the tenant's non-terminal program, recording an optional
// reason. Cancelling when no program exists is a no-op that returns nil.
func (s *Service) Cancel(ctx context.Context, tenantID uuid.UUID, reason *string) (*database.AmnestyProgram, error) {
	program, err := s.store.GetActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		s.logger.Warn("cancel requested with no active amnesty program",
			zap.String("tenant_id", tenantID.String()))
		return nil, nil
	}

	if err := s.store.UpdateStatus(ctx, program.ID, database.AmnestyStatusUpdate{
		Status:             database.AmnestyStatusCancelled,
		CancellationReason: reason,
	}); err != nil {
		return nil, err
	}

	program.Status = database.AmnestyStatusCancelled
	program.CancellationReason = reason

	s.logger.Info("amnesty program cancelled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("program_id", program.ID.String()))

	return program, nil
}

// AffectedUsers aggregates the tenant's detections into per-user buckets
// ranked by highest risk score descending. Providers within a bucket are
// deduplicated and sorted for stable output.
func (s *Service) AffectedUsers(ctx context.Context, tenantID uuid.UUID) ([]*AffectedUser, error) {
	detections, _, err := s.detections.ListByTenant(ctx, tenantID, database.DetectionFilter{
		Page:     1,
		PageSize: 10000,
	})
	if err != nil {
		return nil, err
	}

	type bucket struct {
		count     int
		providers map[string]struct{}
		highest   float64
	}
	buckets := map[*uuid.UUID]*bucket{}

	for _, d := range detections {
		// Network-level detections carry no user attribution.
		var key *uuid.UUID
		b, ok := buckets[key]
		if !ok {
			b = &bucket{providers: map[string]struct{}{}}
			buckets[key] = b
		}
		b.count++
		b.providers[d.Provider] = struct{}{}
		if score, _ := d.ComplianceRiskScore.Float64(); score > b.highest {
			b.highest = score
		}
	}

	users := make([]*AffectedUser, 0, len(buckets))
	for userID, b := range buckets {
		providers := make([]string, 0, len(b.providers))
		for p := range b.providers {
			providers = append(providers, p)
		}
		sort.Strings(providers)
		users = append(users, &AffectedUser{
			UserID:           userID,
			DetectionCount:   b.count,
			Providers:        providers,
			HighestRiskScore: b.highest,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].HighestRiskScore > users[j].HighestRiskScore
	})

	s.logger.Info("affected users aggregated",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("affected_user_count", len(users)))

	return users, nil
}
