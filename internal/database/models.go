package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Detection lifecycle statuses. The lifecycle is linear:
// detected -> reviewed -> migrated | approved | blocked.
const (
	DetectionStatusDetected = "detected"
	DetectionStatusReviewed = "reviewed"
	DetectionStatusMigrated = "migrated"
	DetectionStatusApproved = "approved"
	DetectionStatusBlocked  = "blocked"
)

// Amnesty program lifecycle statuses. "active" and "grace_period" are
// synonymous phases; "enforcing" and "cancelled" are terminal. There is no
// persisted "none" status; absence of a row is reported as a synthetic
// status by the read path.
const (
	AmnestyStatusActive      = "active"
	AmnestyStatusGracePeriod = "grace_period"
	AmnestyStatusEnforcing   = "enforcing"
	AmnestyStatusCancelled   = "cancelled"
	AmnestyStatusNone        = "none"
)

// Migration complexity tiers.
const (
	ComplexityTrivial  = "trivial"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Detection is one aggregated observation of shadow AI traffic to a single
// domain within a submitted batch. Only connection metadata is recorded;
// request/response content is never inspected or stored. Immutable after
// creation except for lifecycle status transitions.
type Detection struct {
	ID                       uuid.UUID       `db:"id" json:"id"`
	TenantID                 uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	SourceIP                 string          `db:"source_ip" json:"source_ip"`
	DestinationDomain        string          `db:"destination_domain" json:"destination_domain"`
	Provider                 string          `db:"provider" json:"provider"`
	EstimatedDataSensitivity string          `db:"estimated_data_sensitivity" json:"estimated_data_sensitivity"`
	EstimatedDailyCostUSD    decimal.Decimal `db:"estimated_daily_cost_usd" json:"estimated_daily_cost_usd"`
	ComplianceRiskScore      decimal.Decimal `db:"compliance_risk_score" json:"compliance_risk_score"`
	BusinessValueIndicator   string          `db:"business_value_indicator" json:"business_value_indicator"`
	Status                   string          `db:"status" json:"status"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// MigrationProposal maps one detection's usage pattern to a governed AumOS
// module with effort estimates. Created once, never edited in place;
// regeneration creates a new proposal row.
type MigrationProposal struct {
	ID                          uuid.UUID       `db:"id" json:"id"`
	TenantID                    uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	DetectionID                 uuid.UUID       `db:"detection_id" json:"detection_id"`
	ProposedModule              string          `db:"proposed_module" json:"proposed_module"`
	MigrationComplexity         string          `db:"migration_complexity" json:"migration_complexity"`
	EstimatedMigrationHours     decimal.Decimal `db:"estimated_migration_hours" json:"estimated_migration_hours"`
	ProductivityPreservationPct decimal.Decimal `db:"productivity_preservation_pct" json:"productivity_preservation_pct"`
	ComplianceGainDescription   string          `db:"compliance_gain_description" json:"compliance_gain_description"`
	CreatedAt                   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time       `db:"updated_at" json:"updated_at"`
}

// AmnestyProgram is a tenant-scoped grace-period lifecycle record. At most
// one non-terminal program may exist per tenant; the repository enforces
// this with a partial unique index.
type AmnestyProgram struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	TenantID             uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	NotificationMessage  string     `db:"notification_message" json:"notification_message"`
	GracePeriodDays      int        `db:"grace_period_days" json:"grace_period_days"`
	GracePeriodExpiresAt time.Time  `db:"grace_period_expires_at" json:"grace_period_expires_at"`
	Status               string     `db:"status" json:"status"`
	AffectedUserCount    int        `db:"affected_user_count" json:"affected_user_count"`
	InitiatedBy          *uuid.UUID `db:"initiated_by" json:"initiated_by,omitempty"`
	EnforcementStartedAt *time.Time `db:"enforcement_started_at" json:"enforcement_started_at,omitempty"`
	CancellationReason   *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// detectionTransitions holds the allowed forward-only status moves.
var detectionTransitions = map[string][]string{
	DetectionStatusDetected: {DetectionStatusReviewed},
	DetectionStatusReviewed: {DetectionStatusMigrated, DetectionStatusApproved, DetectionStatusBlocked},
	DetectionStatusMigrated: {},
	DetectionStatusApproved: {},
	DetectionStatusBlocked:  {},
}

// ValidDetectionTransition reports whether a detection may move from one
// lifecycle status to another. There is no cycle back to "detected".
func ValidDetectionTransition(from, to string) bool {
	for _, next := range detectionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalAmnestyStatus reports whether an amnesty status admits no further
// transitions.
func TerminalAmnestyStatus(status string) bool {
	return status == AmnestyStatusEnforcing || status == AmnestyStatusCancelled
}
