// Package handlers exposes the shadow AI sentinel REST API. Routes delegate
// to the detection, migration, amnesty and reporting services; no business
// logic lives here. Tenant identity comes from the X-Tenant-ID header set by
// the upstream gateway and is never read from request bodies.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/amnesty"
	"github.com/aumos/shadow-ai-sentinel/internal/database"
	"github.com/aumos/shadow-ai-sentinel/internal/detection"
	"github.com/aumos/shadow-ai-sentinel/internal/events"
	"github.com/aumos/shadow-ai-sentinel/internal/metrics"
	"github.com/aumos/shadow-ai-sentinel/internal/migration"
	"github.com/aumos/shadow-ai-sentinel/internal/reporting"
)

const tenantHeader = "X-Tenant-ID"

// DetectionStore is the detection persistence surface used by the handlers.
type DetectionStore interface {
	BulkCreate(ctx context.Context, detections []*database.Detection) error
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*database.Detection, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter database.DetectionFilter) ([]*database.Detection, int, error)
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, newStatus string) (*database.Detection, error)
}

// ProposalStore is the proposal persistence surface used by the handlers.
type ProposalStore interface {
	Create(ctx context.Context, proposal *database.MigrationProposal) error
	ListByDetection(ctx context.Context, detectionID, tenantID uuid.UUID) ([]*database.MigrationProposal, error)
}

// ShadowAIHandler handles shadow AI detection HTTP requests.
type ShadowAIHandler struct {
	engine       *detection.Engine
	detections   DetectionStore
	proposals    ProposalStore
	amnestySvc   *amnesty.Service
	reportingSvc *reporting.Service
	publisher    events.Publisher
	collector    *metrics.Collector
	maxBatchSize int
	logger       *zap.Logger
}

// NewShadowAIHandler creates the API handler.
func NewShadowAIHandler(
	engine *detection.Engine,
	detections DetectionStore,
	proposals ProposalStore,
	amnestySvc *amnesty.Service,
	reportingSvc *reporting.Service,
	publisher events.Publisher,
	collector *metrics.Collector,
	maxBatchSize int,
	logger *zap.Logger,
) *ShadowAIHandler {
	return &ShadowAIHandler{
		engine:       engine,
		detections:   detections,
		proposals:    proposals,
		amnestySvc:   amnestySvc,
		reportingSvc: reportingSvc,
		publisher:    publisher,
		collector:    collector,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// RegisterRoutes registers all shadow AI routes.
func (h *ShadowAIHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")

	api.POST("/shadow-ai/analyze", h.AnalyzeNetworkLogs)
	api.POST("/shadow-ai/analyze-dns", h.AnalyzeDNSQueries)
	api.GET("/shadow-ai/detections", h.ListDetections)
	api.POST("/shadow-ai/detections/:detection_id/review", h.ReviewDetection)
	api.POST("/shadow-ai/detections/:detection_id/propose-migration", h.ProposeMigration)
	api.POST("/shadow-ai/migration-estimate", h.MigrationEstimate)
	api.GET("/shadow-ai/risk-summary", h.RiskSummary)
	api.POST("/shadow-ai/amnesty-program/initiate", h.InitiateAmnesty)
	api.GET("/shadow-ai/amnesty-program/status", h.AmnestyStatus)
	api.POST("/shadow-ai/amnesty-program/cancel", h.CancelAmnesty)
}

// tenantID extracts and validates the tenant header, writing the error
// response itself when invalid.
func (h *ShadowAIHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(tenantHeader)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Tenant-ID header"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid X-Tenant-ID header"})
		return uuid.Nil, false
	}
	return id, true
}

// AnalyzeNetworkLogs runs the detection pipeline over a network log batch,
// persists the resulting detections and publishes events. Request and
// response content is never inspected, only connection metadata.
func (h *ShadowAIHandler) AnalyzeNetworkLogs(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var request struct {
		LogEntries []detection.NetworkLogEntry `json:"log_entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(request.LogEntries) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch exceeds maximum size of " + strconv.Itoa(h.maxBatchSize)})
		return
	}

	detections := h.engine.DetectFromNetworkLog(tenantID, request.LogEntries)
	h.persistAndRespond(c, tenantID, len(request.LogEntries), detections)
}

// AnalyzeDNSQueries runs the DNS-only detection path over a query batch.
func (h *ShadowAIHandler) AnalyzeDNSQueries(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var request struct {
		Queries []detection.DNSQuery `json:"queries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(request.Queries) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch exceeds maximum size of " + strconv.Itoa(h.maxBatchSize)})
		return
	}

	detections := h.engine.AnalyzeDNSQueries(tenantID, request.Queries)
	h.persistAndRespond(c, tenantID, len(request.Queries), detections)
}

func (h *ShadowAIHandler) persistAndRespond(c *gin.Context, tenantID uuid.UUID, submitted int, detections []*database.Detection) {
	if len(detections) > 0 {
		if err := h.detections.BulkCreate(c.Request.Context(), detections); err != nil {
			h.logger.Error("failed to persist detections",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist detections"})
			return
		}
		h.reportingSvc.Invalidate(c.Request.Context(), tenantID)
	}

	providers := map[string]bool{}
	highestRisk := decimal.Zero
	for _, d := range detections {
		providers[d.Provider] = true
		if d.ComplianceRiskScore.GreaterThan(highestRisk) {
			highestRisk = d.ComplianceRiskScore
		}
		score, _ := d.ComplianceRiskScore.Float64()
		h.collector.RecordDetection(d.Provider, d.EstimatedDataSensitivity, score)
		h.publisher.DetectionCreated(c.Request.Context(), d)
	}

	providersDetected := make([]string, 0, len(providers))
	for p := range providers {
		providersDetected = append(providersDetected, p)
	}
	sort.Strings(providersDetected)

	h.logger.Info("analysis complete",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("entries_submitted", submitted),
		zap.Int("detections_found", len(detections)),
		zap.Strings("providers", providersDetected))

	c.JSON(http.StatusOK, gin.H{
		"detections_found":   len(detections),
		"providers_detected": providersDetected,
		"highest_risk_score": highestRisk,
		"detections":         detections,
	})
}

// ListDetections lists the tenant's detections with optional severity,
// status, provider and date-range filters.
func (h *ShadowAIHandler) ListDetections(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	filter := database.DetectionFilter{
		Severity: c.Query("severity"),
		Status:   c.Query("status"),
		Provider: c.Query("provider"),
		Page:     1,
		PageSize: 20,
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and 200"})
			return
		}
		filter.PageSize = size
	}
	if raw := c.Query("date_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be RFC 3339"})
			return
		}
		filter.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_to must be RFC 3339"})
			return
		}
		filter.DateTo = &t
	}

	detections, total, err := h.detections.ListByTenant(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.logger.Error("failed to list detections",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list detections"})
		return
	}

	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if detections == nil {
		detections = []*database.Detection{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       detections,
		"total":       total,
		"page":        filter.Page,
		"page_size":   filter.PageSize,
		"total_pages": totalPages,
	})
}

// ReviewDetection moves a detection through its lifecycle. Transitions are
// forward-only; anything else is a conflict.
func (h *ShadowAIHandler) ReviewDetection(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	detectionID, err := uuid.Parse(c.Param("detection_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	var request struct {
		Status string `json:"status" binding:"required,oneof=reviewed migrated approved blocked"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.detections.UpdateStatus(c.Request.Context(), detectionID, tenantID, request.Status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "detection not found"})
		case errors.Is(err, database.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to update detection status",
				zap.String("detection_id", detectionID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update detection status"})
		}
		return
	}

	h.reportingSvc.Invalidate(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, updated)
}

// ProposeMigration generates and persists a migration proposal for a
// detection. Regeneration creates a new proposal row rather than editing.
func (h *ShadowAIHandler) ProposeMigration(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	detectionID, err := uuid.Parse(c.Param("detection_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	det, err := h.detections.GetByID(c.Request.Context(), detectionID, tenantID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "detection not found"})
			return
		}
		h.logger.Error("failed to load detection",
			zap.String("detection_id", detectionID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load detection"})
		return
	}

	if det.Status != database.DetectionStatusDetected && det.Status != database.DetectionStatusReviewed {
		c.JSON(http.StatusConflict, gin.H{
			"error": "detection in status " + det.Status + " cannot be migrated"})
		return
	}

	proposal := migration.Propose(det)
	if err := h.proposals.Create(c.Request.Context(), proposal); err != nil {
		h.logger.Error("failed to persist proposal",
			zap.String("detection_id", detectionID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist proposal"})
		return
	}

	h.collector.RecordProposal(proposal.ProposedModule, proposal.MigrationComplexity)
	h.publisher.MigrationProposed(c.Request.Context(), proposal)

	h.logger.Info("migration proposal created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("detection_id", detectionID.String()),
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("module", proposal.ProposedModule))

	c.JSON(http.StatusCreated, gin.H{
		"detection_id": detectionID,
		"proposal":     proposal,
	})
}

// MigrationEstimate aggregates migration effort across the tenant's
// unreviewed detections.
func (h *ShadowAIHandler) MigrationEstimate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	detections, _, err := h.detections.ListByTenant(c.Request.Context(), tenantID, database.DetectionFilter{
		Status:   database.DetectionStatusDetected,
		Page:     1,
		PageSize: 10000,
	})
	if err != nil {
		h.logger.Error("failed to list detections for estimate",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute migration estimate"})
		return
	}

	c.JSON(http.StatusOK, migration.EstimateTotal(detections))
}

// RiskSummary returns the tenant's cached risk rollup.
func (h *ShadowAIHandler) RiskSummary(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	summary, err := h.reportingSvc.RiskSummary(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to compute risk summary",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute risk summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// InitiateAmnesty starts the amnesty program for the tenant, snapshotting
// the affected user count and outstanding migration work.
func (h *ShadowAIHandler) InitiateAmnesty(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var request struct {
		NotificationMessage string     `json:"notification_message" binding:"required"`
		GracePeriodDays     int        `json:"grace_period_days" binding:"required,min=1,max=365"`
		InitiatedBy         *uuid.UUID `json:"initiated_by"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	affectedUsers, err := h.amnestySvc.AffectedUsers(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to aggregate affected users",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate amnesty program"})
		return
	}

	_, pendingMigrations, err := h.detections.ListByTenant(c.Request.Context(), tenantID, database.DetectionFilter{
		Status:   database.DetectionStatusDetected,
		Page:     1,
		PageSize: 1,
	})
	if err != nil {
		h.logger.Error("failed to count pending migrations",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate amnesty program"})
		return
	}

	program, err := h.amnestySvc.Initiate(c.Request.Context(), tenantID,
		request.NotificationMessage, request.GracePeriodDays, request.InitiatedBy)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "tenant already has an active amnesty program"})
			return
		}
		h.logger.Error("failed to initiate amnesty program",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate amnesty program"})
		return
	}

	if len(affectedUsers) > 0 {
		if err := h.amnestySvc.SnapshotAffectedUserCount(c.Request.Context(), program, len(affectedUsers)); err != nil {
			h.logger.Warn("failed to snapshot affected user count",
				zap.String("program_id", program.ID.String()), zap.Error(err))
		}
	}

	h.collector.RecordAmnestyTransition("initiated")
	h.publisher.AmnestyLifecycle(c.Request.Context(), program, "initiated")

	c.JSON(http.StatusCreated, gin.H{
		"program_id":                 program.ID,
		"tenant_id":                  program.TenantID,
		"status":                     program.Status,
		"affected_users_count":       len(affectedUsers),
		"estimated_migrations_count": pendingMigrations,
		"grace_period_days":          program.GracePeriodDays,
		"grace_period_expires_at":    program.GracePeriodExpiresAt,
		"created_at":                 program.CreatedAt,
	})
}

// AmnestyStatus returns the tenant's amnesty snapshot. Reading status may
// transition an expired program to enforcing.
func (h *ShadowAIHandler) AmnestyStatus(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	before, err := h.amnestySvc.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to read amnesty status",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read amnesty status"})
		return
	}

	c.JSON(http.StatusOK, before)
}

// CancelAmnesty cancels the tenant's active amnesty program. Cancelling
// with no active program succeeds with no effect.
func (h *ShadowAIHandler) CancelAmnesty(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var request struct {
		Reason *string `json:"reason"`
	}
	// An absent body is a cancellation without a reason.
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	program, err := h.amnestySvc.Cancel(c.Request.Context(), tenantID, request.Reason)
	if err != nil {
		h.logger.Error("failed to cancel amnesty program",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel amnesty program"})
		return
	}
	if program == nil {
		c.JSON(http.StatusOK, gin.H{"cancelled": false, "message": "no active amnesty program"})
		return
	}

	h.collector.RecordAmnestyTransition("cancelled")
	h.publisher.AmnestyLifecycle(c.Request.Context(), program, "cancelled")

	c.JSON(http.StatusOK, gin.H{
		"cancelled": true,
		"program":   program,
	})
}

// HealthCheck reports service liveness.
func (h *ShadowAIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shadow-ai-sentinel",
		"time":    time.Now().UTC(),
	})
}
