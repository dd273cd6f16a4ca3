// Package reporting produces tenant-level rollups of shadow AI detections:
// a risk summary grouped into score bands and a regulatory framework
// exposure view. Summaries are cached in Redis with a short TTL since they
// are read far more often than detections are written.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

// Risk band boundaries over the composite 0-100 compliance risk score.
const (
	bandCritical = 75.0
	bandHigh     = 50.0
	bandMedium   = 25.0
)

// FrameworkExposure flags one regulatory framework a tenant's shadow AI
// usage may expose it to, with an indicative severity weight and maximum
// fine. All assessment is metadata-based.
type FrameworkExposure struct {
	Framework      string  `json:"framework"`
	SeverityWeight float64 `json:"severity_weight"`
	MaxFineUSD     int64   `json:"max_fine_usd"`
	DetectionCount int     `json:"detection_count"`
}

// RiskSummary is the aggregated risk posture for one tenant.
type RiskSummary struct {
	TenantID           uuid.UUID           `json:"tenant_id"`
	TotalDetections    int                 `json:"total_detections"`
	CriticalCount      int                 `json:"critical_count"`
	HighCount          int                 `json:"high_count"`
	MediumCount        int                 `json:"medium_count"`
	LowCount           int                 `json:"low_count"`
	DistinctProviders  []string            `json:"distinct_providers"`
	AverageRiskScore   decimal.Decimal     `json:"average_risk_score"`
	HighestRiskScore   decimal.Decimal     `json:"highest_risk_score"`
	TotalDailyCostUSD  decimal.Decimal     `json:"total_daily_cost_usd"`
	FrameworkExposures []FrameworkExposure `json:"framework_exposures"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// frameworkProfiles maps regulatory frameworks to the detection sensitivity
// tiers that expose them, with indicative severity and fine ceilings.
var frameworkProfiles = []struct {
	framework      string
	severityWeight float64
	maxFineUSD     int64
	tiers          map[string]bool
}{
	{"GDPR", 0.9, 20_000_000, map[string]bool{"medium": true, "high": true, "critical": true}},
	{"HIPAA", 1.0, 1_900_000, map[string]bool{"high": true, "critical": true}},
	{"SOC2", 0.6, 0, map[string]bool{"low": true, "medium": true, "high": true, "critical": true}},
}

// DetectionLister provides the detection read path for rollups.
type DetectionLister interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter database.DetectionFilter) ([]*database.Detection, int, error)
}

// Service computes and caches tenant risk summaries.
type Service struct {
	detections DetectionLister
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a reporting service. cache may be nil, in which case
// every summary is computed fresh.
func NewService(detections DetectionLister, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		detections: detections,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("shadow-sentinel:risk-summary:%s", tenantID)
}

// RiskSummary returns the tenant's current risk rollup, served from cache
// when a fresh copy exists. Cache failures degrade to recomputation.
func (s *Service) RiskSummary(ctx context.Context, tenantID uuid.UUID) (*RiskSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey(tenantID)).Result()
		if err == nil {
			var summary RiskSummary
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				return &summary, nil
			}
			s.logger.Warn("discarding unreadable cached risk summary",
				zap.String("tenant_id", tenantID.String()))
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("risk summary cache read failed",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}

	summary, err := s.computeSummary(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey(tenantID), payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("risk summary cache write failed",
					zap.String("tenant_id", tenantID.String()), zap.Error(err))
			}
		}
	}

	return summary, nil
}

// Invalidate drops the tenant's cached summary. Called after writes that
// change the rollup. A missing key is not an error.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		s.logger.Warn("risk summary cache invalidation failed",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}
}

func (s *Service) computeSummary(ctx context.Context, tenantID uuid.UUID) (*RiskSummary, error) {
	detections, _, err := s.detections.ListByTenant(ctx, tenantID, database.DetectionFilter{
		Page:     1,
		PageSize: 10000,
	})
	if err != nil {
		return nil, err
	}

	summary := &RiskSummary{
		TenantID:           tenantID,
		TotalDetections:    len(detections),
		DistinctProviders:  []string{},
		AverageRiskScore:   decimal.Zero,
		HighestRiskScore:   decimal.Zero,
		TotalDailyCostUSD:  decimal.Zero,
		FrameworkExposures: []FrameworkExposure{},
		GeneratedAt:        s.now(),
	}
	if len(detections) == 0 {
		return summary, nil
	}

	providers := map[string]bool{}
	tierCounts := map[string]int{}
	scoreSum := decimal.Zero

	for _, d := range detections {
		providers[d.Provider] = true
		tierCounts[d.EstimatedDataSensitivity]++
		scoreSum = scoreSum.Add(d.ComplianceRiskScore)
		summary.TotalDailyCostUSD = summary.TotalDailyCostUSD.Add(d.EstimatedDailyCostUSD)
		if d.ComplianceRiskScore.GreaterThan(summary.HighestRiskScore) {
			summary.HighestRiskScore = d.ComplianceRiskScore
		}

		score, _ := d.ComplianceRiskScore.Float64()
		switch {
		case score >= bandCritical:
			summary.CriticalCount++
		case score >= bandHigh:
			summary.HighCount++
		case score >= bandMedium:
			summary.MediumCount++
		default:
			summary.LowCount++
		}
	}

	for p := range providers {
		summary.DistinctProviders = append(summary.DistinctProviders, p)
	}
	sort.Strings(summary.DistinctProviders)

	summary.AverageRiskScore = scoreSum.Div(decimal.NewFromInt(int64(len(detections)))).Round(2)

	for _, profile := range frameworkProfiles {
		count := 0
		for tier, n := range tierCounts {
			if profile.tiers[tier] {
				count += n
			}
		}
		if count > 0 {
			summary.FrameworkExposures = append(summary.FrameworkExposures, FrameworkExposure{
				Framework:      profile.framework,
				SeverityWeight: profile.severityWeight,
				MaxFineUSD:     profile.maxFineUSD,
				DetectionCount: count,
			})
		}
	}

	return summary, nil
}
