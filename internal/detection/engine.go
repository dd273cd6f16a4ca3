// Package detection implements the shadow AI detection pipeline: provider
// resolution, data sensitivity classification, composite risk scoring, and
// batch aggregation into detection records. Only connection metadata is
// processed. Request and response content is never inspected.
package detection

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
	"github.com/aumos/shadow-ai-sentinel/internal/registry"
)

// NetworkLogEntry is a single connection record from a proxy, NGFW, or SIEM
// feed. Destination comes from the TLS SNI or HTTP Host header; the path is
// present only when CONNECT/DPI metadata exposes it.
type NetworkLogEntry struct {
	SourceIP          string    `json:"source_ip" binding:"required"`
	DestinationDomain string    `json:"destination_domain" binding:"required"`
	URLPath           string    `json:"url_path"`
	RequestSizeBytes  int64     `json:"request_size_bytes" binding:"min=0"`
	HasAuthHeader     bool      `json:"has_auth_header"`
	ObservedAt        time.Time `json:"observed_at"`
	Protocol          string    `json:"protocol"`
}

// DNSQuery is a single DNS query metadata record from network monitoring.
type DNSQuery struct {
	QueriedDomain string    `json:"queried_domain" binding:"required"`
	SourceIP      string    `json:"source_ip" binding:"required"`
	QueriedAt     time.Time `json:"queried_at"`
	HasAuthHeader bool      `json:"has_auth_header"`
}

// pathToBusinessValue maps representative URL paths to inferred business
// value indicators consumed by the migration proposal mapper. Lookup is an
// exact match on the lowered path; anything else is "unknown".
var pathToBusinessValue = map[string]string{
	"/v1/chat/completions": "text-generation",
	"/v1/completions":      "text-generation",
	"/v1/embeddings":       "data-analysis",
	"/messages":            "text-generation",
	"/generate":            "text-generation",
	"/invoke":              "text-generation",
	"/fine-tunes":          "code-assist",
	"/fine_tuning":         "code-assist",
	"/images/generations":  "image-generation",
	"/image":               "image-generation",
	"/assistants":          "productivity",
	"/threads":             "productivity",
	"/runs":                "productivity",
	"/audio":               "productivity",
	"/transcriptions":      "productivity",
}

// costBytesPerCent is the daily cost proxy: $0.01 per 4 KiB of API
// traffic, a conservative upper bound rather than a billing-accurate figure.
const costBytesPerCent = 4096

// Engine runs the detection pipeline for a batch of traffic metadata.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a detection engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// domainAggregate accumulates log entries observed for one domain.
type domainAggregate struct {
	provider   string
	sourceIP   string
	totalBytes int64
	hasAuth    bool
	entryCount int
	urlPaths   map[string]struct{}
}

// DetectFromNetworkLog runs the full pipeline over a batch of network log
// entries: resolve provider, group by normalized domain, aggregate volume,
// classify sensitivity, score risk, and emit one detection per domain in
// first-seen order. Entries whose domain resolves to no known provider are
// silently excluded; that is normal non-AI traffic, not an error.
func (e *Engine) DetectFromNetworkLog(tenantID uuid.UUID, entries []NetworkLogEntry) []*database.Detection {
	aggregates := make(map[string]*domainAggregate)
	domainOrder := make([]string, 0)

	for _, entry := range entries {
		domain := strings.ToLower(strings.TrimSpace(entry.DestinationDomain))
		provider, ok := registry.Resolve(domain)
		if !ok {
			continue
		}

		agg, seen := aggregates[domain]
		if !seen {
			agg = &domainAggregate{
				provider: provider,
				sourceIP: entry.SourceIP,
				urlPaths: make(map[string]struct{}),
			}
			aggregates[domain] = agg
			domainOrder = append(domainOrder, domain)
		}

		agg.totalBytes += entry.RequestSizeBytes
		agg.hasAuth = agg.hasAuth || entry.HasAuthHeader
		agg.entryCount++
		if entry.URLPath != "" {
			agg.urlPaths[entry.URLPath] = struct{}{}
		}
	}

	detections := make([]*database.Detection, 0, len(domainOrder))
	for _, domain := range domainOrder {
		agg := aggregates[domain]

		// The longest observed path is assumed the most informative.
		representativePath := longestPath(agg.urlPaths)

		sensitivity := ClassifySensitivity(representativePath, agg.totalBytes)
		riskScore := ComputeRiskScore(sensitivity, agg.provider, agg.hasAuth)

		businessValue, ok := pathToBusinessValue[strings.ToLower(representativePath)]
		if !ok {
			businessValue = "unknown"
		}

		dailyCost := estimateDailyCost(agg.totalBytes)

		now := time.Now().UTC()
		detection := &database.Detection{
			ID:                       uuid.New(),
			TenantID:                 tenantID,
			SourceIP:                 agg.sourceIP,
			DestinationDomain:        domain,
			Provider:                 agg.provider,
			EstimatedDataSensitivity: sensitivity,
			EstimatedDailyCostUSD:    dailyCost,
			ComplianceRiskScore:      riskScore,
			BusinessValueIndicator:   businessValue,
			Status:                   database.DetectionStatusDetected,
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		detections = append(detections, detection)

		e.logger.Info("network log shadow AI detection",
			zap.String("tenant_id", tenantID.String()),
			zap.String("domain", domain),
			zap.String("provider", agg.provider),
			zap.String("sensitivity", sensitivity),
			zap.String("risk_score", riskScore.String()),
			zap.Int("entry_count", agg.entryCount),
			zap.Int64("total_bytes", agg.totalBytes))
	}

	return detections
}

// AnalyzeDNSQueries matches DNS queries against the provider registry and
// emits one detection per unique domain. The first occurrence wins for
// source IP attribution. Without path or size metadata, classification uses
// an empty path and zero bytes, biasing toward low sensitivity, and the
// daily cost estimate stays zero.
func (e *Engine) AnalyzeDNSQueries(tenantID uuid.UUID, queries []DNSQuery) []*database.Detection {
	detections := make([]*database.Detection, 0)
	seenDomains := make(map[string]struct{})

	for _, query := range queries {
		domain := strings.ToLower(strings.TrimSpace(query.QueriedDomain))
		provider, ok := registry.Resolve(domain)
		if !ok {
			continue
		}

		if _, dup := seenDomains[domain]; dup {
			continue
		}
		seenDomains[domain] = struct{}{}

		sensitivity := ClassifySensitivity("", 0)
		riskScore := ComputeRiskScore(sensitivity, provider, query.HasAuthHeader)

		now := time.Now().UTC()
		detection := &database.Detection{
			ID:                       uuid.New(),
			TenantID:                 tenantID,
			SourceIP:                 query.SourceIP,
			DestinationDomain:        domain,
			Provider:                 provider,
			EstimatedDataSensitivity: sensitivity,
			EstimatedDailyCostUSD:    decimal.Zero.Round(4),
			ComplianceRiskScore:      riskScore,
			BusinessValueIndicator:   "unknown",
			Status:                   database.DetectionStatusDetected,
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		detections = append(detections, detection)

		e.logger.Info("DNS shadow AI detection",
			zap.String("tenant_id", tenantID.String()),
			zap.String("domain", domain),
			zap.String("provider", provider),
			zap.String("sensitivity", sensitivity),
			zap.String("risk_score", riskScore.String()))
	}

	return detections
}

// estimateDailyCost converts aggregate byte volume to a daily USD estimate
// at $0.01 per 4 KiB, rounded to four decimals.
func estimateDailyCost(totalBytes int64) decimal.Decimal {
	return decimal.NewFromInt(totalBytes).
		Div(decimal.NewFromInt(costBytesPerCent)).
		Mul(decimal.NewFromFloat(0.01)).
		Round(4)
}

func longestPath(paths map[string]struct{}) string {
	longest := ""
	for p := range paths {
		if len(p) > len(longest) {
			longest = p
		}
	}
	return longest
}
