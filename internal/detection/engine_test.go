package detection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

func testEngine() *Engine {
	return NewEngine(zap.NewNop())
}

func TestDetectFromNetworkLog_EndToEnd(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now().UTC()

	entries := []NetworkLogEntry{
		{
			SourceIP:          "10.0.0.5",
			DestinationDomain: "api.openai.com",
			URLPath:           "/v1/chat/completions",
			RequestSizeBytes:  2048,
			HasAuthHeader:     true,
			ObservedAt:        now,
		},
		{
			SourceIP:          "10.0.0.6",
			DestinationDomain: "api.anthropic.com",
			URLPath:           "/v1/messages",
			RequestSizeBytes:  2048,
			HasAuthHeader:     true,
			ObservedAt:        now,
		},
		{
			SourceIP:          "10.0.0.7",
			DestinationDomain: "github.com",
			URLPath:           "/pulls",
			RequestSizeBytes:  2048,
			HasAuthHeader:     true,
			ObservedAt:        now,
		},
	}

	detections := testEngine().DetectFromNetworkLog(tenantID, entries)
	require.Len(t, detections, 2, "non-AI traffic must be excluded")

	byProvider := make(map[string]*database.Detection)
	for _, d := range detections {
		byProvider[d.Provider] = d
	}
	require.Contains(t, byProvider, "openai")
	require.Contains(t, byProvider, "anthropic")

	for provider, d := range byProvider {
		assert.Equal(t, tenantID, d.TenantID, provider)
		assert.Equal(t, SensitivityMedium, d.EstimatedDataSensitivity, provider)
		assert.True(t, d.ComplianceRiskScore.GreaterThan(decimal.Zero), provider)
		assert.Equal(t, database.DetectionStatusDetected, d.Status, provider)
		assert.Equal(t, "text-generation", d.BusinessValueIndicator, provider)
	}

	assert.Equal(t, "10.0.0.5", byProvider["openai"].SourceIP)
	assert.Equal(t, "10.0.0.6", byProvider["anthropic"].SourceIP)
}

func TestDetectFromNetworkLog_AggregatesByDomain(t *testing.T) {
	tenantID := uuid.New()

	entries := []NetworkLogEntry{
		{SourceIP: "10.0.0.1", DestinationDomain: "api.openai.com", URLPath: "/v1/embeddings", RequestSizeBytes: 1000},
		{SourceIP: "10.0.0.2", DestinationDomain: "API.OPENAI.COM", URLPath: "/v1/chat/completions", RequestSizeBytes: 2000, HasAuthHeader: true},
		{SourceIP: "10.0.0.3", DestinationDomain: " api.openai.com ", RequestSizeBytes: 3000},
	}

	detections := testEngine().DetectFromNetworkLog(tenantID, entries)
	require.Len(t, detections, 1, "same domain must collapse to one detection")

	d := detections[0]
	assert.Equal(t, "api.openai.com", d.DestinationDomain)
	// First entry wins source IP attribution.
	assert.Equal(t, "10.0.0.1", d.SourceIP)
	// Longest path is representative: /v1/chat/completions beats /v1/embeddings.
	assert.Equal(t, "text-generation", d.BusinessValueIndicator)
	// 6000 aggregate bytes on an inference path crosses the 4 KiB bump.
	assert.Equal(t, SensitivityHigh, d.EstimatedDataSensitivity)
	// (6000 / 4096) * 0.01 = 0.0146
	assert.True(t, d.EstimatedDailyCostUSD.Equal(decimal.RequireFromString("0.0146")),
		"got cost %s", d.EstimatedDailyCostUSD)
}

func TestDetectFromNetworkLog_ORCombinesAuth(t *testing.T) {
	tenantID := uuid.New()

	noAuth := testEngine().DetectFromNetworkLog(tenantID, []NetworkLogEntry{
		{SourceIP: "10.0.0.1", DestinationDomain: "api.groq.com", RequestSizeBytes: 100},
		{SourceIP: "10.0.0.1", DestinationDomain: "api.groq.com", RequestSizeBytes: 100},
	})
	mixedAuth := testEngine().DetectFromNetworkLog(tenantID, []NetworkLogEntry{
		{SourceIP: "10.0.0.1", DestinationDomain: "api.groq.com", RequestSizeBytes: 100},
		{SourceIP: "10.0.0.1", DestinationDomain: "api.groq.com", RequestSizeBytes: 100, HasAuthHeader: true},
	})

	require.Len(t, noAuth, 1)
	require.Len(t, mixedAuth, 1)
	assert.True(t, mixedAuth[0].ComplianceRiskScore.GreaterThan(noAuth[0].ComplianceRiskScore),
		"one authed entry must raise the aggregate score")
}

func TestDetectFromNetworkLog_EmptyBatch(t *testing.T) {
	detections := testEngine().DetectFromNetworkLog(uuid.New(), nil)
	assert.Empty(t, detections)
}

func TestAnalyzeDNSQueries_Deduplicates(t *testing.T) {
	tenantID := uuid.New()

	queries := []DNSQuery{
		{QueriedDomain: "api.mistral.ai", SourceIP: "10.1.0.1", HasAuthHeader: true},
		{QueriedDomain: "api.mistral.ai", SourceIP: "10.1.0.2"},
		{QueriedDomain: "API.MISTRAL.AI", SourceIP: "10.1.0.3"},
	}

	detections := testEngine().AnalyzeDNSQueries(tenantID, queries)
	require.Len(t, detections, 1)
	assert.Equal(t, "10.1.0.1", detections[0].SourceIP, "first occurrence wins attribution")
	assert.Equal(t, "mistral", detections[0].Provider)
}

func TestAnalyzeDNSQueries_DistinctDomains(t *testing.T) {
	queries := []DNSQuery{
		{QueriedDomain: "api.openai.com", SourceIP: "10.1.0.1"},
		{QueriedDomain: "api.anthropic.com", SourceIP: "10.1.0.1"},
		{QueriedDomain: "api.groq.com", SourceIP: "10.1.0.1"},
		{QueriedDomain: "intranet.local", SourceIP: "10.1.0.1"},
	}

	detections := testEngine().AnalyzeDNSQueries(uuid.New(), queries)
	require.Len(t, detections, 3)

	providers := make([]string, 0, len(detections))
	for _, d := range detections {
		providers = append(providers, d.Provider)
	}
	assert.ElementsMatch(t, []string{"openai", "anthropic", "groq"}, providers)
}

func TestAnalyzeDNSQueries_BiasesLow(t *testing.T) {
	// Without path or size metadata classification uses empty path / zero
	// bytes, so DNS-only detections sit at the low tier with zero cost.
	detections := testEngine().AnalyzeDNSQueries(uuid.New(), []DNSQuery{
		{QueriedDomain: "api.replicate.com", SourceIP: "10.1.0.9"},
	})
	require.Len(t, detections, 1)
	assert.Equal(t, SensitivityLow, detections[0].EstimatedDataSensitivity)
	assert.True(t, detections[0].EstimatedDailyCostUSD.IsZero())
	assert.Equal(t, "unknown", detections[0].BusinessValueIndicator)
}
