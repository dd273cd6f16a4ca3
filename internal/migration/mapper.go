// Package migration maps detected shadow AI usage patterns to governed
// AumOS modules with complexity and effort estimates.
package migration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

// Mapping describes the governed module a business-value indicator
// migrates to, with effort metadata.
type Mapping struct {
	Module          string
	Complexity      string
	Hours           decimal.Decimal
	PreservationPct decimal.Decimal
	Description     string
}

// moduleMappings keys business-value indicators to migration targets. The
// "unknown" entry is the mandatory fallback for unmapped indicators.
var moduleMappings = map[string]Mapping{
	"code-assist": {
		Module:          "aumos-llm-serving",
		Complexity:      database.ComplexityTrivial,
		Hours:           decimal.RequireFromString("2.0"),
		PreservationPct: decimal.RequireFromString("95.00"),
		Description: "Route code assistance through governed LLM serving with full audit trail, " +
			"model governance policies, and data residency controls.",
	},
	"text-generation": {
		Module:          "aumos-text-engine",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("8.0"),
		PreservationPct: decimal.RequireFromString("90.00"),
		Description: "Replace direct API calls with AumOS text engine supporting PII detection, " +
			"differential privacy output filtering, and structured output validation.",
	},
	"data-analysis": {
		Module:          "aumos-context-graph",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("16.0"),
		PreservationPct: decimal.RequireFromString("85.00"),
		Description: "Migrate analytics workflows to graph-accelerated RAG with data governance, " +
			"fine-grained access control, and provenance tracking.",
	},
	"image-generation": {
		Module:          "aumos-image-engine",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("4.0"),
		PreservationPct: decimal.RequireFromString("90.00"),
		Description: "Route image generation through governed pipeline with C2PA provenance " +
			"watermarking, content policy enforcement, and brand safety filters.",
	},
	"productivity": {
		Module:          "aumos-llm-serving",
		Complexity:      database.ComplexityTrivial,
		Hours:           decimal.RequireFromString("4.0"),
		PreservationPct: decimal.RequireFromString("92.00"),
		Description: "Replace general productivity AI usage with governed LLM serving endpoint " +
			"featuring session management, rate limiting, and usage analytics.",
	},
	"audio": {
		Module:          "aumos-audio-engine",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("8.0"),
		PreservationPct: decimal.RequireFromString("88.00"),
		Description: "Migrate audio AI usage (transcription, TTS) to AumOS audio engine with " +
			"speaker anonymisation support and DLP scanning on transcripts.",
	},
	"video": {
		Module:          "aumos-video-engine",
		Complexity:      database.ComplexityComplex,
		Hours:           decimal.RequireFromString("24.0"),
		PreservationPct: decimal.RequireFromString("80.00"),
		Description: "Migrate video AI processing to AumOS video engine with content provenance, " +
			"deepfake detection, and governed frame-level analysis.",
	},
	"embedding": {
		Module:          "aumos-context-graph",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("12.0"),
		PreservationPct: decimal.RequireFromString("88.00"),
		Description: "Replace external embedding API calls with AumOS context graph embedding " +
			"service supporting private vector stores and tenant isolation.",
	},
	"fine-tuning": {
		Module:          "aumos-llm-serving",
		Complexity:      database.ComplexityComplex,
		Hours:           decimal.RequireFromString("40.0"),
		PreservationPct: decimal.RequireFromString("75.00"),
		Description: "Migrate fine-tuning workflows to governed MLOps lifecycle with model " +
			"registry integration, training data governance, and bias evaluation.",
	},
	"document-processing": {
		Module:          "aumos-text-engine",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("10.0"),
		PreservationPct: decimal.RequireFromString("90.00"),
		Description: "Replace AI document processing with AumOS text engine OCR and " +
			"extraction capabilities featuring DLP and classification enforcement.",
	},
	"search": {
		Module:          "aumos-context-graph",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("8.0"),
		PreservationPct: decimal.RequireFromString("87.00"),
		Description: "Migrate semantic search to AumOS context graph with tenant-scoped " +
			"vector store, access control policies, and audit logging.",
	},
	"summarisation": {
		Module:          "aumos-text-engine",
		Complexity:      database.ComplexityTrivial,
		Hours:           decimal.RequireFromString("4.0"),
		PreservationPct: decimal.RequireFromString("92.00"),
		Description: "Replace summarisation API calls with AumOS text engine endpoints " +
			"that apply length and sensitivity-level constraints per tenant policy.",
	},
	"translation": {
		Module:          "aumos-text-engine",
		Complexity:      database.ComplexityTrivial,
		Hours:           decimal.RequireFromString("3.0"),
		PreservationPct: decimal.RequireFromString("95.00"),
		Description: "Route translation requests through AumOS text engine translation " +
			"service with content classification and jurisdictional compliance.",
	},
	"classification": {
		Module:          "aumos-context-graph",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("14.0"),
		PreservationPct: decimal.RequireFromString("86.00"),
		Description: "Migrate AI classification tasks to AumOS context graph with governed " +
			"label taxonomies, confidence thresholds, and explainability reports.",
	},
	"unknown": {
		Module:          "aumos-llm-serving",
		Complexity:      database.ComplexityModerate,
		Hours:           decimal.RequireFromString("8.0"),
		PreservationPct: decimal.RequireFromString("85.00"),
		Description: "Route unclassified AI API usage through governed LLM serving endpoint. " +
			"Usage pattern will be further analysed during migration planning.",
	},
}

// LookupMapping returns the migration mapping for a business-value
// indicator, falling back to the "unknown" mapping. It never fails.
func LookupMapping(indicator string) Mapping {
	if m, ok := moduleMappings[indicator]; ok {
		return m
	}
	return moduleMappings["unknown"]
}

// Indicators lists every explicitly mapped business-value indicator.
func Indicators() []string {
	out := make([]string, 0, len(moduleMappings))
	for k := range moduleMappings {
		out = append(out, k)
	}
	return out
}

// Propose builds a migration proposal for a detection based on its
// business-value indicator. The proposal is unsaved; persistence is the
// caller's concern.
func Propose(detection *database.Detection) *database.MigrationProposal {
	indicator := detection.BusinessValueIndicator
	if indicator == "" {
		indicator = "unknown"
	}
	mapping := LookupMapping(indicator)

	now := time.Now().UTC()
	return &database.MigrationProposal{
		ID:                          uuid.New(),
		TenantID:                    detection.TenantID,
		DetectionID:                 detection.ID,
		ProposedModule:              mapping.Module,
		MigrationComplexity:         mapping.Complexity,
		EstimatedMigrationHours:     mapping.Hours,
		ProductivityPreservationPct: mapping.PreservationPct,
		ComplianceGainDescription:   mapping.Description,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
}

// Summary aggregates migration effort across a set of detections.
type Summary struct {
	TotalDetections        int                           `json:"total_detections"`
	TotalEstimatedHours    decimal.Decimal               `json:"total_estimated_hours"`
	ComplexityBreakdown    map[string]int                `json:"complexity_breakdown"`
	ModuleBreakdown        map[string]int                `json:"module_breakdown"`
	AveragePreservationPct decimal.Decimal               `json:"average_preservation_pct"`
	Proposals              []*database.MigrationProposal `json:"proposals"`
}

// EstimateTotal generates one proposal per detection and accumulates
// totals for hours, complexity tiers, and module distribution. The
// preservation percentage is an arithmetic mean across proposals. Empty
// input yields an all-zero summary with an empty proposal list.
func EstimateTotal(detections []*database.Detection) Summary {
	proposals := make([]*database.MigrationProposal, 0, len(detections))
	totalHours := decimal.Zero
	totalPreservation := decimal.Zero
	complexityBreakdown := map[string]int{
		database.ComplexityTrivial:  0,
		database.ComplexityModerate: 0,
		database.ComplexityComplex:  0,
	}
	moduleBreakdown := make(map[string]int)

	for _, detection := range detections {
		proposal := Propose(detection)
		proposals = append(proposals, proposal)

		totalHours = totalHours.Add(proposal.EstimatedMigrationHours)
		totalPreservation = totalPreservation.Add(proposal.ProductivityPreservationPct)
		complexityBreakdown[proposal.MigrationComplexity]++
		moduleBreakdown[proposal.ProposedModule]++
	}

	averagePreservation := decimal.Zero.Round(2)
	if len(detections) > 0 {
		averagePreservation = totalPreservation.
			Div(decimal.NewFromInt(int64(len(detections)))).
			Round(2)
	}

	return Summary{
		TotalDetections:        len(detections),
		TotalEstimatedHours:    totalHours,
		ComplexityBreakdown:    complexityBreakdown,
		ModuleBreakdown:        moduleBreakdown,
		AveragePreservationPct: averagePreservation,
		Proposals:              proposals,
	}
}
