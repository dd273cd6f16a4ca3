package detection

import (
	"math"

	"github.com/shopspring/decimal"
)

// sensitivityWeights maps sensitivity tiers to their contribution weight.
var sensitivityWeights = map[string]float64{
	SensitivityLow:      0.1,
	SensitivityMedium:   0.4,
	SensitivityHigh:     0.75,
	SensitivityCritical: 1.0,
}

// providerRiskWeights is a per-provider jurisdiction/DPA-coverage proxy.
// Higher risk means the provider has fewer data processing agreements in
// typical enterprises. Like the domain registry, this is a compliance
// artifact maintained as literal data.
var providerRiskWeights = map[string]float64{
	"openai":       0.6,
	"anthropic":    0.5,
	"google":       0.5,
	"azure-openai": 0.3, // Often covered by enterprise agreements
	"aws-bedrock":  0.3,
	"cohere":       0.6,
	"mistral":      0.7,
	"huggingface":  0.7,
	"replicate":    0.8,
	"together":     0.8,
	"perplexity":   0.8,
	"groq":         0.7,
	"deepseek":     0.9, // Non-EU/US jurisdiction flag
	"xai":          0.7,
	"stability":    0.6,
	"elevenlabs":   0.6,
	"midjourney":   0.7,
	"runway":       0.7,
	"character-ai": 0.9,
	"openrouter":   0.8,
	"fireworks":    0.7,
	"anyscale":     0.6,
	"lepton":       0.8,
	"aleph-alpha":  0.4, // EU-based, typically better coverage
	"ai21":         0.7,
	"inflection":   0.8,
	"novita":       0.9,
	"cerebras":     0.6,
	"scale":        0.5,
	"writer":       0.6,
	"jasper":       0.7,
	"copy-ai":      0.7,
}

const defaultProviderRisk = 0.8

// ComputeRiskScore produces a composite compliance risk score on the
// 0.00-100.00 scale, rounded to two decimals.
//
// Formula:
//
//	raw = sensitivity_weight*0.4 + compliance_risk*0.4 + provider_risk*0.2
//	score = min(raw*100, 100.0)
//
// compliance_risk starts at 0.6 when an auth header was observed (active
// API usage) and 0.3 otherwise, with a +0.2 bump capped at 1.0 for high or
// critical sensitivity. Unknown sensitivity defaults to the low weight;
// unknown providers default to 0.8. The function is pure: identical inputs
// always yield identical output.
func ComputeRiskScore(sensitivity, provider string, hasAuthHeader bool) decimal.Decimal {
	sensitivityWeight, ok := sensitivityWeights[sensitivity]
	if !ok {
		sensitivityWeight = sensitivityWeights[SensitivityLow]
	}

	complianceRisk := 0.3
	if hasAuthHeader {
		complianceRisk = 0.6
	}
	if sensitivity == SensitivityHigh || sensitivity == SensitivityCritical {
		complianceRisk = math.Min(complianceRisk+0.2, 1.0)
	}

	providerRisk, ok := providerRiskWeights[provider]
	if !ok {
		providerRisk = defaultProviderRisk
	}

	raw := sensitivityWeight*0.4 + complianceRisk*0.4 + providerRisk*0.2
	score := math.Min(raw*100.0, 100.0)

	return decimal.NewFromFloat(score).Round(2)
}
