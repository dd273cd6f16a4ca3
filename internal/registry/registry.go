// Package registry maps known AI API domains to their canonical provider
// identifiers. The table is a versioned compliance artifact: entries are
// maintained as literal data and must not be derived or abbreviated.
//
// Wildcard patterns ("*.openai.azure.com", "prefix.*") are matched by
// suffix/prefix logic in Resolve.
package registry

import "strings"

// exactDomains maps fully-qualified AI API domains to provider identifiers.
var exactDomains = map[string]string{
	// OpenAI
	"api.openai.com":      "openai",
	"chat.openai.com":     "openai",
	"platform.openai.com": "openai",
	"oaidalleapiprodscus.blob.core.windows.net": "openai",
	"openaiapi-prod.azure-api.net":              "openai",

	// Anthropic
	"api.anthropic.com": "anthropic",
	"claude.ai":         "anthropic",

	// Google AI / Vertex AI
	"generativelanguage.googleapis.com":        "google",
	"aiplatform.googleapis.com":                "google",
	"us-central1-aiplatform.googleapis.com":    "google",
	"europe-west1-aiplatform.googleapis.com":   "google",
	"asia-east1-aiplatform.googleapis.com":     "google",
	"bard.google.com":                          "google",
	"makersuite.google.com":                    "google",

	// AWS Bedrock (regional endpoints; wildcard form below covers the rest)
	"bedrock-runtime.us-east-1.amazonaws.com":      "aws-bedrock",
	"bedrock-runtime.us-west-2.amazonaws.com":      "aws-bedrock",
	"bedrock-runtime.eu-west-1.amazonaws.com":      "aws-bedrock",
	"bedrock-runtime.ap-southeast-1.amazonaws.com": "aws-bedrock",
	"bedrock-runtime.ap-northeast-1.amazonaws.com": "aws-bedrock",

	// Cohere
	"api.cohere.ai":         "cohere",
	"api.cohere.com":        "cohere",
	"dashboard.cohere.com":  "cohere",
	"compass.cohere.com":    "cohere",

	// Mistral AI
	"api.mistral.ai":     "mistral",
	"console.mistral.ai": "mistral",

	// Hugging Face
	"api-inference.huggingface.co": "huggingface",
	"router.huggingface.co":        "huggingface",
	"huggingface.co":               "huggingface",

	// Replicate
	"api.replicate.com": "replicate",
	"replicate.com":     "replicate",

	// Together AI
	"api.together.xyz": "together",
	"api.together.ai":  "together",

	// Perplexity AI
	"api.perplexity.ai": "perplexity",
	"www.perplexity.ai": "perplexity",

	// Groq
	"api.groq.com":     "groq",
	"console.groq.com": "groq",

	// DeepSeek
	"api.deepseek.com":      "deepseek",
	"platform.deepseek.com": "deepseek",

	// xAI / Grok
	"api.x.ai": "xai",
	"x.ai":     "xai",

	// Stability AI
	"api.stability.ai":      "stability",
	"platform.stability.ai": "stability",

	// ElevenLabs
	"api.elevenlabs.io": "elevenlabs",
	"elevenlabs.io":     "elevenlabs",

	// Midjourney
	"api.midjourney.com": "midjourney",
	"discord.com":        "midjourney", // Midjourney bot channel, ambiguous; flagged for review

	// RunwayML
	"api.runwayml.com": "runway",
	"runwayml.com":     "runway",

	// Character AI
	"api.character.ai":  "character-ai",
	"plus.character.ai": "character-ai",

	// OpenRouter (multi-provider proxy)
	"openrouter.ai":     "openrouter",
	"api.openrouter.ai": "openrouter",

	// Fireworks AI
	"api.fireworks.ai": "fireworks",
	"app.fireworks.ai": "fireworks",

	// Anyscale
	"api.endpoints.anyscale.com": "anyscale",
	"console.anyscale.com":       "anyscale",

	// Lepton AI
	"api.lepton.ai": "lepton",

	// Aleph Alpha
	"api.aleph-alpha.com": "aleph-alpha",

	// AI21 Labs
	"api.ai21.com":    "ai21",
	"studio.ai21.com": "ai21",

	// Inflection AI (Pi)
	"api.inflection.ai": "inflection",
	"pi.ai":             "inflection",

	// NovitaAI
	"api.novita.ai": "novita",

	// Cerebras
	"api.cerebras.ai":       "cerebras",
	"inference.cerebras.ai": "cerebras",

	// Scale AI / Spellbook
	"api.scale.com":       "scale",
	"spellbook.scale.com": "scale",

	// Writer
	"api.writer.com": "writer",
	"app.writer.com": "writer",

	// Jasper AI
	"api.jasper.ai": "jasper",
	"app.jasper.ai": "jasper",

	// Copy.ai
	"api.copy.ai": "copy-ai",
	"app.copy.ai": "copy-ai",
}

// wildcardEntry is a pattern that needs suffix or prefix matching.
type wildcardEntry struct {
	Pattern  string
	Provider string
}

// wildcardDomains holds patterns containing "*". Order matters: the first
// matching pattern wins.
var wildcardDomains = []wildcardEntry{
	{Pattern: "*.openai.azure.com", Provider: "azure-openai"},
	{Pattern: "*.bedrock-runtime.*.amazonaws.com", Provider: "aws-bedrock"},
}

// Resolve maps a domain to its canonical AI provider identifier.
//
// The input is lower-cased and trimmed. Exact matches are tried first; on a
// miss, wildcard patterns are evaluated in order. A "*.suffix" pattern
// matches only domains strictly longer than the suffix, so the bare base
// domain never matches. Absence is a normal outcome for non-AI traffic:
// Resolve returns ("", false) rather than an error.
func Resolve(domain string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return "", false
	}

	if provider, ok := exactDomains[d]; ok {
		return provider, true
	}

	for _, entry := range wildcardDomains {
		switch {
		case strings.HasPrefix(entry.Pattern, "*."):
			suffix := entry.Pattern[2:]
			if strings.HasSuffix(d, suffix) && d != suffix {
				return entry.Provider, true
			}
		case strings.HasSuffix(entry.Pattern, ".*"):
			prefix := entry.Pattern[:len(entry.Pattern)-2]
			if strings.HasPrefix(d, prefix+".") {
				return entry.Provider, true
			}
		}
	}

	return "", false
}

// Size reports how many domain patterns the registry holds.
func Size() int {
	return len(exactDomains) + len(wildcardDomains)
}
