package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExactMatches(t *testing.T) {
	cases := map[string]string{
		"api.openai.com":                    "openai",
		"api.anthropic.com":                 "anthropic",
		"generativelanguage.googleapis.com": "google",
		"api.cohere.ai":                     "cohere",
		"api.mistral.ai":                    "mistral",
		"huggingface.co":                    "huggingface",
		"api.deepseek.com":                  "deepseek",
		"api.x.ai":                          "xai",
		"pi.ai":                             "inflection",
		"api.copy.ai":                       "copy-ai",
		"bedrock-runtime.us-east-1.amazonaws.com": "aws-bedrock",
	}

	for domain, want := range cases {
		provider, ok := Resolve(domain)
		require.True(t, ok, "expected %s to resolve", domain)
		assert.Equal(t, want, provider, "provider mismatch for %s", domain)
	}
}

func TestResolve_Normalization(t *testing.T) {
	provider, ok := Resolve("  API.OpenAI.com  ")
	require.True(t, ok)
	assert.Equal(t, "openai", provider)
}

func TestResolve_WildcardSuffix(t *testing.T) {
	t.Run("subdomain matches", func(t *testing.T) {
		provider, ok := Resolve("foo.openai.azure.com")
		require.True(t, ok)
		assert.Equal(t, "azure-openai", provider)
	})

	t.Run("deep subdomain matches", func(t *testing.T) {
		provider, ok := Resolve("my-org.region.openai.azure.com")
		require.True(t, ok)
		assert.Equal(t, "azure-openai", provider)
	})

	t.Run("bare base domain does not match", func(t *testing.T) {
		_, ok := Resolve("openai.azure.com")
		assert.False(t, ok)
	})
}

func TestResolve_Unknown(t *testing.T) {
	for _, domain := range []string{"github.com", "example.com", "internal.corp", ""} {
		_, ok := Resolve(domain)
		assert.False(t, ok, "expected %q to be absent", domain)
	}
}

func TestRegistryCoverage(t *testing.T) {
	// The registry is a compliance artifact spanning all tracked providers.
	assert.GreaterOrEqual(t, Size(), 75)
}
