package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySensitivity_DecisionList(t *testing.T) {
	cases := []struct {
		name string
		path string
		size int64
		want string
	}{
		{"fine-tuning path overrides tiny size", "/v1/fine_tuning/jobs", 200, SensitivityCritical},
		{"fine-tunes path at size zero", "/fine-tunes", 0, SensitivityCritical},
		{"training path", "/training/upload", 100, SensitivityCritical},
		{"very large payload", "/anything", 131_072, SensitivityCritical},
		{"just under critical threshold", "/anything", 131_071, SensitivityHigh},
		{"large payload", "/anything", 32_768, SensitivityHigh},
		{"inference path with moderate payload", "/v1/chat/completions", 4_096, SensitivityHigh},
		{"inference path with small payload", "/v1/chat/completions", 2_048, SensitivityMedium},
		{"messages path small", "/v1/messages", 100, SensitivityMedium},
		{"moderate payload unknown path", "/health", 4_096, SensitivityMedium},
		{"tiny payload unknown path", "/health", 100, SensitivityLow},
		{"empty path zero size", "", 0, SensitivityLow},
		{"mixed case path", "/V1/Chat/Completions", 2_048, SensitivityMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySensitivity(tc.path, tc.size))
		})
	}
}

func TestClassifySensitivity_MonotonicInSize(t *testing.T) {
	rank := map[string]int{
		SensitivityLow:      0,
		SensitivityMedium:   1,
		SensitivityHigh:     2,
		SensitivityCritical: 3,
	}

	// For a fixed non-fine-tuning path, increasing size never lowers the tier.
	for _, path := range []string{"", "/health", "/v1/chat/completions", "/v1/embeddings"} {
		prev := -1
		for _, size := range []int64{0, 100, 2_048, 4_096, 10_000, 32_768, 100_000, 131_072, 1 << 20} {
			tier := ClassifySensitivity(path, size)
			assert.GreaterOrEqual(t, rank[tier], prev,
				"tier decreased for path %q at size %d", path, size)
			prev = rank[tier]
		}
	}
}
