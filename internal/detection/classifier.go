package detection

import "strings"

// Data sensitivity tiers, lowest to highest.
const (
	SensitivityLow      = "low"
	SensitivityMedium   = "medium"
	SensitivityHigh     = "high"
	SensitivityCritical = "critical"
)

// Request size thresholds (bytes) for escalating sensitivity.
const (
	mediumSensitivityBytes   = 4_096   // 4 KiB
	highSensitivityBytes     = 32_768  // 32 KiB
	criticalSensitivityBytes = 131_072 // 128 KiB
)

// criticalPathFragments mark fine-tuning or training endpoints. These are
// always critical regardless of payload size.
var criticalPathFragments = []string{
	"/fine-tunes",
	"/fine_tuning",
	"/training",
}

// highSensitivityPathFragments are known inference endpoints that carry
// user-authored content.
var highSensitivityPathFragments = []string{
	"/v1/chat/completions",
	"/v1/completions",
	"/v1/embeddings",
	"/messages",
	"/generate",
	"/invoke",
	"/fine-tunes",
	"/fine_tuning",
	"/assistants",
	"/threads",
	"/runs",
}

// sensitivityRule is one (predicate, tier) pair of the classification
// decision list.
type sensitivityRule struct {
	name    string
	matches func(path string, sizeBytes int64) bool
	tier    string
}

// sensitivityRules is an ordered decision list: rules are evaluated
// top-to-bottom and the first match wins. The ordering encodes the override
// semantics (a 200-byte request to a fine-tuning path is still critical),
// so it must not be rearranged.
var sensitivityRules = []sensitivityRule{
	{
		name:    "fine-tuning path",
		matches: func(path string, _ int64) bool { return containsAny(path, criticalPathFragments) },
		tier:    SensitivityCritical,
	},
	{
		name:    "very large payload",
		matches: func(_ string, size int64) bool { return size >= criticalSensitivityBytes },
		tier:    SensitivityCritical,
	},
	{
		name:    "large payload",
		matches: func(_ string, size int64) bool { return size >= highSensitivityBytes },
		tier:    SensitivityHigh,
	},
	{
		name: "inference path with moderate payload",
		matches: func(path string, size int64) bool {
			return containsAny(path, highSensitivityPathFragments) && size >= mediumSensitivityBytes
		},
		tier: SensitivityHigh,
	},
	{
		name:    "inference path",
		matches: func(path string, _ int64) bool { return containsAny(path, highSensitivityPathFragments) },
		tier:    SensitivityMedium,
	},
	{
		name:    "moderate payload",
		matches: func(_ string, size int64) bool { return size >= mediumSensitivityBytes },
		tier:    SensitivityMedium,
	},
}

// ClassifySensitivity estimates the data sensitivity of a request from its
// URL path and payload size. Minimal traffic to unrecognized paths
// classifies as low.
func ClassifySensitivity(urlPath string, sizeBytes int64) string {
	path := strings.ToLower(urlPath)
	for _, rule := range sensitivityRules {
		if rule.matches(path, sizeBytes) {
			return rule.tier
		}
	}
	return SensitivityLow
}

func containsAny(s string, fragments []string) bool {
	for _, frag := range fragments {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
