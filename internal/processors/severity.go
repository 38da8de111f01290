package processors

import (
	"strconv"
	"strings"

	"radar/internal/types"
)

var severityWords = map[string]int{
	"critical":      5,
	"high":          4,
	"medium":        3,
	"moderate":      3,
	"low":           2,
	"minimal":       1,
	"info":          1,
	"informational": 1,
	"none":          1,
}

// ParseSeverity maps a model's severity label to 1..5. It is total: a label
// it does not recognize maps to 1 and ok reports false so the caller can log it.
func ParseSeverity(label string) (severity int, ok bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if v, found := severityWords[key]; found {
		return v, true
	}

	if f, err := strconv.ParseFloat(key, 64); err == nil {
		n := int(f)
		if float64(n) == f && n >= types.MinSeverity && n <= types.MaxSeverity {
			return n, true
		}
	}

	return types.MinSeverity, false
}

// ParseAttackType matches case and separator insensitively; anything else is Other.
func ParseAttackType(label string) types.AttackType {
	key := normalizeLabel(label)
	for _, t := range types.AttackTypes {
		if normalizeLabel(string(t)) == key {
			return t
		}
	}
	return types.AttackOther
}

// ParseModalities drops unknown values and defaults to Text when none remain.
func ParseModalities(labels []string) []types.Modality {
	seen := make(map[types.Modality]bool)
	var out []types.Modality
	for _, label := range labels {
		key := normalizeLabel(label)
		if key == "multimodal" {
			key = normalizeLabel(string(types.ModalityMultiModal))
		}
		for _, m := range types.Modalities {
			if normalizeLabel(string(m)) == key && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		return []types.Modality{types.ModalityText}
	}
	return out
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
