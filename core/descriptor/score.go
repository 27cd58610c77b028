package descriptor

import (
	schemadescriptor "github.com/davidahmann/chime/core/schema/v1/descriptor"
)

// ScoreWeights controls the compliance score blend. The weights are
// configuration, not law: deployments may rebalance them as long as they sum
// to 1.
type ScoreWeights struct {
	Evidence    float64 `json:"evidence" yaml:"evidence"`
	Capability  float64 `json:"capability" yaml:"capability"`
	Constraints float64 `json:"constraints" yaml:"constraints"`
}

// DefaultScoreWeights is the standard 0.4 evidence, 0.4 capability,
// 0.2 constraints blend.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Evidence: 0.4, Capability: 0.4, Constraints: 0.2}
}

// Valid reports whether the weights are non-negative and sum to 1 within
// floating-point tolerance.
func (w ScoreWeights) Valid() bool {
	if w.Evidence < 0 || w.Capability < 0 || w.Constraints < 0 {
		return false
	}
	sum := w.Evidence + w.Capability + w.Constraints
	return sum > 0.999999 && sum < 1.000001
}

// Score computes the compliance score: the evidence term is the provided
// fraction of required items (1.0 when nothing is required), the capability
// term is the level normalized to the 0-5 scale, and the constraints term is
// binary on whether any constraints are declared.
func (w ScoreWeights) Score(required, provided []string, capabilityLevel int, constraints []string) float64 {
	evidence := 1.0
	if len(required) > 0 {
		providedSet := make(map[string]bool, len(provided))
		for _, item := range provided {
			providedSet[item] = true
		}
		met := 0
		for _, item := range required {
			if providedSet[item] {
				met++
			}
		}
		evidence = float64(met) / float64(len(required))
	}

	capability := float64(capabilityLevel) / float64(schemadescriptor.CapabilityLevelMax)

	constraint := 0.0
	if len(constraints) > 0 {
		constraint = 1.0
	}

	score := w.Evidence*evidence + w.Capability*capability + w.Constraints*constraint
	// Floating-point rounding can nudge a maximal blend past 1.
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// EvidenceGaps returns the required items not present in provided, preserving
// required order.
func EvidenceGaps(required, provided []string) []string {
	providedSet := make(map[string]bool, len(provided))
	for _, item := range provided {
		providedSet[item] = true
	}
	gaps := []string{}
	for _, item := range required {
		if !providedSet[item] {
			gaps = append(gaps, item)
		}
	}
	return gaps
}
