// Package audit reconstructs the story of a process run from the two chains:
// what ran, why it ran, how it ran, and what was learned. The trail carries
// opaque vault pointers for external material; it never dereferences them.
package audit

import (
	"fmt"

	schemadescriptor "github.com/davidahmann/chime/core/schema/v1/descriptor"
	schemapulse "github.com/davidahmann/chime/core/schema/v1/pulse"
)

// DescriptorSource resolves descriptor ids. Satisfied by descriptor.Layer;
// a missing id surfaces as its not_found error.
type DescriptorSource interface {
	Get(descriptorID string) (schemadescriptor.Record, error)
}

// PulseResolver resolves pulse ids. Satisfied by pulse.Generator.
type PulseResolver interface {
	Get(pulseID string) (schemapulse.Record, bool, error)
}

// Trail is a reconstructed audit narrative for one descriptor.
type Trail struct {
	DescriptorID string   `json:"descriptor_id"`
	What         What     `json:"what"`
	Why          Why      `json:"why"`
	How          How      `json:"how"`
	Learned      Learned  `json:"learned"`
	Pointers     []string `json:"vault_pointers"`
}

// What identifies the process and its assessed standing.
type What struct {
	ProcessName     string  `json:"process_name"`
	ProcessVersion  string  `json:"process_version"`
	CapabilityLevel int     `json:"capability_level"`
	ProcessOutcome  string  `json:"process_outcome"`
	ComplianceScore float64 `json:"compliance_score"`
}

// Why names the declared intent: the a-priori material and the constraints the
// process ran under.
type Why struct {
	AprioriRefs []string `json:"apriori_refs"`
	Constraints []string `json:"constraints"`
	Advisory    string   `json:"advisory,omitempty"`
}

// How records the assessment mechanics and the time window, anchored to the
// pulse chain.
type How struct {
	AssessedBy string `json:"assessed_by"`
	Method     string `json:"method"`
	AssessedAt string `json:"assessed_at"`
	PulseCount uint64 `json:"pulse_count"`
	StartPulse Anchor `json:"start_pulse"`
	EndPulse   Anchor `json:"end_pulse"`
}

// Anchor is one resolved end of the pulse range. Resolved is false when the
// referenced pulse is no longer readable; the id is still reported.
type Anchor struct {
	PulseID     string `json:"pulse_id"`
	Resolved    bool   `json:"resolved"`
	UTCISO      string `json:"utc_iso,omitempty"`
	MonotonicNS int64  `json:"monotonic_ns,omitempty"`
}

// Learned records what came out: the a-posteriori material and the evidence
// still missing.
type Learned struct {
	AposterioriRefs []string `json:"aposteriori_refs"`
	EvidenceGaps    []string `json:"evidence_gaps"`
}

// Reconstructor joins the descriptor and pulse chains into trails.
type Reconstructor struct {
	descriptors DescriptorSource
	pulses      PulseResolver
}

func NewReconstructor(descriptors DescriptorSource, pulses PulseResolver) *Reconstructor {
	return &Reconstructor{descriptors: descriptors, pulses: pulses}
}

// Reconstruct builds the trail for one descriptor. An unknown id propagates
// the descriptor source's not_found error unchanged.
func (r *Reconstructor) Reconstruct(descriptorID string) (Trail, error) {
	record, err := r.descriptors.Get(descriptorID)
	if err != nil {
		return Trail{}, err
	}

	start, err := r.anchor(record.PulseRange.StartID)
	if err != nil {
		return Trail{}, err
	}
	end, err := r.anchor(record.PulseRange.EndID)
	if err != nil {
		return Trail{}, err
	}

	pointers := make([]string, 0, len(record.AprioriRefs)+len(record.AposterioriRefs))
	pointers = append(pointers, record.AprioriRefs...)
	pointers = append(pointers, record.AposterioriRefs...)

	return Trail{
		DescriptorID: record.DescriptorID,
		What: What{
			ProcessName:     record.ProcessName,
			ProcessVersion:  record.ProcessVersion,
			CapabilityLevel: record.CapabilityLevel,
			ProcessOutcome:  record.ProcessOutcome,
			ComplianceScore: record.ComplianceScore,
		},
		Why: Why{
			AprioriRefs: record.AprioriRefs,
			Constraints: record.Constraints,
			Advisory:    record.Advisory.Notes,
		},
		How: How{
			AssessedBy: record.Assessment.AssessedBy,
			Method:     record.Assessment.Method,
			AssessedAt: record.Assessment.AssessedAt,
			PulseCount: record.PulseRange.Count,
			StartPulse: start,
			EndPulse:   end,
		},
		Learned: Learned{
			AposterioriRefs: record.AposterioriRefs,
			EvidenceGaps:    record.Evidence.Gaps,
		},
		Pointers: pointers,
	}, nil
}

func (r *Reconstructor) anchor(pulseID string) (Anchor, error) {
	record, ok, err := r.pulses.Get(pulseID)
	if err != nil {
		return Anchor{}, fmt.Errorf("resolve pulse %s: %w", pulseID, err)
	}
	if !ok {
		return Anchor{PulseID: pulseID}, nil
	}
	return Anchor{
		PulseID:     pulseID,
		Resolved:    true,
		UTCISO:      record.UTCISO,
		MonotonicNS: record.MonotonicNS,
	}, nil
}
