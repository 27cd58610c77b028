package audit

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/davidahmann/chime/core/descriptor"
	"github.com/davidahmann/chime/core/errors"
	"github.com/davidahmann/chime/core/ledger"
	"github.com/davidahmann/chime/core/pulse"
	schemadescriptor "github.com/davidahmann/chime/core/schema/v1/descriptor"
)

func newReconstructorFixture(t *testing.T) (*Reconstructor, *descriptor.Layer, []string) {
	t.Helper()
	dir := t.TempDir()
	pulseStore, err := ledger.Open(filepath.Join(dir, "pulses.jsonl"))
	if err != nil {
		t.Fatalf("open pulse store: %v", err)
	}
	generator, err := pulse.NewGenerator(pulseStore, "test-node")
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	var pulseIDs []string
	for i := 0; i < 2; i++ {
		record, err := generator.Pulse()
		if err != nil {
			t.Fatalf("pulse: %v", err)
		}
		pulseIDs = append(pulseIDs, record.PulseID)
	}
	descriptorStore, err := ledger.Open(filepath.Join(dir, "descriptors.jsonl"))
	if err != nil {
		t.Fatalf("open descriptor store: %v", err)
	}
	layer, err := descriptor.NewLayer(descriptorStore, generator, descriptor.Options{})
	if err != nil {
		t.Fatalf("new layer: %v", err)
	}
	return NewReconstructor(layer, generator), layer, pulseIDs
}

func TestReconstructBuildsAllSections(t *testing.T) {
	reconstructor, layer, pulseIDs := newReconstructorFixture(t)
	created, err := layer.Create(descriptor.Input{
		ProcessName:      "release-review",
		ProcessVersion:   "2.1.0",
		CapabilityLevel:  4,
		ProcessOutcome:   schemadescriptor.OutcomeCompliant,
		PulseStartID:     pulseIDs[0],
		PulseEndID:       pulseIDs[1],
		AprioriRefs:      []string{"vault://plans/release-review"},
		AposterioriRefs:  []string{"vault://results/run-42"},
		EvidenceRequired: []string{"design-doc", "test-report"},
		EvidenceProvided: []string{"design-doc"},
		AssessedBy:       "auditor",
		Method:           "manual",
		Constraints:      []string{"two-person-review"},
		AdvisoryNotes:    "descriptive only",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	trail, err := reconstructor.Reconstruct(created.DescriptorID)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if trail.DescriptorID != created.DescriptorID {
		t.Fatalf("trail names the wrong descriptor")
	}
	if trail.What.ProcessName != "release-review" || trail.What.ComplianceScore != created.ComplianceScore {
		t.Fatalf("what section wrong: %+v", trail.What)
	}
	if !reflect.DeepEqual(trail.Why.AprioriRefs, []string{"vault://plans/release-review"}) ||
		trail.Why.Advisory != "descriptive only" {
		t.Fatalf("why section wrong: %+v", trail.Why)
	}
	if trail.How.Method != "manual" || trail.How.PulseCount != 2 {
		t.Fatalf("how section wrong: %+v", trail.How)
	}
	if !trail.How.StartPulse.Resolved || !trail.How.EndPulse.Resolved {
		t.Fatalf("range anchors must resolve against the pulse chain: %+v", trail.How)
	}
	if trail.How.StartPulse.MonotonicNS >= trail.How.EndPulse.MonotonicNS {
		t.Fatalf("anchors must preserve pulse ordering: %+v", trail.How)
	}
	if !reflect.DeepEqual(trail.Learned.EvidenceGaps, []string{"test-report"}) {
		t.Fatalf("learned section wrong: %+v", trail.Learned)
	}
}

func TestReconstructPointersAreOpaque(t *testing.T) {
	reconstructor, layer, pulseIDs := newReconstructorFixture(t)
	created, err := layer.Create(descriptor.Input{
		ProcessName:     "release-review",
		ProcessVersion:  "1.0.0",
		CapabilityLevel: 1,
		ProcessOutcome:  schemadescriptor.OutcomeIndeterminate,
		PulseStartID:    pulseIDs[0],
		PulseEndID:      pulseIDs[0],
		AprioriRefs:     []string{"vault://plans/a", "vault://plans/b"},
		AposterioriRefs: []string{"vault://results/c"},
		AssessedBy:      "auditor",
		Method:          "manual",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	trail, err := reconstructor.Reconstruct(created.DescriptorID)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	want := []string{"vault://plans/a", "vault://plans/b", "vault://results/c"}
	if !reflect.DeepEqual(trail.Pointers, want) {
		t.Fatalf("pointers must list every ref verbatim, got %v", trail.Pointers)
	}
}

func TestReconstructUnknownDescriptor(t *testing.T) {
	reconstructor, _, _ := newReconstructorFixture(t)
	_, err := reconstructor.Reconstruct("0000000000000000000000000000000000000000000000000000000000000003")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
