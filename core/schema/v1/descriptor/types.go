package descriptor

const (
	SchemaID      = "chime.descriptor"
	SchemaVersion = "1.0.0"
)

// Authority is the only value the advisory block may carry. Descriptors
// describe process maturity; they never decide anything.
const Authority = "non-authoritative"

// Process outcomes.
const (
	OutcomeCompliant     = "compliant"
	OutcomeNonCompliant  = "non_compliant"
	OutcomeIndeterminate = "indeterminate"
)

// CapabilityLevelMax is the top of the ordinal capability scale (0-5).
const CapabilityLevelMax = 5

// Record is one process-maturity descriptor in the descriptor chain. It
// references a contiguous range of pulse records by id and carries opaque
// reference strings into external read-only vaults, never vault content.
type Record struct {
	SchemaID        string     `json:"schema_id"`
	SchemaVersion   string     `json:"schema_version"`
	Seq             uint64     `json:"seq"`
	ProcessName     string     `json:"process_name"`
	ProcessVersion  string     `json:"process_version"`
	CapabilityLevel int        `json:"capability_level"`
	ProcessOutcome  string     `json:"process_outcome"`
	ComplianceScore float64    `json:"compliance_score"`
	PulseRange      PulseRange `json:"pulse_range"`
	AprioriRefs     []string   `json:"apriori_refs"`
	AposterioriRefs []string   `json:"aposteriori_refs"`
	Evidence        Evidence   `json:"evidence"`
	Assessment      Assessment `json:"assessment"`
	Constraints     []string   `json:"constraints"`
	Advisory        Advisory   `json:"advisory"`
	DescriptorID    string     `json:"descriptor_id"`
	ContentHash     string     `json:"content_hash,omitempty"`
	ChainHash       string     `json:"chain_hash,omitempty"`
}

// PulseRange references a contiguous run of pulse records by id. Start and
// end may be equal for a single-pulse range.
type PulseRange struct {
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
	Count   uint64 `json:"count"`
}

// Evidence records what an assessment demanded versus what it received.
// Gaps is always required minus provided, computed at creation.
type Evidence struct {
	Required []string `json:"required"`
	Provided []string `json:"provided"`
	Gaps     []string `json:"gaps"`
}

type Assessment struct {
	AssessedBy string `json:"assessed_by"`
	Method     string `json:"method"`
	AssessedAt string `json:"assessed_at"`
}

type Advisory struct {
	Authority string `json:"authority"`
	Notes     string `json:"notes,omitempty"`
}

func (r *Record) RecordID() string {
	return r.DescriptorID
}

func (r *Record) Linkage() (contentHash, chainHash string) {
	return r.ContentHash, r.ChainHash
}

// SetLinkage stamps the chain linkage after the content digest is known. The
// descriptor id is the content hash.
func (r *Record) SetLinkage(contentHash, chainHash string) {
	r.DescriptorID = contentHash
	r.ContentHash = contentHash
	r.ChainHash = chainHash
}

func (r *Record) SetSeq(seq uint64) {
	r.Seq = seq
}

// KnownOutcome reports whether outcome is one of the recognized enumerators.
func KnownOutcome(outcome string) bool {
	switch outcome {
	case OutcomeCompliant, OutcomeNonCompliant, OutcomeIndeterminate:
		return true
	}
	return false
}
