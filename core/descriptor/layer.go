// Package descriptor implements the process-descriptor chain: validated
// creation with a computed compliance score, index-backed lookups, and a
// capability report over the indexed population. Descriptors reference pulse
// ranges by id and external vault material by opaque reference strings only.
package descriptor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/chime/core/errors"
	"github.com/davidahmann/chime/core/hashchain"
	"github.com/davidahmann/chime/core/ledger"
	"github.com/davidahmann/chime/core/schema/validate"
	schemadescriptor "github.com/davidahmann/chime/core/schema/v1/descriptor"
	schemapulse "github.com/davidahmann/chime/core/schema/v1/pulse"
)

// Index keyspaces. Secondary entries hold sequence numbers only.
const (
	keyspacePulse   = "pulse"
	keyspaceRef     = "ref"
	keyspaceLevel   = "level"
	keyspaceProcess = "process"
)

// PulseResolver resolves pulse ids against the pulse chain. Satisfied by
// pulse.Generator.
type PulseResolver interface {
	Get(pulseID string) (schemapulse.Record, bool, error)
}

// Options configures a descriptor layer.
type Options struct {
	// Weights overrides the default 0.4/0.4/0.2 score blend.
	Weights *ScoreWeights
	// CachePath enables the persisted index snapshot. Empty disables it.
	CachePath string
}

// Layer owns the descriptor chain store and its index.
type Layer struct {
	store     *ledger.Store
	index     *ledger.Index
	pulses    PulseResolver
	weights   ScoreWeights
	cachePath string
	now       func() time.Time
}

// Input is the caller-supplied material for one descriptor. Everything derived
// (gaps, score, ids, linkage, assessment time) is computed by Create.
type Input struct {
	ProcessName      string
	ProcessVersion   string
	CapabilityLevel  int
	ProcessOutcome   string
	PulseStartID     string
	PulseEndID       string
	AprioriRefs      []string
	AposterioriRefs  []string
	EvidenceRequired []string
	EvidenceProvided []string
	AssessedBy       string
	Method           string
	Constraints      []string
	AdvisoryNotes    string
}

// NewLayer attaches a layer to its chain store. The index is restored from the
// snapshot when one is present and passes its self-check, otherwise rebuilt
// from a full log scan.
func NewLayer(store *ledger.Store, pulses PulseResolver, opts Options) (*Layer, error) {
	if store == nil {
		return nil, fmt.Errorf("descriptor layer requires a store")
	}
	if pulses == nil {
		return nil, fmt.Errorf("descriptor layer requires a pulse resolver")
	}
	weights := DefaultScoreWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	if !weights.Valid() {
		return nil, fmt.Errorf("score weights must be non-negative and sum to 1, got %+v", weights)
	}

	index := ledger.NewIndex(extractDescriptorKeys)
	if opts.CachePath == "" || !index.LoadCache(opts.CachePath, store.Count()) {
		if err := index.Rebuild(store); err != nil {
			return nil, fmt.Errorf("rebuild descriptor index: %w", err)
		}
	}
	layer := &Layer{
		store:     store,
		index:     index,
		pulses:    pulses,
		weights:   weights,
		cachePath: opts.CachePath,
		now:       time.Now,
	}
	store.OnAppend(func(rec ledger.Record, seq uint64, offset int64, line []byte) {
		_ = index.Apply(seq, offset, line)
	})
	return layer, nil
}

// Store exposes the underlying chain store for verification and audit reads.
func (l *Layer) Store() *ledger.Store {
	return l.store
}

// Index exposes the descriptor lookup index.
func (l *Layer) Index() *ledger.Index {
	return l.index
}

// Create validates the input, resolves the pulse range, computes the evidence
// gaps and the compliance score, and appends the finished descriptor. Nothing
// reaches the log until every check passes.
func (l *Layer) Create(input Input) (schemadescriptor.Record, error) {
	none := schemadescriptor.Record{}

	processName := strings.TrimSpace(input.ProcessName)
	if processName == "" {
		return none, errors.Validation("process_name", "must not be empty")
	}
	processVersion := strings.TrimSpace(input.ProcessVersion)
	if processVersion == "" {
		return none, errors.Validation("process_version", "must not be empty")
	}
	if input.CapabilityLevel < 0 || input.CapabilityLevel > schemadescriptor.CapabilityLevelMax {
		return none, errors.Validation("capability_level", "must be between 0 and %d, got %d",
			schemadescriptor.CapabilityLevelMax, input.CapabilityLevel)
	}
	if !schemadescriptor.KnownOutcome(input.ProcessOutcome) {
		return none, errors.Validation("process_outcome", "unknown outcome %q", input.ProcessOutcome)
	}
	aprioriRefs, err := normalizeRefs("apriori_refs", input.AprioriRefs)
	if err != nil {
		return none, err
	}
	aposterioriRefs, err := normalizeRefs("aposteriori_refs", input.AposterioriRefs)
	if err != nil {
		return none, err
	}
	assessedBy := strings.TrimSpace(input.AssessedBy)
	if assessedBy == "" {
		return none, errors.Validation("assessment.assessed_by", "must not be empty")
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return none, errors.Validation("assessment.method", "must not be empty")
	}

	pulseRange, err := l.resolvePulseRange(input.PulseStartID, input.PulseEndID)
	if err != nil {
		return none, err
	}

	score := l.weights.Score(input.EvidenceRequired, input.EvidenceProvided,
		input.CapabilityLevel, input.Constraints)
	if score < 0 || score > 1 {
		return none, errors.Validation("compliance_score", "computed score %f out of [0,1]", score)
	}

	record := schemadescriptor.Record{
		SchemaID:        schemadescriptor.SchemaID,
		SchemaVersion:   schemadescriptor.SchemaVersion,
		ProcessName:     processName,
		ProcessVersion:  processVersion,
		CapabilityLevel: input.CapabilityLevel,
		ProcessOutcome:  input.ProcessOutcome,
		ComplianceScore: score,
		PulseRange:      pulseRange,
		AprioriRefs:     aprioriRefs,
		AposterioriRefs: aposterioriRefs,
		Evidence: schemadescriptor.Evidence{
			Required: emptyNotNil(input.EvidenceRequired),
			Provided: emptyNotNil(input.EvidenceProvided),
			Gaps:     EvidenceGaps(input.EvidenceRequired, input.EvidenceProvided),
		},
		Assessment: schemadescriptor.Assessment{
			AssessedBy: assessedBy,
			Method:     method,
			AssessedAt: l.now().UTC().Format(time.RFC3339),
		},
		Constraints: emptyNotNil(input.Constraints),
		Advisory: schemadescriptor.Advisory{
			Authority: schemadescriptor.Authority,
			Notes:     strings.TrimSpace(input.AdvisoryNotes),
		},
	}

	if err := l.preflight(record); err != nil {
		return none, err
	}
	if _, err := l.store.Append(&record); err != nil {
		return none, fmt.Errorf("append descriptor: %w", err)
	}
	if l.cachePath != "" {
		// The cache is only a cache; a failed snapshot costs a rebuild later.
		_ = l.index.SaveCache(l.cachePath)
	}
	return record, nil
}

// Get returns the descriptor with the given id.
func (l *Layer) Get(descriptorID string) (schemadescriptor.Record, error) {
	entry, ok := l.index.ByID(descriptorID)
	if !ok {
		return schemadescriptor.Record{}, errors.NotFound("descriptor", descriptorID)
	}
	return l.readEntry(entry)
}

// FindByPulse returns every descriptor whose pulse range starts or ends at the
// given pulse id, in append order.
func (l *Layer) FindByPulse(pulseID string) ([]schemadescriptor.Record, error) {
	return l.readSeqs(l.index.Lookup(keyspacePulse, pulseID))
}

// FindByRef returns every descriptor carrying the given external reference,
// in append order.
func (l *Layer) FindByRef(ref string) ([]schemadescriptor.Record, error) {
	return l.readSeqs(l.index.Lookup(keyspaceRef, strings.TrimSpace(ref)))
}

// CapabilityReport summarizes the indexed descriptor population. Computed from
// index counters, never a log scan.
type CapabilityReport struct {
	Total        uint64         `json:"total"`
	ByLevel      map[string]int `json:"by_level"`
	Processes    []string       `json:"processes"`
	AverageLevel float64        `json:"average_level"`
}

// Report builds the capability report.
func (l *Layer) Report() CapabilityReport {
	report := CapabilityReport{
		Total:     l.index.Count(),
		ByLevel:   l.index.Keys(keyspaceLevel),
		Processes: []string{},
	}
	for name := range l.index.Keys(keyspaceProcess) {
		report.Processes = append(report.Processes, name)
	}
	sort.Strings(report.Processes)

	counted := 0
	weighted := 0
	for level, count := range report.ByLevel {
		parsed, err := strconv.Atoi(level)
		if err != nil {
			continue
		}
		counted += count
		weighted += parsed * count
	}
	if counted > 0 {
		report.AverageLevel = float64(weighted) / float64(counted)
	}
	return report
}

// RebuildIndex forces a full index rebuild from the log and refreshes the
// snapshot when caching is enabled.
func (l *Layer) RebuildIndex() error {
	if err := l.index.Rebuild(l.store); err != nil {
		return err
	}
	if l.cachePath != "" {
		return l.index.SaveCache(l.cachePath)
	}
	return nil
}

func (l *Layer) resolvePulseRange(startID, endID string) (schemadescriptor.PulseRange, error) {
	none := schemadescriptor.PulseRange{}
	startID = strings.TrimSpace(startID)
	endID = strings.TrimSpace(endID)
	if startID == "" {
		return none, errors.Validation("pulse_range.start_id", "must not be empty")
	}
	if endID == "" {
		return none, errors.Validation("pulse_range.end_id", "must not be empty")
	}
	start, ok, err := l.pulses.Get(startID)
	if err != nil {
		return none, fmt.Errorf("resolve pulse range start: %w", err)
	}
	if !ok {
		return none, errors.Validation("pulse_range.start_id", "pulse %s not found", startID)
	}
	end, ok, err := l.pulses.Get(endID)
	if err != nil {
		return none, fmt.Errorf("resolve pulse range end: %w", err)
	}
	if !ok {
		return none, errors.Validation("pulse_range.end_id", "pulse %s not found", endID)
	}
	if start.Seq > end.Seq {
		return none, errors.Validation("pulse_range", "start pulse %d comes after end pulse %d",
			start.Seq, end.Seq)
	}
	return schemadescriptor.PulseRange{
		StartID: startID,
		EndID:   endID,
		Count:   end.Seq - start.Seq + 1,
	}, nil
}

// preflight schema-checks the record before it reaches the log. Sequence and
// ids are stamped at append time, so stand-ins that satisfy the schema are
// substituted for the check.
func (l *Layer) preflight(record schemadescriptor.Record) error {
	probe := record
	probe.Seq = 1
	probe.DescriptorID = hashchain.Genesis
	line, err := json.Marshal(&probe)
	if err != nil {
		return fmt.Errorf("serialize descriptor: %w", err)
	}
	if err := validate.DescriptorJSON(line); err != nil {
		return errors.Validation("record", "%v", err)
	}
	return nil
}

func (l *Layer) readSeqs(seqs []uint64) ([]schemadescriptor.Record, error) {
	records := make([]schemadescriptor.Record, 0, len(seqs))
	for _, seq := range seqs {
		entry, ok := l.index.BySeq(seq)
		if !ok {
			return nil, fmt.Errorf("index references missing sequence %d", seq)
		}
		record, err := l.readEntry(entry)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (l *Layer) readEntry(entry ledger.Entry) (schemadescriptor.Record, error) {
	line, err := l.store.ReadAt(entry.Offset)
	if err != nil {
		return schemadescriptor.Record{}, fmt.Errorf("read descriptor %s: %w", entry.ID, err)
	}
	var record schemadescriptor.Record
	if err := json.Unmarshal(line, &record); err != nil {
		return schemadescriptor.Record{}, fmt.Errorf("decode descriptor %s: %w", entry.ID, err)
	}
	return record, nil
}

func normalizeRefs(field string, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, errors.Validation(field, "must not be empty")
	}
	normalized := make([]string, 0, len(refs))
	for i, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			return nil, errors.Validation(field, "reference %d must not be empty", i)
		}
		normalized = append(normalized, trimmed)
	}
	return normalized, nil
}

func emptyNotNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func extractDescriptorKeys(seq uint64, line []byte) (string, map[string][]string, error) {
	var record struct {
		DescriptorID    string `json:"descriptor_id"`
		ProcessName     string `json:"process_name"`
		CapabilityLevel int    `json:"capability_level"`
		PulseRange      struct {
			StartID string `json:"start_id"`
			EndID   string `json:"end_id"`
		} `json:"pulse_range"`
		AprioriRefs     []string `json:"apriori_refs"`
		AposterioriRefs []string `json:"aposteriori_refs"`
	}
	if err := json.Unmarshal(line, &record); err != nil {
		return "", nil, err
	}
	secondary := map[string][]string{
		keyspacePulse:   {record.PulseRange.StartID, record.PulseRange.EndID},
		keyspaceRef:     append(append([]string{}, record.AprioriRefs...), record.AposterioriRefs...),
		keyspaceLevel:   {strconv.Itoa(record.CapabilityLevel)},
		keyspaceProcess: {record.ProcessName},
	}
	return record.DescriptorID, secondary, nil
}
