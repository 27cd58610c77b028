package pulse

import "time"

const (
	SchemaID      = "chime.pulse"
	SchemaVersion = "1.0.0"
)

// Record is one multi-domain timestamp in the pulse chain. All time-domain
// fields are derived once at creation from a single monotonic reading and a
// single wall reading; they are never recomputed. MonotonicNS is the
// authoritative ordering field; the wall-derived domains are display only.
type Record struct {
	SchemaID      string  `json:"schema_id"`
	SchemaVersion string  `json:"schema_version"`
	Seq           uint64  `json:"seq"`
	SourceNode    string  `json:"source_node"`
	BootID        string  `json:"boot_id"`
	MonotonicNS   int64   `json:"monotonic_ns"`
	UTCISO        string  `json:"utc_iso"`
	UTCUnix       float64 `json:"utc_unix"`
	TAINS         int64   `json:"tai_ns"`
	ETSeconds     float64 `json:"et_s"`
	EpochDays     float64 `json:"epoch_days"`
	JulianDate    float64 `json:"julian_date"`
	PulseID       string  `json:"pulse_id"`
	ContentHash   string  `json:"content_hash,omitempty"`
	ChainHash     string  `json:"chain_hash,omitempty"`
}

func (r *Record) RecordID() string {
	return r.PulseID
}

func (r *Record) Linkage() (contentHash, chainHash string) {
	return r.ContentHash, r.ChainHash
}

// SetLinkage stamps the chain linkage after the content digest is known. The
// pulse id is the content hash: the record is identified by what it says.
func (r *Record) SetLinkage(contentHash, chainHash string) {
	r.PulseID = contentHash
	r.ContentHash = contentHash
	r.ChainHash = chainHash
}

func (r *Record) SetSeq(seq uint64) {
	r.Seq = seq
}

// UTCTime parses the stored display timestamp. Failures return the zero time;
// the monotonic counter remains the ordering authority either way.
func (r *Record) UTCTime() time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, r.UTCISO)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
