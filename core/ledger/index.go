package ledger

import (
	"fmt"
	"sort"
	"sync"
)

// Entry locates one record: its id, append sequence number, and byte offset
// in the log. Entries are the only thing the index owns; record content
// always comes from the log.
type Entry struct {
	ID     string `json:"id"`
	Seq    uint64 `json:"seq"`
	Offset int64  `json:"offset"`
}

// Extractor pulls the index keys out of one raw record line: the record id
// and any secondary keys grouped by keyspace (for descriptors, the referenced
// pulse-range endpoints and the external reference strings).
type Extractor func(seq uint64, line []byte) (id string, secondary map[string][]string, err error)

// Index is the in-memory lookup structure derived from a full log scan. The
// arena is keyed by sequence number; secondary maps hold sequence numbers
// only, never record content. It is never a source of truth: a persisted
// snapshot is only a cache and is discarded on any self-check failure.
type Index struct {
	mu        sync.RWMutex
	extract   Extractor
	arena     []Entry
	byID      map[string]uint64
	secondary map[string]map[string][]uint64
}

func NewIndex(extract Extractor) *Index {
	return &Index{
		extract:   extract,
		byID:      map[string]uint64{},
		secondary: map[string]map[string][]uint64{},
	}
}

// Rebuild repopulates the index from a single full scan of the log. It is
// idempotent and touches nothing but the index itself.
func (x *Index) Rebuild(store *Store) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.arena = nil
	x.byID = map[string]uint64{}
	x.secondary = map[string]map[string][]uint64{}
	return store.ScanRaw(0, func(seq uint64, offset int64, line []byte) error {
		return x.apply(seq, offset, line)
	})
}

// Count returns the number of indexed records.
func (x *Index) Count() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return uint64(len(x.arena))
}

// ByID returns the entry for a record id.
func (x *Index) ByID(id string) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	seq, ok := x.byID[id]
	if !ok {
		return Entry{}, false
	}
	return x.arena[seq-1], true
}

// BySeq returns the entry at a sequence number.
func (x *Index) BySeq(seq uint64) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if seq == 0 || seq > uint64(len(x.arena)) {
		return Entry{}, false
	}
	return x.arena[seq-1], true
}

// Lookup returns the sequence numbers filed under a secondary key, in append
// order.
func (x *Index) Lookup(keyspace, key string) []uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	seqs := x.secondary[keyspace][key]
	out := make([]uint64, len(seqs))
	copy(out, seqs)
	return out
}

// Keys returns the distinct keys of a keyspace together with the number of
// sequences filed under each. Reports derived from index counters use this
// instead of rescanning the log.
func (x *Index) Keys(keyspace string) map[string]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	bucket := x.secondary[keyspace]
	if len(bucket) == 0 {
		return map[string]int{}
	}
	out := make(map[string]int, len(bucket))
	for key, seqs := range bucket {
		out[key] = len(seqs)
	}
	return out
}

// apply files one record. Callers hold x.mu.
func (x *Index) apply(seq uint64, offset int64, line []byte) error {
	id, secondary, err := x.extract(seq, line)
	if err != nil {
		return fmt.Errorf("extract index keys for record %d: %w", seq, err)
	}
	if seq != uint64(len(x.arena))+1 {
		return fmt.Errorf("index expects sequence %d, got %d", len(x.arena)+1, seq)
	}
	x.arena = append(x.arena, Entry{ID: id, Seq: seq, Offset: offset})
	x.byID[id] = seq
	for keyspace, keys := range secondary {
		bucket := x.secondary[keyspace]
		if bucket == nil {
			bucket = map[string][]uint64{}
			x.secondary[keyspace] = bucket
		}
		for _, key := range keys {
			if key == "" {
				continue
			}
			bucket[key] = appendUniqueSeq(bucket[key], seq)
		}
	}
	return nil
}

// Apply files one freshly appended record, keeping the index current without
// a full rebuild. Wired as a store append hook.
func (x *Index) Apply(seq uint64, offset int64, line []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.apply(seq, offset, line)
}

func appendUniqueSeq(seqs []uint64, seq uint64) []uint64 {
	position := sort.Search(len(seqs), func(i int) bool { return seqs[i] >= seq })
	if position < len(seqs) && seqs[position] == seq {
		return seqs
	}
	seqs = append(seqs, 0)
	copy(seqs[position+1:], seqs[position:])
	seqs[position] = seq
	return seqs
}
