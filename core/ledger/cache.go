package ledger

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/davidahmann/chime/core/fsx"
	"github.com/davidahmann/chime/core/hashchain"
)

const (
	cacheSchemaID      = "chime.index_cache"
	cacheSchemaVersion = "1.0.0"
	cacheFileMode      = 0o600
)

// indexCache is the persisted form of an Index. It is a derived, fully
// regenerable snapshot: it declares the log record count it was built from
// and a digest over its own contents, and is discarded whenever either check
// fails.
type indexCache struct {
	SchemaID      string                         `json:"schema_id"`
	SchemaVersion string                         `json:"schema_version"`
	RecordCount   uint64                         `json:"record_count"`
	Entries       []Entry                        `json:"entries"`
	Secondary     map[string]map[string][]uint64 `json:"secondary"`
	CacheDigest   string                         `json:"cache_digest,omitempty"`
}

// SaveCache writes the index snapshot atomically. Cache writes are best
// effort: the caller may ignore the error, since the log can always rebuild
// the index.
func (x *Index) SaveCache(path string) error {
	x.mu.RLock()
	cache := indexCache{
		SchemaID:      cacheSchemaID,
		SchemaVersion: cacheSchemaVersion,
		RecordCount:   uint64(len(x.arena)),
		Entries:       append([]Entry(nil), x.arena...),
		Secondary:     cloneSecondary(x.secondary),
	}
	x.mu.RUnlock()

	digest, err := cacheDigest(cache)
	if err != nil {
		return err
	}
	cache.CacheDigest = digest
	raw, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("serialize index cache: %w", err)
	}
	return fsx.WriteFileAtomic(path, raw, cacheFileMode)
}

// LoadCache populates the index from a cache file when, and only when, the
// cache passes its self-checks: the declared record count matches the log and
// the content digest verifies. Any failure reports false and the caller falls
// back to Rebuild; the log is always the source of truth.
func (x *Index) LoadCache(path string, logCount uint64) bool {
	// #nosec G304 -- cache path is owned by the calling layer.
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var cache indexCache
	if err := json.Unmarshal(raw, &cache); err != nil {
		return false
	}
	if cache.SchemaID != cacheSchemaID || cache.SchemaVersion != cacheSchemaVersion {
		return false
	}
	if cache.RecordCount != logCount || uint64(len(cache.Entries)) != logCount {
		return false
	}
	stored := cache.CacheDigest
	cache.CacheDigest = ""
	computed, err := cacheDigest(cache)
	if err != nil || !hashchain.EqualDigest(stored, computed) {
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.arena = cache.Entries
	x.byID = make(map[string]uint64, len(cache.Entries))
	for _, entry := range cache.Entries {
		x.byID[entry.ID] = entry.Seq
	}
	x.secondary = cache.Secondary
	if x.secondary == nil {
		x.secondary = map[string]map[string][]uint64{}
	}
	return true
}

func cacheDigest(cache indexCache) (string, error) {
	cache.CacheDigest = ""
	raw, err := json.Marshal(cache)
	if err != nil {
		return "", fmt.Errorf("serialize index cache: %w", err)
	}
	return hashchain.DigestJSON(raw)
}

func cloneSecondary(secondary map[string]map[string][]uint64) map[string]map[string][]uint64 {
	out := make(map[string]map[string][]uint64, len(secondary))
	for keyspace, bucket := range secondary {
		cloned := make(map[string][]uint64, len(bucket))
		for key, seqs := range bucket {
			cloned[key] = append([]uint64(nil), seqs...)
		}
		out[keyspace] = cloned
	}
	return out
}
