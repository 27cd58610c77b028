// Package hashchain computes the content and chain digests that make ledger
// records tamper evident. Content digests are SHA-256 over the RFC 8785 (JCS)
// canonical JSON of a record with its derived fields (record id, content hash,
// chain hash) removed, so the digest is stable across platforms and field
// iteration order.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Genesis is the fixed "previous chain hash" seed for the first record of a chain.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// DigestHexLen is the length of a rendered digest: 256 bits as lowercase hex.
const DigestHexLen = 64

// derivedFields are excluded from content digests: the record ids equal the
// content digest and the linkage hashes are computed from it, so all four are
// set only after the digest is known.
var derivedFields = []string{"pulse_id", "descriptor_id", "content_hash", "chain_hash"}

// CanonicalizeJSON returns the RFC 8785 (JCS) canonical form of JSON input.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// ContentHash digests a record's own fields, excluding chain linkage. The
// record is marshaled to JSON, the linkage keys are stripped, and the result
// is canonicalized before hashing, so recomputing from a stored line that
// carries both hashes reproduces the original digest.
func ContentHash(record any) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return ContentHashJSON(raw)
}

// ContentHashJSON is ContentHash over an already-serialized JSON record. Unknown
// fields are preserved in the digest, so records written by newer producers
// verify unchanged.
func ContentHashJSON(raw []byte) (string, error) {
	stripped, err := stripLinkage(raw)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(stripped)
	if err != nil {
		return "", fmt.Errorf("canonicalize record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DigestJSON canonicalizes JSON (RFC 8785) and returns its SHA-256 hex digest
// without stripping any fields. Used for self-checking derived snapshots such
// as the index cache.
func DigestJSON(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ChainHash binds a record to its predecessor: SHA-256 over the record's
// content hash concatenated with the previous record's chain hash. For the
// first record the caller passes Genesis.
func ChainHash(contentHash, prevChainHash string) (string, error) {
	if err := ValidateDigest(contentHash); err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	if err := ValidateDigest(prevChainHash); err != nil {
		return "", fmt.Errorf("previous chain hash: %w", err)
	}
	sum := sha256.Sum256([]byte(contentHash + prevChainHash))
	return hex.EncodeToString(sum[:]), nil
}

// ValidateDigest checks that a value is a well-formed lowercase hex digest.
func ValidateDigest(digest string) error {
	if len(digest) != DigestHexLen {
		return fmt.Errorf("digest must be %d hex characters, got %d", DigestHexLen, len(digest))
	}
	if strings.ToLower(digest) != digest {
		return fmt.Errorf("digest must be lowercase hex")
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return fmt.Errorf("digest must be hex: %w", err)
	}
	return nil
}

// EqualDigest compares digests case-insensitively; stored digests are always
// written lowercase but readers stay tolerant.
func EqualDigest(first, second string) bool {
	return strings.EqualFold(first, second)
}

func stripLinkage(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	for _, key := range derivedFields {
		delete(fields, key)
	}
	stripped, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("reserialize record: %w", err)
	}
	return stripped, nil
}
