package hashchain

import (
	"strings"
	"testing"
)

func TestContentHashStripsLinkageFields(t *testing.T) {
	type record struct {
		Name        string `json:"name"`
		Value       int    `json:"value"`
		ContentHash string `json:"content_hash,omitempty"`
		ChainHash   string `json:"chain_hash,omitempty"`
	}
	bare := record{Name: "alpha", Value: 7}
	linked := record{Name: "alpha", Value: 7, ContentHash: strings.Repeat("a", 64), ChainHash: strings.Repeat("b", 64)}

	bareDigest, err := ContentHash(bare)
	if err != nil {
		t.Fatalf("content hash bare: %v", err)
	}
	linkedDigest, err := ContentHash(linked)
	if err != nil {
		t.Fatalf("content hash linked: %v", err)
	}
	if bareDigest != linkedDigest {
		t.Fatalf("linkage fields leaked into digest: %s != %s", bareDigest, linkedDigest)
	}
	if err := ValidateDigest(bareDigest); err != nil {
		t.Fatalf("digest not well formed: %v", err)
	}
}

func TestContentHashStripsRecordIDs(t *testing.T) {
	withID, err := ContentHashJSON([]byte(`{"a":1,"pulse_id":"` + strings.Repeat("c", 64) + `"}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	withoutID, err := ContentHashJSON([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if withID != withoutID {
		t.Fatalf("record id fields must not feed their own digest")
	}
}

func TestCanonicalizeJSONSortsKeys(t *testing.T) {
	canonical, err := CanonicalizeJSON([]byte(`{"b": 2, "a": 1}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(canonical) != `{"a":1,"b":2}` {
		t.Fatalf("unexpected canonical form %s", canonical)
	}
}

func TestContentHashIsOrderIndependent(t *testing.T) {
	first, err := ContentHashJSON([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	second, err := ContentHashJSON([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if first != second {
		t.Fatalf("canonicalization must be key-order independent")
	}
}

func TestContentHashSensitivity(t *testing.T) {
	first, err := ContentHashJSON([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	second, err := ContentHashJSON([]byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if first == second {
		t.Fatalf("distinct content must produce distinct digests")
	}
}

func TestChainHashBindsPredecessor(t *testing.T) {
	content, err := ContentHashJSON([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	genesisLinked, err := ChainHash(content, Genesis)
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	successorLinked, err := ChainHash(content, genesisLinked)
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if genesisLinked == successorLinked {
		t.Fatalf("chain hash must depend on predecessor")
	}
}

func TestChainHashRejectsMalformedDigests(t *testing.T) {
	cases := []struct {
		name    string
		content string
		prev    string
	}{
		{name: "short content", content: "abc", prev: Genesis},
		{name: "uppercase prev", content: Genesis, prev: strings.Repeat("A", 64)},
		{name: "non-hex prev", content: Genesis, prev: strings.Repeat("z", 64)},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := ChainHash(testCase.content, testCase.prev); err == nil {
				t.Fatalf("expected malformed digest rejection")
			}
		})
	}
}

func TestValidateDigestAcceptsGenesis(t *testing.T) {
	if err := ValidateDigest(Genesis); err != nil {
		t.Fatalf("genesis must be a valid digest: %v", err)
	}
}

func TestEqualDigestIsCaseInsensitive(t *testing.T) {
	if !EqualDigest(strings.Repeat("ab", 32), strings.Repeat("AB", 32)) {
		t.Fatalf("digest comparison must ignore case")
	}
}
