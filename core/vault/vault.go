// Package vault defines the read-only contract for the external stores that
// descriptor references point into. The ledger core never writes through this
// interface; resolution happens only at the edges, on explicit request.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidahmann/chime/core/errors"
)

// Scheme prefixes a well-formed vault reference.
const Scheme = "vault://"

// Reader resolves opaque vault references to their content. Implementations
// must be read-only; an absent reference returns a not_found error.
type Reader interface {
	Read(ref string) ([]byte, error)
}

// Dir is a Reader over a directory tree: vault://plans/x resolves to
// <root>/plans/x. Escapes out of the root are rejected.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Read(ref string) ([]byte, error) {
	relative, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- resolve confines the path to the vault root.
	content, err := os.ReadFile(filepath.Join(d.root, relative))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("vault reference", ref)
		}
		return nil, fmt.Errorf("read vault reference %s: %w", ref, err)
	}
	return content, nil
}

func (d *Dir) resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, Scheme) {
		return "", errors.Validation("ref", "must start with %s, got %q", Scheme, ref)
	}
	relative := filepath.FromSlash(strings.TrimPrefix(trimmed, Scheme))
	if relative == "" {
		return "", errors.Validation("ref", "must name a vault path")
	}
	clean := filepath.Clean(relative)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errors.Validation("ref", "escapes the vault root: %q", ref)
	}
	return clean, nil
}
