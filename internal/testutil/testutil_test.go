package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepoRootContainsGoMod(t *testing.T) {
	root := RepoRoot(t)
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("expected go.mod at repo root: %v", err)
	}
}

func TestWriteFileAndMustReadFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "output.json")
	WriteFile(t, target, []byte(`{"ok":true}`))
	got := MustReadFile(t, target)
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected file content: %q", string(got))
	}
}

func TestBuildChimeBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}
	root := RepoRoot(t)
	binPath := BuildChimeBinary(t, root)
	info, err := os.Stat(binPath)
	if err != nil {
		t.Fatalf("expected built binary to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty binary at %s", binPath)
	}
}
