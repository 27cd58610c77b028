package fsx

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("write second: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "second" {
		t.Fatalf("expected replaced content, got %q", content)
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	if err := WriteFileAtomic(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, got %d entries", len(entries))
	}
}

func TestAppendLineAddsOneRecordPerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain", "pulse.jsonl")
	if err := AppendLine(path, []byte(`{"seq":1}`), 0o600); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := AppendLine(path, []byte(`{"seq":2}`), 0o600); err != nil {
		t.Fatalf("append second: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := bytes.Split(bytes.TrimSuffix(content, []byte("\n")), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if string(lines[1]) != `{"seq":2}` {
		t.Fatalf("unexpected second record: %q", lines[1])
	}
}

func TestAppendLineCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "chain.jsonl")
	if err := AppendLine(path, []byte(`{"seq":1}`), 0o600); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log not created: %v", err)
	}
}
