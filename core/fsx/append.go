package fsx

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppendLine appends exactly one record line to an append-only log. The
// caller provides the serialized record without its trailing newline; the
// newline is added here and the file is fsync'd before the append is treated
// as committed. A failure mid-write can leave a truncated trailing line,
// which readers must detect and exclude; a record is committed only when this
// function returns nil.
func AppendLine(path string, line []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	if parent != "." && parent != "" {
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	payload := make([]byte, 0, len(line)+1)
	payload = append(payload, line...)
	payload = append(payload, '\n')

	// #nosec G304 -- log path is provided by the owning store.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if _, err := file.Write(payload); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
