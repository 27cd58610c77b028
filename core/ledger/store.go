// Package ledger implements the append-only, hash-chained log store shared by
// the pulse and descriptor chains: durable appends, lazy ordered reads, the
// in-memory index rebuilt from the log, and full-chain verification. The log
// file is the only source of truth; everything else is derived.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/davidahmann/chime/core/errors"
	"github.com/davidahmann/chime/core/fsx"
	"github.com/davidahmann/chime/core/hashchain"
)

const logFileMode = 0o600

// maxRecordBytes bounds a single serialized record line.
const maxRecordBytes = 4 * 1024 * 1024

// Record is one chain-linked ledger record variant. The closed set of
// implementations lives under core/schema/v1.
type Record interface {
	RecordID() string
	Linkage() (contentHash, chainHash string)
	SetLinkage(contentHash, chainHash string)
	SetSeq(seq uint64)
}

// AppendHook observes a committed append. Hooks run under the store's write
// lock and must not append to the same store.
type AppendHook func(rec Record, seq uint64, offset int64, line []byte)

// Store is a single chain's append-only log. One writer at a time; readers
// scan the file directly and may miss the very latest record, never see a
// partial one.
type Store struct {
	mu    sync.Mutex
	path  string
	count uint64
	tail  string
	hooks []AppendHook
}

// Open attaches to a chain log, creating an empty one on first use. The tail
// chain hash and record count are recovered by scanning the log; a truncated
// trailing line is excluded and reported through TailWarning, never fatal.
func Open(path string) (*Store, error) {
	store := &Store{path: path}
	err := store.scan(0, func(seq uint64, offset int64, line []byte) error {
		store.count = seq
		var linkage struct {
			ChainHash string `json:"chain_hash"`
		}
		if json.Unmarshal(line, &linkage) == nil && linkage.ChainHash != "" {
			store.tail = linkage.ChainHash
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open chain log %s: %w", path, err)
	}
	return store, nil
}

// Path returns the chain log location.
func (s *Store) Path() string {
	return s.path
}

// Count returns the number of committed records.
func (s *Store) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// OnAppend registers a hook invoked after every durable append.
func (s *Store) OnAppend(hook AppendHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Append commits one record: stamp the next sequence number, digest the
// content, chain it to the current tail (genesis when empty), write the full
// line with a durable flush, and only then advance the tail. A failed write
// surfaces as a durability failure and leaves the tail untouched, so the
// record is absent rather than half-committed.
func (s *Store) Append(rec Record) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.count + 1
	rec.SetSeq(seq)
	contentHash, err := hashchain.ContentHash(rec)
	if err != nil {
		return 0, fmt.Errorf("content hash: %w", err)
	}
	prev := s.tail
	if prev == "" {
		prev = hashchain.Genesis
	}
	chainHash, err := hashchain.ChainHash(contentHash, prev)
	if err != nil {
		return 0, fmt.Errorf("chain hash: %w", err)
	}
	rec.SetLinkage(contentHash, chainHash)

	line, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("serialize record: %w", err)
	}
	offset := int64(0)
	if info, statErr := os.Stat(s.path); statErr == nil {
		offset = info.Size()
	}
	if err := fsx.AppendLine(s.path, line, logFileMode); err != nil {
		return 0, errors.Durability(fmt.Errorf("append record %d: %w", seq, err))
	}

	s.count = seq
	s.tail = chainHash
	for _, hook := range s.hooks {
		hook(rec, seq, offset, line)
	}
	return seq, nil
}

// Scan walks committed records in append order starting at sequence from
// (0 or 1 both mean the beginning), invoking fn for each raw line. Each call
// restarts from the start of the log, so the sequence is finite and
// restartable. Scan takes no store lock: it reads whatever records were fully
// committed when it opened the file.
func (s *Store) Scan(from uint64, fn func(seq uint64, line []byte) error) error {
	return s.scan(from, func(seq uint64, offset int64, line []byte) error {
		return fn(seq, line)
	})
}

// ScanRaw is Scan with the byte offset of each record line, for index
// construction.
func (s *Store) ScanRaw(from uint64, fn func(seq uint64, offset int64, line []byte) error) error {
	return s.scan(from, fn)
}

// ReadAll returns every committed record line in append order.
func (s *Store) ReadAll() ([][]byte, error) {
	var lines [][]byte
	err := s.Scan(0, func(seq uint64, line []byte) error {
		lines = append(lines, bytes.Clone(line))
		return nil
	})
	return lines, err
}

// ReadAt returns the single record line starting at a byte offset previously
// reported by the index. The offset lookup is O(1) in the log size.
func (s *Store) ReadAt(offset int64) ([]byte, error) {
	// #nosec G304 -- log path is owned by this store.
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open chain log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek record: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read record: %w", err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("no record at offset %d", offset)
	}
	return line, nil
}

// TailWarning re-checks the log for a truncated trailing line and returns a
// corrupt-trailing-record error when one is present, nil otherwise.
func (s *Store) TailWarning() error {
	warning, _, err := scanChainLog(s.path, 0, func(uint64, int64, []byte) error { return nil })
	if err != nil {
		return err
	}
	return warning
}

func (s *Store) scan(from uint64, fn func(seq uint64, offset int64, line []byte) error) error {
	_, _, err := scanChainLog(s.path, from, fn)
	return err
}

// scanChainLog iterates the complete, newline-terminated record lines of a
// chain log. A final line without its terminating newline is a torn write:
// it is excluded from the readable set and reported as a warning rather than
// an error, per the commit-or-absent append contract.
func scanChainLog(path string, from uint64, fn func(seq uint64, offset int64, line []byte) error) (warning error, count uint64, err error) {
	// #nosec G304 -- log path is owned by the calling store.
	file, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open chain log: %w", openErr)
	}
	defer func() {
		_ = file.Close()
	}()

	reader := bufio.NewReaderSize(file, 64*1024)
	var offset int64
	var seq uint64
	for {
		line, readErr := readRecordLine(reader)
		if readErr == io.EOF {
			return nil, seq, nil
		}
		if readErr == errTruncatedLine {
			return errors.CorruptTail(path, seq+1), seq, nil
		}
		if readErr != nil {
			return nil, seq, fmt.Errorf("read chain log: %w", readErr)
		}
		lineOffset := offset
		offset += int64(len(line)) + 1
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		seq++
		if from > 0 && seq < from {
			continue
		}
		if fnErr := fn(seq, lineOffset, trimmed); fnErr != nil {
			return nil, seq, fnErr
		}
	}
}

var errTruncatedLine = fmt.Errorf("truncated trailing line")

func readRecordLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		line = append(line, chunk...)
		if len(line) > maxRecordBytes {
			return nil, fmt.Errorf("record exceeds %d bytes", maxRecordBytes)
		}
		if err == nil {
			return line[:len(line)-1], nil
		}
		if err == io.EOF {
			if len(line) == 0 {
				return nil, io.EOF
			}
			return nil, errTruncatedLine
		}
		return nil, err
	}
}
