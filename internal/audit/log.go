package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ppiankov/hookgate/internal/redact"
)

// GenesisHash is the prev_hash for the first entry in a new log file.
// Rotation starts a fresh chain, so every file begins at genesis.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Rotation defaults.
const (
	DefaultMaxSizeMB = 10
	DefaultMaxFiles  = 5
)

// maxLineBytes bounds a single log line when scanning. Debug entries
// carry the raw event, so lines can far exceed bufio's default token.
const maxLineBytes = 8 << 20

// Log appends hash-chained entries to a JSONL file. Every append
// opens, flocks, recovers the chain tail, writes one line and syncs,
// so concurrent invocations against the same file interleave whole
// lines and keep the chain intact. The flock lives on a sidecar .lock
// file because the data file itself rotates.
type Log struct {
	path     string
	maxBytes int64
	maxFiles int
	mu       sync.Mutex
}

// Options control rotation. Zero values take the defaults.
type Options struct {
	MaxSizeMB int
	MaxFiles  int
}

// New returns a log handle for path. No file is touched until the
// first Record.
func New(path string, opts Options) *Log {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	return &Log{
		path:     path,
		maxBytes: int64(opts.MaxSizeMB) << 20,
		maxFiles: opts.MaxFiles,
	}
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Record appends one entry. It fills ID and Timestamp if empty, sets
// PrevHash from the chain tail, and scrubs secret material before
// marshaling. The caller's entry is not modified.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("audit: create directory: %w", err)
	}

	unlock, err := lockFile(l.path + ".lock")
	if err != nil {
		return fmt.Errorf("audit: lock: %w", err)
	}
	defer unlock()

	if err := l.rotateLocked(); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open: %w", err)
	}
	defer file.Close()

	prevHash, err := tailHash(file)
	if err != nil {
		return fmt.Errorf("audit: read chain tail: %w", err)
	}

	if entry.ID == "" {
		entry.ID = NewEntryID()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	entry.PrevHash = prevHash
	sanitize(&entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("audit: seek: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	return nil
}

// rotateLocked shifts full log files one slot down and starts a fresh
// live file. The oldest rotated file is dropped.
func (l *Log) rotateLocked() error {
	info, err := os.Stat(l.path)
	if err != nil || info.Size() < l.maxBytes {
		return nil
	}

	_ = os.Remove(fmt.Sprintf("%s.%d", l.path, l.maxFiles))
	for i := l.maxFiles - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", l.path, i), fmt.Sprintf("%s.%d", l.path, i+1))
	}
	return os.Rename(l.path, l.path+".1")
}

// lockFile takes an exclusive flock and returns the release func.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}

// tailHash scans to the last line and hashes it, or returns the
// genesis hash for an empty file.
func tailHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	scanner := newLineScanner(file)
	var last []byte
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(last) == 0 {
		return GenesisHash, nil
	}
	return HashLine(last), nil
}

// sanitize scrubs secret material from every free-text field before
// the entry is marshaled. Nested records are copied, never mutated in
// place, so the caller's entry stays untouched.
func sanitize(e *Entry) {
	e.Reason = redact.Scrub(e.Reason)
	e.Failure = redact.Scrub(e.Failure)
	e.Details.Command = redact.Scrub(e.Details.Command)
	e.Details.Reason = redact.Scrub(e.Details.Reason)
	if w := e.Details.Wrapped; w != nil {
		inner := *w
		inner.Command = redact.Scrub(inner.Command)
		inner.Reason = redact.Scrub(inner.Reason)
		e.Details.Wrapped = &inner
	}
	if v := e.Validator; v != nil {
		rec := *v
		rec.Output = redact.Scrub(rec.Output)
		rec.Failure = redact.Scrub(rec.Failure)
		e.Validator = &rec
	}
	if d := e.Debug; d != nil && d.RawEvent != nil {
		rec := *d
		rec.RawEvent = redact.MaskMap(d.RawEvent)
		e.Debug = &rec
	}
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

// newLineScanner returns a scanner sized for large debug entries.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
