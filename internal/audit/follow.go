package audit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollDefault is the fallback scan interval for filesystems where
// fsnotify delivers no events (e.g. NFS).
const pollDefault = 2 * time.Second

// Follower tails the live log file and hands each complete appended
// line to the handler. Partial lines wait for their newline; rotation
// resets the read offset.
type Follower struct {
	path     string
	handler  func(line []byte)
	interval time.Duration
}

// NewFollower creates a follower that starts at the current end of
// the file, so only lines appended after Run are delivered.
func NewFollower(path string, handler func(line []byte)) *Follower {
	return &Follower{path: path, handler: handler, interval: pollDefault}
}

// Run blocks until ctx is cancelled, watching the log's directory so
// rotation and recreation are picked up.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	offset := int64(0)
	if info, err := os.Stat(f.path); err == nil {
		offset = info.Size()
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			offset = f.drain(offset)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != f.path {
				continue
			}
			if event.Has(fsnotify.Create) {
				offset = 0
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				offset = f.drain(offset)
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// drain emits every complete line past offset and returns the new
// offset. A shrunken file means rotation happened between events.
func (f *Follower) drain(offset int64) int64 {
	file, err := os.Open(f.path)
	if err != nil {
		return offset
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset
	}
	if info.Size() < offset {
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return offset
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if i > 0 {
			line := append([]byte(nil), data[:i]...)
			f.handler(line)
		}
		data = data[i+1:]
		offset += int64(i) + 1
	}
	return offset
}
