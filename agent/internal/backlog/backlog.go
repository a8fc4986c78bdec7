package backlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// recordVersion is bumped whenever the on-disk record layout changes.
const recordVersion = 1

// Entry is one queued snapshot together with the time it entered the queue.
type Entry struct {
	EnqueuedAt time.Time
	Snapshot   *types.Snapshot
}

// record is the on-disk form of an Entry, one JSON object per line.
type record struct {
	Version    int             `json:"v"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Snapshot   *types.Snapshot `json:"snapshot"`
}

// Backlog is a bounded FIFO queue of undelivered snapshots, persisted to a
// local record file on every mutation. All operations hold the internal lock
// so a concurrent read-only caller (the status endpoint) never observes a
// torn state; the delivery loop itself is single-threaded.
type Backlog struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	path     string
	now      func() time.Time // injectable for deterministic tests
}

// Open loads the backlog persisted at path, creating an empty one when the
// file does not exist. A corrupt file is truncated to its readable prefix
// and never prevents startup. capacity must be positive.
func Open(path string, capacity int) (*Backlog, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("backlog: capacity must be positive, got %d", capacity)
	}
	b := &Backlog{
		capacity: capacity,
		path:     path,
		now:      time.Now,
	}
	b.entries = load(path, capacity)
	return b, nil
}

// Enqueue appends snap to the queue. When the queue is at capacity the
// oldest entry is evicted first. Enqueue never fails and never blocks.
func (b *Backlog) Enqueue(snap *types.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.capacity {
		evicted := b.entries[0]
		b.entries = b.entries[1:]
		slog.Warn("backlog: full, evicted oldest entry",
			"capacity", b.capacity,
			"evicted_enqueued_at", evicted.EnqueuedAt,
		)
	}
	b.entries = append(b.entries, Entry{
		EnqueuedAt: b.now().UTC(),
		Snapshot:   snap,
	})
	b.persistLocked()
}

// PeekAll returns a copy of the current contents, oldest first.
// It does not mutate the queue.
func (b *Backlog) PeekAll() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// RemoveFront removes the first n entries. It is a no-op for n <= 0 and
// clamps n to the current size.
func (b *Backlog) RemoveFront(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.entries) {
		n = len(b.entries)
	}
	b.entries = b.entries[n:]
	b.persistLocked()
}

// Size returns the current number of queued entries.
func (b *Backlog) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// persistLocked rewrites the full record file via temp-file + rename.
// Callers must hold b.mu. A write failure is logged, not returned — the
// queue keeps operating in memory without the durability guarantee until
// the next successful write. The temp file never outlives a failed
// attempt, so a string of failures leaves nothing beside the queue file.
func (b *Backlog) persistLocked() {
	tmp := b.path + ".tmp"

	err := writeRecords(tmp, b.entries)
	if err == nil {
		err = os.Rename(tmp, b.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		slog.Error("backlog: persist failed — continuing in memory", "path", b.path, "err", err)
	}
}

// writeRecords writes entries to path as JSON lines and syncs the file.
func writeRecords(path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(record{
			Version:    recordVersion,
			EnqueuedAt: e.EnqueuedAt,
			Snapshot:   e.Snapshot,
		}); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// load reads the record file at path, stopping at the first unreadable line.
// A partially written tail (process killed mid-rewrite) is discarded; the
// committed prefix survives. When the file holds more than capacity entries
// only the newest capacity entries are kept, matching the evict-oldest
// policy.
func load(path string, capacity int) []Entry {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("backlog: could not read queue file — starting empty", "path", path, "err", err)
		}
		return nil
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			slog.Warn("backlog: corrupt record — truncating queue file here",
				"path", path, "line", line, "err", err)
			break
		}
		if rec.Version != recordVersion || rec.Snapshot == nil {
			slog.Warn("backlog: unsupported record — truncating queue file here",
				"path", path, "line", line, "version", rec.Version)
			break
		}
		entries = append(entries, Entry{EnqueuedAt: rec.EnqueuedAt, Snapshot: rec.Snapshot})
	}
	if err := sc.Err(); err != nil {
		slog.Warn("backlog: error scanning queue file — keeping readable prefix",
			"path", path, "err", err)
	}

	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
	if len(entries) > 0 {
		slog.Info("backlog: loaded persisted queue",
			"path", filepath.Clean(path), "entries", len(entries))
	}
	return entries
}
