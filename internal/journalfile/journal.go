package journalfile

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

// Journal owns a single on-disk journal file: the append-mode handle the
// background writer appends through, the read-only handle update()
// replays from, and the advisory-lock discipline that serializes both
// against other processes sharing the file.
//
// A Journal is safe for concurrent use by multiple goroutines.
type Journal struct {
	path       string
	formatName string
	headerLen  int

	mu  sync.Mutex // guards out, in, pos, writeErr together, per spec §5
	out *os.File
	in  *os.File
	pos int64

	logSize  counter
	writeErr error

	queue chan queueItem
	once  sync.Once
}

type itemKind int

const (
	itemRecord itemKind = iota
	itemBarrier
	itemShutdown
)

type queueItem struct {
	kind itemKind
	rec  recordcodec.Record
	done chan struct{}
}

// queueDepth bounds how many pending mutations enqueue() may buffer
// before blocking the caller; large enough that ordinary bursts of
// Set/Delete calls never stall on the writer.
const queueDepth = 4096

// Open opens or creates the journal file at path, writing the header
// (see header.go) if the file is empty, and starts its background
// writer goroutine. formatName is the codec name recorded in (and, on
// reopen, checked against) the header.
func Open(path, formatName string) (*Journal, error) {
	out, err := openOrCreateWithHeader(path, formatName)
	if err != nil {
		return nil, err
	}

	in, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("journalfile: open %s for reading: %w", path, err)
	}

	hdr, err := ReadHeader(io.NewSectionReader(in, 0, 1<<30), formatName)
	if err != nil {
		_ = out.Close()
		_ = in.Close()
		return nil, err
	}

	j := &Journal{
		path:       path,
		formatName: formatName,
		headerLen:  hdr.Len(),
		out:        out,
		in:         in,
		pos:        int64(hdr.Len()),
		queue:      make(chan queueItem, queueDepth),
	}
	go j.runWriter()
	return j, nil
}

func openOrCreateWithHeader(path, formatName string) (*os.File, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journalfile: open %s: %w", path, err)
	}

	info, err := out.Stat()
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("journalfile: stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		hdr := NewHeader(formatName)
		if _, err := out.Write(hdr.Bytes()); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("journalfile: writing header: %w", err)
		}
		if err := out.Sync(); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("journalfile: syncing header: %w", err)
		}
	}

	return out, nil
}

// Path returns the journal file's path.
func (j *Journal) Path() string { return j.path }

// HeaderLen returns the byte length of the file header.
func (j *Journal) HeaderLen() int { return j.headerLen }

// LogSize returns the running count of records credited to this
// Journal: its own appends skipped by the writer's back-read
// optimization, plus the records Update and CatchUp replay. It is
// monotonic non-decreasing but not an exact count of the file's records:
// after a compaction swap the rewritten file is replayed and counted
// again.
func (j *Journal) LogSize() uint64 { return j.logSize.load() }

// Pos returns the current read position: bytes already applied to the
// caller's index.
func (j *Journal) Pos() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pos
}

// Enqueue appends rec to the write queue. It does not block on I/O; the
// background writer picks it up asynchronously.
func (j *Journal) Enqueue(rec recordcodec.Record) {
	j.queue <- queueItem{kind: itemRecord, rec: rec}
}

// Flush blocks until every record enqueued before this call has been
// durably written, then returns (and clears) any sticky write error
// accumulated since the last Flush — see DESIGN.md's resolution of spec
// §9's writer-failure divergence note.
func (j *Journal) Flush() error {
	done := make(chan struct{})
	j.queue <- queueItem{kind: itemBarrier, done: done}
	<-done

	j.mu.Lock()
	err := j.writeErr
	j.writeErr = nil
	j.mu.Unlock()
	return err
}

// Close drains the write queue, stops the writer goroutine, and closes
// both file handles. Safe to call more than once; later calls are a
// no-op.
func (j *Journal) Close() error {
	var result error
	j.once.Do(func() {
		done := make(chan struct{})
		j.queue <- queueItem{kind: itemShutdown, done: done}
		<-done

		j.mu.Lock()
		defer j.mu.Unlock()
		result = j.writeErr
		if err := j.out.Close(); err != nil && result == nil {
			result = fmt.Errorf("journalfile: closing %s: %w", j.path, err)
		}
		if err := j.in.Close(); err != nil && result == nil {
			result = fmt.Errorf("journalfile: closing %s: %w", j.path, err)
		}
	})
	return result
}

// counter is a tiny mutex-free-at-the-call-site monotonic counter; kept
// separate from sync/atomic's typed counters so call sites read as plain
// method calls regardless of Go version.
type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) add(n int) {
	c.mu.Lock()
	c.n += uint64(n)
	c.mu.Unlock()
}

func (c *counter) load() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
