package journalfile

import (
	"fmt"
	"os"

	atomicfile "github.com/natefinch/atomic"

	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

// ExclusiveContext is handed to the function passed to WithExclusive; it
// exposes the journal's current file handles and read position for the
// duration of the exclusive critical section.
type ExclusiveContext struct {
	j   *Journal
	Out *os.File
	In  *os.File
	Pos int64
}

// Size reports the main file's current size.
func (ec *ExclusiveContext) Size() (int64, error) {
	return fileSize(ec.Out)
}

// ReadTail reads the n bytes starting at ec.Pos — records appended
// since the caller last observed the file, used by the compactor to
// carry forward writes that landed after it started dumping (spec
// §4.6 step 2).
func (ec *ExclusiveContext) ReadTail(n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := ec.In.ReadAt(buf, ec.Pos); err != nil {
		return nil, fmt.Errorf("journalfile: reading tail: %w", err)
	}
	return buf, nil
}

// CatchUp replays whatever has been appended past ec.Pos, advancing the
// journal's read position in place. It is the exclusive-section
// counterpart to Update, for callers (the facade's Lock operation) that
// already hold the exclusive lock and need to replay under it rather
// than drop to a shared lock.
func (ec *ExclusiveContext) CatchUp(apply func(recordcodec.Record)) error {
	size, err := ec.Size()
	if err != nil {
		return err
	}
	if size <= ec.Pos {
		return nil
	}
	tail, err := ec.ReadTail(size - ec.Pos)
	if err != nil {
		return err
	}
	recs, consumed, derr := recordcodec.DeserializeAll(tail)
	for _, rec := range recs {
		apply(rec)
	}
	ec.j.logSize.add(len(recs))
	ec.j.pos += int64(consumed)
	ec.Pos = ec.j.pos
	return derr
}

// SwapFile atomically replaces the journal's main file with tmpPath
// (spec invariant 5: "only replaced atomically via rename") and reopens
// both handles against the new file, resetting the read position to just
// past the header so the next Update call replays the new file from the
// top.
func (ec *ExclusiveContext) SwapFile(tmpPath string) error {
	if err := atomicfile.ReplaceFile(tmpPath, ec.j.path); err != nil {
		return fmt.Errorf("journalfile: replacing %s with %s: %w", ec.j.path, tmpPath, err)
	}
	if err := ec.j.reopenOutLocked(); err != nil {
		return err
	}
	if err := ec.j.reopenInLocked(); err != nil {
		return err
	}
	ec.j.pos = int64(ec.j.headerLen)
	ec.Pos = ec.j.pos
	return nil
}

// WithExclusive holds the journal's exclusive lock (reopening the out
// handle first if another process has replaced the file, per spec
// §4.5) for the duration of fn. Used by the compactor (to patch and
// rename) and by the facade's Lock operation (to run a caller's function
// under the same serialization the writer uses). fn runs with the
// Journal's mutex held, so it must not call the Journal's own methods.
func (j *Journal) WithExclusive(fn func(ec *ExclusiveContext) error) error {
	return j.withExclusiveLocked(func() error {
		ec := &ExclusiveContext{j: j, Out: j.out, In: j.in, Pos: j.pos}
		return fn(ec)
	})
}
