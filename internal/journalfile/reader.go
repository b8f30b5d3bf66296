package journalfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

// Update catches the in-memory index up to the file's current end
// (spec §4.4): it shared-locks the read handle, detects a replaced file
// via nlink, reads the new tail, and replays it one record at a time
// through apply. If the file was replaced since the last call, onReset
// is invoked (with the lock released) before replay resumes from byte
// zero of the new file, so the caller can clear whatever it had
// rebuilt from the old one. onReset may be nil.
func (j *Journal) Update(apply func(recordcodec.Record), onReset func()) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for {
		if err := lockFile(j.in, Shared); err != nil {
			return err
		}

		zero, err := nlinkZero(j.in)
		if err != nil {
			_ = unlockFile(j.in)
			return err
		}
		if zero {
			_ = unlockFile(j.in)
			if err := j.reopenInLocked(); err != nil {
				return err
			}
			j.pos = int64(j.headerLen)
			if onReset != nil {
				onReset()
			}

			// The file was replaced wholesale (a compaction rename), so
			// there's no "new tail" to speak of: the whole new file is
			// new to this Journal. Rebuild via the same standalone
			// Replay walk a caller without a live Journal would use,
			// rather than duplicating its read-and-deserialize loop
			// inline here.
			count := 0
			if err := Replay(j.path, j.formatName, func(rec recordcodec.Record) error {
				apply(rec)
				count++
				return nil
			}); err != nil {
				return err
			}
			j.logSize.add(count)

			size, err := fileSize(j.in)
			if err != nil {
				return err
			}
			j.pos = size
			return nil
		}

		size, err := fileSize(j.in)
		if err != nil {
			_ = unlockFile(j.in)
			return err
		}

		var buf []byte
		if size > j.pos {
			buf = make([]byte, size-j.pos)
			if _, err := j.in.ReadAt(buf, j.pos); err != nil {
				_ = unlockFile(j.in)
				return fmt.Errorf("journalfile: reading new records: %w", err)
			}
		}
		_ = unlockFile(j.in)

		recs, consumed, derr := recordcodec.DeserializeAll(buf)
		for _, rec := range recs {
			apply(rec)
		}
		j.logSize.add(len(recs))
		j.pos += int64(consumed)
		return derr
	}
}

// Replay walks path's records from the header onward, invoking apply
// for each one in file order, independent of any live Journal or
// Database. It takes its own shared lock rather than going through a
// Journal's handles, so a caller can inspect a file without paying for
// the index replay and write queue a full Open sets up.
//
// Grounded on the teacher's wal.ReadAll: open, read records in a
// straight loop until EOF, stop at the first error. Unlike ReadAll,
// Replay never truncates the file — a CLI inspection tool has no
// business rewriting the file it's reading — and it surfaces a
// corrupt/partial trailing record as an error instead of silently
// dropping it.
func Replay(path, formatName string, apply func(recordcodec.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("journalfile: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := lockFile(f, Shared); err != nil {
		return err
	}
	defer unlockFile(f)

	if _, err := ReadHeader(f, formatName); err != nil {
		return err
	}

	for {
		rec, _, err := recordcodec.Deserialize(f)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journalfile: replaying %s: %w", path, err)
		}
		if err := apply(rec); err != nil {
			return err
		}
	}
}
