package journalfile

import (
	"fmt"
	"log"
	"os"

	"github.com/kleinmatic/daybreak/internal/recordcodec"
)

// runWriter is the single background writer goroutine: it drains the
// queue strictly in order, so enqueue order, append order, and replay
// order coincide (spec §5 "Ordering"). Modeled as spec §9's "dedicated
// task consuming a bounded channel (queueDepth), with close signaled by an
// explicit end-of-stream marker" rather than the original gem's
// mutex+condition-variable Queue/ConditionVariable pair.
func (j *Journal) runWriter() {
	for item := range j.queue {
		j.processItem(item)
		if item.kind == itemShutdown {
			return
		}
	}
}

func (j *Journal) processItem(item queueItem) {
	// Spec §4.3 "Recovery": a raising worker logs a diagnostic and
	// resumes its loop rather than taking the process down with it.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("daybreak: journal writer recovered: %v", r)
		}
	}()

	switch item.kind {
	case itemRecord:
		j.writeRecord(item.rec)
	case itemBarrier, itemShutdown:
		close(item.done)
	}
}

func (j *Journal) writeRecord(rec recordcodec.Record) {
	buf, err := recordcodec.Serialize(nil, rec)
	if err != nil {
		j.setErr(err)
		return
	}

	err = j.withExclusiveLocked(func() error {
		if _, err := j.out.Write(buf); err != nil {
			return fmt.Errorf("journalfile: append: %w", err)
		}
		if err := j.out.Sync(); err != nil {
			return fmt.Errorf("journalfile: sync: %w", err)
		}

		// Back-read optimization (spec §4.3): if the file's new size is
		// exactly what we expect given our own append, credit those
		// bytes to pos now instead of re-reading them on the next
		// Update call.
		size, statErr := fileSize(j.out)
		if statErr == nil && size == j.pos+int64(len(buf)) {
			j.pos += int64(len(buf))
			j.logSize.add(1)
		}
		return nil
	})
	if err != nil {
		log.Printf("daybreak: journal writer: %v", err)
		j.setErr(err)
	}
}

func (j *Journal) setErr(err error) {
	j.mu.Lock()
	if j.writeErr == nil {
		j.writeErr = err
	}
	j.mu.Unlock()
}

// withExclusiveLocked runs fn while holding both the in-process mutex
// and the file's exclusive advisory lock, revalidating (and reopening,
// per spec §4.5) the out handle if another process has replaced the
// file since it was last opened.
func (j *Journal) withExclusiveLocked(fn func() error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for {
		if err := lockFile(j.out, Exclusive); err != nil {
			return err
		}

		zero, err := nlinkZero(j.out)
		if err != nil {
			_ = unlockFile(j.out)
			return err
		}
		if !zero {
			break
		}

		_ = unlockFile(j.out)
		if err := j.reopenOutLocked(); err != nil {
			return err
		}
	}
	defer unlockFile(j.out)

	return fn()
}

func (j *Journal) reopenOutLocked() error {
	_ = j.out.Close()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journalfile: reopen %s: %w", j.path, err)
	}
	j.out = f
	return nil
}

func (j *Journal) reopenInLocked() error {
	_ = j.in.Close()
	f, err := os.OpenFile(j.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("journalfile: reopen %s: %w", j.path, err)
	}
	j.in = f
	return nil
}
