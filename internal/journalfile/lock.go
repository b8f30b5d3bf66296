package journalfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LockKind selects the advisory lock flavor acquired by lockFile.
type LockKind int

const (
	// Shared allows concurrent readers; it excludes exclusive holders.
	Shared LockKind = iota
	// Exclusive excludes every other shared or exclusive holder.
	Exclusive
)

func (k LockKind) flockOp() int {
	if k == Shared {
		return unix.LOCK_SH
	}
	return unix.LOCK_EX
}

// lockFile blocks until it acquires kind on f's whole-file advisory
// lock. Unlike calvinalkan-agent-task's acquireLockWithTimeout (a
// separate .lock sidecar file with a busy-retry loop), this locks the
// journal file itself and lets the kernel block the caller, the same
// approach aalhour-rockyardkv's internal/vfs/lock.go takes for its
// exclusive-only case.
func lockFile(f *os.File, kind LockKind) error {
	if err := unix.Flock(int(f.Fd()), kind.flockOp()); err != nil {
		return fmt.Errorf("journalfile: flock %s: %w", f.Name(), err)
	}
	return nil
}

func unlockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("journalfile: unlock %s: %w", f.Name(), err)
	}
	return nil
}

// nlinkZero reports whether f's current link count is zero, meaning the
// path it was opened from has since been replaced (rename) or removed
// out from under this handle. Spec §4.4/§4.5's reopen dance hinges on
// this check. Uses unix.Fstat directly (rather than os.File.Stat, whose
// FileInfo.Sys() returns the standard library's own *syscall.Stat_t, not
// x/sys/unix's) to read Nlink.
func nlinkZero(f *os.File) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return false, fmt.Errorf("journalfile: fstat %s: %w", f.Name(), err)
	}
	return st.Nlink == 0, nil
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("journalfile: stat %s: %w", f.Name(), err)
	}
	return info.Size(), nil
}
