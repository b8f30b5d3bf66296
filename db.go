// Package daybreak is an embedded, single-file, append-only key-value
// store: a journal of Put/Tombstone records backed by a single host
// file, with an in-memory index mirroring the journal's latest state.
// A background writer coalesces mutations onto disk; compaction
// rewrites the file to drop superseded records.
package daybreak

import (
	"fmt"
	"sync"

	"github.com/kleinmatic/daybreak/internal/changefeed"
	"github.com/kleinmatic/daybreak/internal/compactor"
	"github.com/kleinmatic/daybreak/internal/journalfile"
	"github.com/kleinmatic/daybreak/internal/recordcodec"
	"github.com/kleinmatic/daybreak/internal/registry"
	"github.com/kleinmatic/daybreak/internal/serializer"
)

// Database is a single open journal file plus the in-memory index that
// mirrors it. A Database is safe for concurrent use by multiple
// goroutines.
//
// Grounded on the teacher's internal/engine.Engine: a mutex-guarded
// facade wrapping a durable log and an in-memory store, narrowed from
// FlashDB's many Redis value types down to the single Put/Tombstone
// journal model, with the flat map.Store replaced by orderedIndex so
// iteration honors the insertion-order invariant the original store
// never had to.
type Database struct {
	mu sync.Mutex

	journal    *journalfile.Journal
	serializer serializer.Serializer
	index      *orderedIndex
	defaults   DefaultPolicy
	feed       *changefeed.Feed

	regID     int
	skipReg   bool
	closed    bool
}

// Open opens (or creates) the journal file at path and replays it into
// a fresh in-memory index, starting the background writer (spec §3
// "Lifecycle").
func Open(path string, opts ...Option) (*Database, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	formatName := cfg.serializer.Name()

	j, err := journalfile.Open(path, formatName)
	if err != nil {
		return nil, fmt.Errorf("daybreak: opening %s: %w", path, err)
	}

	db := &Database{
		journal:    j,
		serializer: cfg.serializer,
		index:      newOrderedIndex(),
		defaults:   cfg.defaultPolicy,
		feed:       changefeed.New(cfg.changeFeedSize),
		skipReg:    cfg.skipRegistry,
	}

	if err := db.journal.Update(db.applyRecord, db.index.reset); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("daybreak: replaying %s: %w", path, err)
	}

	if !cfg.skipRegistry {
		db.regID = registry.Register(db)
	}

	return db, nil
}

// applyRecord folds one journal record into the in-memory index: a Put
// decodes its value and assigns, a Tombstone removes (spec §4.4 step 5).
func (db *Database) applyRecord(rec recordcodec.Record) {
	if rec.Tombstone {
		db.index.delete(string(rec.Key))
		return
	}
	var value any
	if err := db.serializer.Decode(rec.Value, &value); err != nil {
		// A value encoded by a type never gob.Register-ed on this
		// process can't be decoded generically; skip rather than
		// abort the whole replay.
		return
	}
	db.index.set(string(rec.Key), value)
}

// Get looks up key in memory. If key is absent and a DefaultPolicy was
// configured via WithDefault, the default (or the factory's result) is
// installed with Set and returned (spec §4.7 "Default-value policy").
func (db *Database) Get(key any) (any, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosedDatabase
	}

	kb, err := db.serializer.KeyFor(key)
	if err != nil {
		return nil, fmt.Errorf("daybreak: get: %w", err)
	}

	if v, ok := db.index.get(string(kb)); ok {
		return v, nil
	}

	if v, ok := db.defaults.valueFor(key); ok {
		if err := db.setLocked(kb, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	return nil, nil
}

// Has reports whether key is present in memory.
func (db *Database) Has(key any) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return false, ErrClosedDatabase
	}
	kb, err := db.serializer.KeyFor(key)
	if err != nil {
		return false, fmt.Errorf("daybreak: has: %w", err)
	}
	_, ok := db.index.get(string(kb))
	return ok, nil
}

// Set assigns value to key in memory and enqueues a Put for the
// background writer (spec §4.7 "set"). It returns once the index is
// updated; durability follows asynchronously unless SetSync is used.
func (db *Database) Set(key, value any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}
	kb, err := db.serializer.KeyFor(key)
	if err != nil {
		return fmt.Errorf("daybreak: set: %w", err)
	}
	return db.setLocked(kb, value)
}

// setLocked is Set's body, callable while db.mu is already held (used
// by Get's default-installation path).
func (db *Database) setLocked(kb []byte, value any) error {
	vb, err := db.serializer.Encode(value)
	if err != nil {
		return fmt.Errorf("daybreak: set: encoding value: %w", err)
	}
	db.index.set(string(kb), value)
	db.journal.Enqueue(recordcodec.Put(kb, vb))
	db.feed.Record(changefeed.Put, kb, vb)
	return nil
}

// SetSync is Set followed by Sync (spec §4.7 "set_sync"): it returns
// once the record is durable on disk.
func (db *Database) SetSync(key, value any) error {
	if err := db.Set(key, value); err != nil {
		return err
	}
	return db.Sync()
}

// Delete removes key from memory and enqueues a Tombstone (spec §4.7
// "delete").
func (db *Database) Delete(key any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}
	kb, err := db.serializer.KeyFor(key)
	if err != nil {
		return fmt.Errorf("daybreak: delete: %w", err)
	}
	db.index.delete(string(kb))
	db.journal.Enqueue(recordcodec.Tomb(kb))
	db.feed.Record(changefeed.Delete, kb, nil)
	return nil
}

// DeleteSync is Delete followed by Sync (spec §4.7 "delete_sync").
func (db *Database) DeleteSync(key any) error {
	if err := db.Delete(key); err != nil {
		return err
	}
	return db.Sync()
}

// LogSize returns the running count of records written or replayed by
// this database's journal. It is monotonic non-decreasing but not an
// exact count of the file's records, since after a compaction swap the
// rewritten file is replayed and counted again.
func (db *Database) LogSize() uint64 {
	return db.journal.LogSize()
}

// Size returns the count of live keys in memory.
func (db *Database) Size() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosedDatabase
	}
	return db.index.len(), nil
}

// Iterate calls fn for every live (key, value) pair in the order of
// each key's most recent Put (spec §3, §4.7 "iterate"). Iteration stops
// early if fn returns false.
func (db *Database) Iterate(fn func(key string, value any) bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}
	db.index.eachUntil(fn)
	return nil
}

// Sync flushes the writer queue and replays any newly-written records
// into the index (spec §4.7 "sync").
func (db *Database) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.syncLocked()
}

func (db *Database) syncLocked() error {
	if db.closed {
		return ErrClosedDatabase
	}
	if err := db.journal.Flush(); err != nil {
		return fmt.Errorf("daybreak: sync: %w", err)
	}
	if err := db.journal.Update(db.applyRecord, db.index.reset); err != nil {
		return fmt.Errorf("daybreak: sync: %w", err)
	}
	return nil
}

// Lock flushes the writer queue, replays outstanding records, runs fn
// while holding the journal's exclusive lock, and flushes once more
// before returning (spec §4.7 "lock"). fn runs under the same
// serialization the writer itself uses against other processes, with
// the database's mutex held: fn must not call methods of this Database,
// which would block forever.
func (db *Database) Lock(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}
	if err := db.journal.Flush(); err != nil {
		return fmt.Errorf("daybreak: lock: %w", err)
	}

	err := db.journal.WithExclusive(func(ec *journalfile.ExclusiveContext) error {
		if err := ec.CatchUp(db.applyRecord); err != nil {
			return err
		}
		return fn()
	})
	if err != nil {
		return fmt.Errorf("daybreak: lock: %w", err)
	}

	return db.syncLocked()
}

// Compact rewrites the journal file to contain exactly one Put per
// live key, preserving any records appended concurrently (spec §4.6).
func (db *Database) Compact() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}

	var entries []recordcodec.Record
	db.index.each(func(key string, value any) {
		vb, err := db.serializer.Encode(value)
		if err != nil {
			return
		}
		entries = append(entries, recordcodec.Put([]byte(key), vb))
	})

	dump, err := compactor.BuildDump(entries)
	if err != nil {
		return fmt.Errorf("daybreak: compact: %w", err)
	}

	if err := compactor.Run(db.journal, db.serializer.Name(), dump, db.journal.Flush); err != nil {
		return fmt.Errorf("daybreak: compact: %w", err)
	}

	return db.syncLocked()
}

// Clear empties the journal file down to just its header, discarding
// every record, and resets the in-memory index (spec §4.6 "clear is a
// degenerate compaction").
func (db *Database) Clear() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosedDatabase
	}

	if err := compactor.Clear(db.journal, db.serializer.Name()); err != nil {
		return fmt.Errorf("daybreak: clear: %w", err)
	}
	db.index.reset()
	return db.syncLocked()
}

// Close drains the writer queue, closes the journal's file handles, and
// removes this database from the process-wide registry (spec §3
// "Lifecycle", §4.8). Close is idempotent: a second call is a no-op
// (spec §8 invariant 4).
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	if !db.skipReg {
		registry.Unregister(db.regID)
	}

	if err := db.journal.Close(); err != nil {
		return fmt.Errorf("daybreak: close: %w", err)
	}
	return nil
}

// CloseAll closes every database still in the process-wide registry,
// the same drain the SIGINT/SIGTERM handler runs, for callers that want
// an explicit shutdown point.
func CloseAll() {
	registry.CloseAll()
}

// Subscribe returns a live feed of every Put/Delete applied to this
// database from this point on (supplemented feature; see
// internal/changefeed).
func (db *Database) Subscribe(bufSize int) (id uint64, ch <-chan changefeed.Change) {
	return db.feed.Subscribe(bufSize)
}

// Unsubscribe stops a feed started with Subscribe.
func (db *Database) Unsubscribe(id uint64) {
	db.feed.Unsubscribe(id)
}
