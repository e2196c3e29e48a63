// Package journal persists periodic aggregate snapshots into BadgerDB so
// latency history survives process restarts and can be inspected post
// mortem.
//
// The journal is strictly a read-only consumer of the aggregate store. It
// runs on its own goroutine at a configured cadence, far from the buffer hot
// path, and failures to persist never affect measurement.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/padlatency/internal/logger"
	"github.com/marmos91/padlatency/pkg/aggregate"
)

// keyPrefix namespaces snapshot records. The rest of the key is the snapshot
// time as big-endian unix nanoseconds, so lexicographic key order is
// chronological order and range scans come for free.
const keyPrefix = "snap/"

// Snapshot is one persisted snapshot: when it was taken and every aggregate
// entry at that moment.
type Snapshot struct {
	TakenAt time.Time         `json:"taken_at"`
	Entries []aggregate.Entry `json:"entries"`
}

// Journal writes snapshots of an aggregate store into BadgerDB.
type Journal struct {
	db       *badger.DB
	store    *aggregate.Store
	interval time.Duration
}

// Open opens (or creates) the journal database at cfg.Path.
func Open(cfg Config, store *aggregate.Store) (*Journal, error) {
	opts := badger.DefaultOptions(cfg.Path)
	// Badger's own chatty logger drowns ours; snapshot persistence issues
	// are reported through this package instead.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database at %s: %w", cfg.Path, err)
	}

	return &Journal{
		db:       db,
		store:    store,
		interval: cfg.Interval,
	}, nil
}

// Run persists a snapshot every interval until the context is cancelled,
// then persists one final snapshot and returns. Intended to run on its own
// goroutine.
func (j *Journal) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := j.Persist(time.Now()); err != nil {
				logger.Warn("Final journal snapshot failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := j.Persist(time.Now()); err != nil {
				logger.Warn("Journal snapshot failed: %v", err)
			}
		}
	}
}

// Persist writes the store's current snapshot under the given timestamp.
// Empty snapshots are skipped; a pipeline that has not completed a single
// transit yet produces no journal entries.
func (j *Journal) Persist(now time.Time) error {
	entries := j.store.Snapshot()
	if len(entries) == 0 {
		return nil
	}

	value, err := json.Marshal(Snapshot{TakenAt: now, Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(now.UnixNano()), value)
	})
}

// Latest returns the most recently persisted snapshot. ok is false when the
// journal is empty.
func (j *Journal) Latest() (Snapshot, bool, error) {
	var (
		snap  Snapshot
		found bool
	)
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past every possible timestamp, then step back to the newest.
		it.Seek(snapshotKey(int64(^uint64(0) >> 1)))
		if !it.ValidForPrefix([]byte(keyPrefix)) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	return snap, found, nil
}

// Range returns every snapshot taken in [from, to], oldest first.
func (j *Journal) Range(from, to time.Time) ([]Snapshot, error) {
	var out []Snapshot
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(snapshotKey(from.UnixNano())); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			ts := keyTimestamp(it.Item().Key())
			if ts > to.UnixNano() {
				break
			}
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal database: %w", err)
	}
	return nil
}

func snapshotKey(unixNanos int64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], uint64(unixNanos))
	return key
}

func keyTimestamp(key []byte) int64 {
	if len(key) < len(keyPrefix)+8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key[len(keyPrefix):]))
}
