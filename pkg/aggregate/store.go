// Package aggregate accumulates completed transit samples into per-pad-pair
// statistics: measurement count, cumulative sum, and last observed value, all
// in nanoseconds.
//
// The store is the only state shared between the pipeline's pushing threads
// and the exporter. Writers touch one entry at a time through atomics;
// readers take a consistent per-entry snapshot without ever locking the store
// globally.
package aggregate

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/marmos91/padlatency/pkg/hooks"
)

const shardCount = 32

// Key identifies one aggregate entry. Entries are created lazily on the
// first completed transit for the key and never removed: pipeline graphs are
// small relative to buffer volume, so the key set stays bounded by the
// distinct element/pad-pair combinations ever observed.
type Key struct {
	ElementID hooks.ElementID
	Element   string
	SinkPad   string
	SrcPad    string
}

// entry statistics are monotonically increasing for the process lifetime,
// except last which is last-writer-wins.
type entry struct {
	count atomic.Uint64
	sum   atomic.Uint64
	last  atomic.Uint64
}

// Entry is one row of a snapshot.
type Entry struct {
	Key
	Count uint64
	Sum   uint64
	Last  uint64
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// Store is the concurrent aggregate table.
type Store struct {
	shards [shardCount]shard
}

// NewStore returns an empty store.
func NewStore() *Store {
	st := &Store{}
	for i := range st.shards {
		st.shards[i].entries = make(map[Key]*entry)
	}
	return st
}

func (st *Store) shardFor(k Key) *shard {
	h := uint64(k.ElementID)
	for _, s := range []string{k.SinkPad, k.SrcPad} {
		for i := 0; i < len(s); i++ {
			h = h*131 + uint64(s[i])
		}
	}
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return &st.shards[h&(shardCount-1)]
}

// Record folds one completed transit of durNanos into the entry for k,
// creating the entry on first use. After creation the update is three atomic
// operations; concurrent recorders on different keys never contend.
func (st *Store) Record(k Key, durNanos uint64) {
	s := st.shardFor(k)

	s.mu.RLock()
	e := s.entries[k]
	s.mu.RUnlock()

	if e == nil {
		s.mu.Lock()
		e = s.entries[k]
		if e == nil {
			e = &entry{}
			s.entries[k] = e
		}
		s.mu.Unlock()
	}

	e.count.Add(1)
	e.sum.Add(durNanos)
	e.last.Store(durNanos)
}

// Snapshot returns a point-in-time read of every entry, sorted by element
// name, then sink pad, then src pad. Each entry's statistics are read
// atomically; writers are blocked at most for one shard's map read, never
// across the whole store.
func (st *Store) Snapshot() []Entry {
	var out []Entry
	for i := range st.shards {
		s := &st.shards[i]
		s.mu.RLock()
		for k, e := range s.entries {
			out = append(out, Entry{
				Key:   k,
				Count: e.count.Load(),
				Sum:   e.sum.Load(),
				Last:  e.last.Load(),
			})
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Element != b.Element {
			return a.Element < b.Element
		}
		if a.SinkPad != b.SinkPad {
			return a.SinkPad < b.SinkPad
		}
		return a.SrcPad < b.SrcPad
	})
	return out
}

// Len returns the number of distinct aggregate entries.
func (st *Store) Len() int {
	n := 0
	for i := range st.shards {
		s := &st.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
