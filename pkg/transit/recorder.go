// Package transit correlates a push-begin event on a producer pad with the
// matching push-end event on the downstream consumer pad, yielding the raw
// transit duration for one buffer.
//
// A record lives only between the two events of a single synchronous push; it
// is removed the moment the end event claims it. Records whose end event
// never arrives (buffers dropped mid-flight) are swept by a bounded eviction
// policy so sustained drops cannot grow the table without limit.
package transit

import (
	"sync"

	"github.com/marmos91/padlatency/pkg/hooks"
)

const shardCount = 64

// DefaultMaxPending is the per-recorder bound on in-flight records before
// eviction kicks in.
const DefaultMaxPending = 4096

// DefaultMaxAge is how long a begin record may wait for its end event before
// it is considered orphaned, in nanoseconds of the host clock.
const DefaultMaxAge = int64(5e9)

// key disambiguates in-flight records. The same producer pad can push
// concurrently from different threads for different buffers, so the thread
// and the buffer token are part of the key, not the pad alone.
type key struct {
	thread hooks.ThreadID
	src    hooks.PadID
	token  hooks.BufferToken
}

type shard struct {
	mu      sync.Mutex
	pending map[key]int64
}

// spanShardCount is sized for "typically a handful of pushing threads".
const spanShardCount = 16

// spanShard tracks, per thread, the span of the most recently completed
// nested push. A synchronous pipeline runs downstream processing inside the
// upstream push, so the raw pre-to-post interval of an upstream edge includes
// all downstream time; subtracting the nested span attributes each edge only
// its own element's processing.
type spanShard struct {
	mu    sync.Mutex
	spans map[hooks.ThreadID]int64
}

// Recorder is the in-flight transit table.
type Recorder struct {
	shards     [shardCount]shard
	spanShards [spanShardCount]spanShard

	// maxPendingPerShard and maxAge implement the eviction policy. They are
	// fixed at construction; the hot path reads them without synchronization.
	maxPendingPerShard int
	maxAge             int64
}

// Options bounds the in-flight table. Zero values select the defaults.
type Options struct {
	// MaxPending is the total number of in-flight records tolerated before
	// orphan sweeping starts.
	MaxPending int

	// MaxAgeNanos is the age in host-clock nanoseconds after which a begin
	// record without a matching end is treated as orphaned.
	MaxAgeNanos int64
}

// NewRecorder returns an empty recorder with the given bounds.
func NewRecorder(opts Options) *Recorder {
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.MaxAgeNanos <= 0 {
		opts.MaxAgeNanos = DefaultMaxAge
	}
	perShard := opts.MaxPending / shardCount
	if perShard < 1 {
		perShard = 1
	}
	r := &Recorder{
		maxPendingPerShard: perShard,
		maxAge:             opts.MaxAgeNanos,
	}
	for i := range r.shards {
		r.shards[i].pending = make(map[key]int64)
	}
	for i := range r.spanShards {
		r.spanShards[i].spans = make(map[hooks.ThreadID]int64)
	}
	return r
}

func (r *Recorder) spanShardFor(thread hooks.ThreadID) *spanShard {
	h := uint64(thread)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	return &r.spanShards[(h>>33)&(spanShardCount-1)]
}

// ResetSpan clears the nested-span accumulator for a thread. Called at
// push-begin so a fresh push never subtracts a previous buffer's span.
func (r *Recorder) ResetSpan(thread hooks.ThreadID) {
	s := r.spanShardFor(thread)
	s.mu.Lock()
	s.spans[thread] = 0
	s.mu.Unlock()
}

// NestedSpan returns the span of the push most recently completed on this
// thread, zero if none since the last ResetSpan.
func (r *Recorder) NestedSpan(thread hooks.ThreadID) int64 {
	s := r.spanShardFor(thread)
	s.mu.Lock()
	v := s.spans[thread]
	s.mu.Unlock()
	return v
}

// FinishSpan publishes a completed push's raw span so the enclosing push, if
// any, can subtract it.
func (r *Recorder) FinishSpan(thread hooks.ThreadID, span int64) {
	s := r.spanShardFor(thread)
	s.mu.Lock()
	s.spans[thread] = span
	s.mu.Unlock()
}

func (r *Recorder) shardFor(k key) *shard {
	h := uint64(k.src) ^ uint64(k.token)<<1 ^ uint64(k.thread)<<2
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return &r.shards[h&(shardCount-1)]
}

// Begin records the start timestamp for a push on the producer pad src. If a
// record for the same (thread, pad, token) already exists it is overwritten;
// the token has been recycled and the old record is stale by definition.
func (r *Recorder) Begin(thread hooks.ThreadID, src hooks.PadID, token hooks.BufferToken, ts int64) {
	k := key{thread: thread, src: src, token: token}
	s := r.shardFor(k)
	s.mu.Lock()
	if len(s.pending) >= r.maxPendingPerShard {
		r.sweepLocked(s, ts)
	}
	s.pending[k] = ts
	s.mu.Unlock()
}

// Take removes and returns the start timestamp recorded by Begin for the same
// thread, producer pad, and token. ok is false if no record exists, which
// means the buffer started before the engine attached, crossed a boundary the
// engine does not track, or was evicted; the transit is simply unmeasured.
func (r *Recorder) Take(thread hooks.ThreadID, src hooks.PadID, token hooks.BufferToken) (int64, bool) {
	k := key{thread: thread, src: src, token: token}
	s := r.shardFor(k)
	s.mu.Lock()
	ts, ok := s.pending[k]
	if ok {
		delete(s.pending, k)
	}
	s.mu.Unlock()
	return ts, ok
}

// Pending returns the number of in-flight records across all shards.
func (r *Recorder) Pending() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

// sweepLocked drops records older than maxAge relative to now. If nothing is
// old enough, the single oldest record is dropped instead so the shard never
// exceeds its bound by more than one. Shard maps are small (maxPending /
// shardCount entries) so the scan stays off the scale of the pipeline's
// buffer rate.
func (r *Recorder) sweepLocked(s *shard, now int64) {
	var (
		oldestKey key
		oldestTS  int64
		haveOld   bool
		dropped   bool
	)
	for k, ts := range s.pending {
		if now-ts > r.maxAge {
			delete(s.pending, k)
			dropped = true
			continue
		}
		if !haveOld || ts < oldestTS {
			oldestKey, oldestTS, haveOld = k, ts, true
		}
	}
	if !dropped && haveOld {
		delete(s.pending, oldestKey)
	}
}
