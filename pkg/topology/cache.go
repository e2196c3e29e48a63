// Package topology caches which producer pad feeds which consumer pad so the
// buffer hot path never has to walk the live pipeline graph.
//
// The cache is populated from the host's link/unlink notifications. The host
// orders those notifications relative to buffer traffic on the affected pads;
// the cache trusts that ordering and does not re-verify it.
package topology

import (
	"sync"

	"github.com/marmos91/padlatency/pkg/hooks"
)

// shardCount must be a power of two. 32 shards keeps writer contention low on
// graphs with a few hundred pads while staying cheap to snapshot.
const shardCount = 32

// Labels is the aggregate label set for a pad pair, precomputed at link time
// so the push-post path does no string formatting.
type Labels struct {
	ElementID hooks.ElementID
	Element   string
	SrcPad    string
	SinkPad   string
}

// Edge resolves a consumer pad to its upstream producer pad and the labels
// under which completed transits are aggregated.
type Edge struct {
	Src    hooks.PadID
	Labels Labels
}

type shard struct {
	mu    sync.RWMutex
	edges map[hooks.PadID]Edge
}

// Cache maps consumer pad identity to its current upstream edge.
//
// At most one producer feeds a given consumer pad at a time: Link overwrites
// any previous edge for the same consumer (last link wins, a correctable
// inconsistency if the host ever re-links without an unlink). Multiple
// consumers may resolve to the same producer pad; each pair is independent.
type Cache struct {
	shards [shardCount]shard
}

// NewCache returns an empty topology cache.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].edges = make(map[hooks.PadID]Edge)
	}
	return c
}

func (c *Cache) shardFor(sink hooks.PadID) *shard {
	return &c.shards[mix(uint64(sink))&(shardCount-1)]
}

// Link inserts or overwrites the edge for the consumer pad sink.
func (c *Cache) Link(sink hooks.PadID, edge Edge) {
	s := c.shardFor(sink)
	s.mu.Lock()
	s.edges[sink] = edge
	s.mu.Unlock()
}

// Unlink removes the edge for sink if the cached producer matches src.
// A miss or a producer mismatch is a no-op: the host sometimes reports
// unlinks for edges the cache never saw, or after a newer link already
// replaced the edge.
func (c *Cache) Unlink(sink, src hooks.PadID) {
	s := c.shardFor(sink)
	s.mu.Lock()
	if edge, ok := s.edges[sink]; ok && edge.Src == src {
		delete(s.edges, sink)
	}
	s.mu.Unlock()
}

// Lookup resolves the consumer pad sink to its current edge. It runs on every
// buffer arrival; writers on other shards are never blocked, and writers on
// the same shard only for the duration of one map read.
func (c *Cache) Lookup(sink hooks.PadID) (Edge, bool) {
	s := c.shardFor(sink)
	s.mu.RLock()
	edge, ok := s.edges[sink]
	s.mu.RUnlock()
	return edge, ok
}

// Len returns the number of cached edges. Intended for introspection and
// tests, not the hot path.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.edges)
		s.mu.RUnlock()
	}
	return n
}

// mix spreads pad identities across shards. Pad IDs are frequently
// pointer-derived and share low bits, so a multiply-shift is applied first.
func mix(v uint64) uint64 {
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return v
}
