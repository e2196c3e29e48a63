package topology

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/padlatency/pkg/hooks"
)

func testEdge(src hooks.PadID, element string) Edge {
	return Edge{
		Src: src,
		Labels: Labels{
			ElementID: 1,
			Element:   element,
			SrcPad:    "src",
			SinkPad:   "sink",
		},
	}
}

func TestCacheLinkLookup(t *testing.T) {
	t.Run("LookupReturnsLinkedEdge", func(t *testing.T) {
		c := NewCache()
		c.Link(10, testEdge(5, "decoder"))

		edge, ok := c.Lookup(10)
		require.True(t, ok)
		assert.Equal(t, hooks.PadID(5), edge.Src)
		assert.Equal(t, "decoder", edge.Labels.Element)
	})

	t.Run("LookupMissesUnknownPad", func(t *testing.T) {
		c := NewCache()

		_, ok := c.Lookup(42)
		assert.False(t, ok)
	})

	t.Run("RelinkOverwritesPreviousEdge", func(t *testing.T) {
		c := NewCache()
		c.Link(10, testEdge(5, "decoder"))
		c.Link(10, testEdge(7, "decoder"))

		edge, ok := c.Lookup(10)
		require.True(t, ok)
		assert.Equal(t, hooks.PadID(7), edge.Src)
		assert.Equal(t, 1, c.Len())
	})
}

func TestCacheUnlink(t *testing.T) {
	t.Run("RemovesMatchingEdge", func(t *testing.T) {
		c := NewCache()
		c.Link(10, testEdge(5, "decoder"))

		c.Unlink(10, 5)

		_, ok := c.Lookup(10)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("IgnoresMismatchedPeer", func(t *testing.T) {
		// A stale unlink for a producer that has already been replaced
		// must not remove the current edge.
		c := NewCache()
		c.Link(10, testEdge(5, "decoder"))
		c.Link(10, testEdge(7, "decoder"))

		c.Unlink(10, 5)

		edge, ok := c.Lookup(10)
		require.True(t, ok)
		assert.Equal(t, hooks.PadID(7), edge.Src)
	})

	t.Run("IgnoresUnknownPad", func(t *testing.T) {
		c := NewCache()
		c.Unlink(99, 5)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	const pads = 256

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < pads; i++ {
				sink := hooks.PadID(i)
				c.Link(sink, testEdge(sink+1000, fmt.Sprintf("element%d", i)))
				c.Lookup(sink)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, pads, c.Len())
	for i := 0; i < pads; i++ {
		edge, ok := c.Lookup(hooks.PadID(i))
		require.True(t, ok)
		assert.Equal(t, hooks.PadID(i+1000), edge.Src)
	}
}
