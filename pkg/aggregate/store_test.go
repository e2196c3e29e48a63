package aggregate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(element string) Key {
	return Key{ElementID: 1, Element: element, SinkPad: "sink", SrcPad: "src"}
}

func TestStoreRecord(t *testing.T) {
	t.Run("FirstSampleCreatesEntry", func(t *testing.T) {
		st := NewStore()
		st.Record(testKey("decoder"), 5000)

		entries := st.Snapshot()
		require.Len(t, entries, 1)
		assert.Equal(t, uint64(1), entries[0].Count)
		assert.Equal(t, uint64(5000), entries[0].Sum)
		assert.Equal(t, uint64(5000), entries[0].Last)
	})

	t.Run("SamplesAccumulatePerKey", func(t *testing.T) {
		st := NewStore()
		st.Record(testKey("decoder"), 5000)
		st.Record(testKey("decoder"), 3000)
		st.Record(testKey("decoder"), 7000)

		entries := st.Snapshot()
		require.Len(t, entries, 1)
		assert.Equal(t, uint64(3), entries[0].Count)
		assert.Equal(t, uint64(15000), entries[0].Sum)
		assert.Equal(t, uint64(7000), entries[0].Last)
	})

	t.Run("DistinctKeysStaySeparate", func(t *testing.T) {
		st := NewStore()
		st.Record(testKey("decoder"), 5000)
		st.Record(testKey("encoder"), 9000)
		st.Record(Key{ElementID: 1, Element: "decoder", SinkPad: "sink_1", SrcPad: "src"}, 100)

		assert.Equal(t, 3, st.Len())
	})
}

func TestStoreSnapshot(t *testing.T) {
	t.Run("EmptyStoreYieldsNoEntries", func(t *testing.T) {
		st := NewStore()
		assert.Empty(t, st.Snapshot())
	})

	t.Run("EntriesAreSorted", func(t *testing.T) {
		st := NewStore()
		st.Record(testKey("muxer"), 1)
		st.Record(testKey("decoder"), 1)
		st.Record(testKey("encoder"), 1)

		entries := st.Snapshot()
		require.Len(t, entries, 3)
		assert.Equal(t, "decoder", entries[0].Element)
		assert.Equal(t, "encoder", entries[1].Element)
		assert.Equal(t, "muxer", entries[2].Element)
	})

	t.Run("SnapshotIsConsistentUnderWrites", func(t *testing.T) {
		// One writer records a constant duration d while snapshots are taken.
		// The count and sum of an entry are separate atomics, so a snapshot
		// may catch an update mid-flight; the sum still has to be a multiple
		// of d, cover every count but the one possibly in flight, and counts
		// must never move backwards between snapshots.
		st := NewStore()
		const d = 250

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					st.Record(testKey("decoder"), d)
				}
			}
		}()

		var prevCount uint64
		for i := 0; i < 1000; i++ {
			entries := st.Snapshot()
			if len(entries) == 0 {
				continue
			}
			e := entries[0]
			assert.Zero(t, e.Sum%d)
			assert.GreaterOrEqual(t, e.Sum, (e.Count-1)*d)
			assert.Equal(t, uint64(d), e.Last)
			assert.GreaterOrEqual(t, e.Count, prevCount)
			prevCount = e.Count
		}
		close(stop)
		wg.Wait()
	})
}

func TestStoreConcurrentRecord(t *testing.T) {
	st := NewStore()
	const (
		writers   = 8
		perWriter = 5000
		d         = 125
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			k := testKey(fmt.Sprintf("element%d", w%4))
			for i := 0; i < perWriter; i++ {
				st.Record(k, d)
			}
		}(w)
	}
	wg.Wait()

	entries := st.Snapshot()
	require.Len(t, entries, 4)

	var total uint64
	for _, e := range entries {
		assert.Equal(t, e.Count*d, e.Sum)
		assert.Equal(t, uint64(d), e.Last)
		total += e.Count
	}
	assert.Equal(t, uint64(writers*perWriter), total)
}
