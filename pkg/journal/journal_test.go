package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/padlatency/pkg/aggregate"
)

func openTestJournal(t *testing.T, store *aggregate.Store) *Journal {
	t.Helper()
	j, err := Open(Config{Path: t.TempDir(), Interval: time.Minute}, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalPersistLatest(t *testing.T) {
	t.Run("RoundTripsSnapshot", func(t *testing.T) {
		store := aggregate.NewStore()
		store.Record(aggregate.Key{ElementID: 2, Element: "decoder", SinkPad: "sink", SrcPad: "src"}, 5000)
		store.Record(aggregate.Key{ElementID: 2, Element: "decoder", SinkPad: "sink", SrcPad: "src"}, 3000)
		j := openTestJournal(t, store)

		takenAt := time.Now()
		require.NoError(t, j.Persist(takenAt))

		snap, ok, err := j.Latest()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, snap.TakenAt.Equal(takenAt))
		require.Len(t, snap.Entries, 1)
		assert.Equal(t, "decoder", snap.Entries[0].Element)
		assert.Equal(t, uint64(2), snap.Entries[0].Count)
		assert.Equal(t, uint64(8000), snap.Entries[0].Sum)
		assert.Equal(t, uint64(3000), snap.Entries[0].Last)
	})

	t.Run("LatestWinsAcrossSnapshots", func(t *testing.T) {
		store := aggregate.NewStore()
		k := aggregate.Key{ElementID: 2, Element: "decoder", SinkPad: "sink", SrcPad: "src"}
		j := openTestJournal(t, store)

		base := time.Now()
		store.Record(k, 1000)
		require.NoError(t, j.Persist(base))
		store.Record(k, 1000)
		require.NoError(t, j.Persist(base.Add(time.Second)))

		snap, ok, err := j.Latest()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(2), snap.Entries[0].Count)
	})

	t.Run("EmptyStoreSkipsPersist", func(t *testing.T) {
		j := openTestJournal(t, aggregate.NewStore())

		require.NoError(t, j.Persist(time.Now()))

		_, ok, err := j.Latest()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyJournalHasNoLatest", func(t *testing.T) {
		j := openTestJournal(t, aggregate.NewStore())

		_, ok, err := j.Latest()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestJournalRange(t *testing.T) {
	store := aggregate.NewStore()
	k := aggregate.Key{ElementID: 2, Element: "decoder", SinkPad: "sink", SrcPad: "src"}
	j := openTestJournal(t, store)

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		store.Record(k, 1000)
		require.NoError(t, j.Persist(base.Add(time.Duration(i)*time.Minute)))
	}

	t.Run("ReturnsChronologicalWindow", func(t *testing.T) {
		snaps, err := j.Range(base.Add(time.Minute), base.Add(3*time.Minute))
		require.NoError(t, err)
		require.Len(t, snaps, 3)

		for i, snap := range snaps {
			assert.True(t, snap.TakenAt.Equal(base.Add(time.Duration(i+1)*time.Minute)))
			assert.Equal(t, uint64(i+2), snap.Entries[0].Count)
		}
	})

	t.Run("OutsideWindowIsEmpty", func(t *testing.T) {
		snaps, err := j.Range(base.Add(time.Hour), base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})

	t.Run("FullWindowReturnsEverything", func(t *testing.T) {
		snaps, err := j.Range(base.Add(-time.Hour), base.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, snaps, 5)
	})
}

func TestConfigFromMap(t *testing.T) {
	t.Run("DecodesPathAndInterval", func(t *testing.T) {
		cfg, err := ConfigFromMap(map[string]any{
			"path":     "/var/lib/padlatency",
			"interval": "10s",
		})
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/padlatency", cfg.Path)
		assert.Equal(t, 10*time.Second, cfg.Interval)
	})

	t.Run("DefaultsInterval", func(t *testing.T) {
		cfg, err := ConfigFromMap(map[string]any{"path": "/tmp/j"})
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.Interval)
	})

	t.Run("RequiresPath", func(t *testing.T) {
		_, err := ConfigFromMap(map[string]any{"interval": "10s"})
		assert.Error(t, err)
	})

	t.Run("RejectsMalformedInterval", func(t *testing.T) {
		_, err := ConfigFromMap(map[string]any{
			"path":     "/tmp/j",
			"interval": "soon",
		})
		assert.Error(t, err)
	})
}
