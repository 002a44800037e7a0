package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/utils/unittest"
)

func TestChannelEntryInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		expected := unittest.ChannelEntryFixture()

		err := db.Update(UpsertChannelEntry(expected))
		require.NoError(t, err)

		var actual proba.ChannelEntry
		err = db.View(RetrieveChannelEntry(expected.PartyA, expected.PartyB, &actual))
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})
}

func TestChannelEntryRetrieveMissing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var actual proba.ChannelEntry
		err := db.View(RetrieveChannelEntry(unittest.AddressFixture(), unittest.AddressFixture(), &actual))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestChannelEntryOverwrite(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		entry := unittest.ChannelEntryFixture()

		err := db.Update(UpsertChannelEntry(entry))
		require.NoError(t, err)

		entry.Status = proba.ChannelPendingClosure
		entry.BlockNumber++
		err = db.Update(UpsertChannelEntry(entry))
		require.NoError(t, err)

		var actual proba.ChannelEntry
		err = db.View(RetrieveChannelEntry(entry.PartyA, entry.PartyB, &actual))
		require.NoError(t, err)
		assert.Equal(t, entry, actual)
	})
}

func TestChannelEntryRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		entry := unittest.ChannelEntryFixture()

		err := db.Update(UpsertChannelEntry(entry))
		require.NoError(t, err)

		err = db.Update(RemoveChannelEntry(entry.PartyA, entry.PartyB))
		require.NoError(t, err)

		var actual proba.ChannelEntry
		err = db.View(RetrieveChannelEntry(entry.PartyA, entry.PartyB, &actual))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestChannelEntryTraverse(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		expected := make(map[proba.Hash]proba.ChannelEntry)
		for i := 0; i < 5; i++ {
			entry := unittest.ChannelEntryFixture()
			expected[entry.ID()] = entry
			err := db.Update(UpsertChannelEntry(entry))
			require.NoError(t, err)
		}

		actual := make(map[proba.Hash]proba.ChannelEntry)
		err := db.View(TraverseChannelEntries(func(entry proba.ChannelEntry) error {
			actual[entry.ID()] = entry
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})
}
