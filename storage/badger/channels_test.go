package badger

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/utils/unittest"
)

func TestChannelsStore(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		channels, err := NewChannels(db, 10)
		require.NoError(t, err)

		entry := unittest.ChannelEntryFixture()
		require.NoError(t, channels.Upsert(entry))

		// lookup works in either party order
		actual, err := channels.ByParties(entry.PartyA, entry.PartyB)
		require.NoError(t, err)
		assert.Equal(t, entry, actual)

		actual, err = channels.ByParties(entry.PartyB, entry.PartyA)
		require.NoError(t, err)
		assert.Equal(t, entry, actual)

		byA, err := channels.ByParty(entry.PartyA)
		require.NoError(t, err)
		assert.Equal(t, []proba.ChannelEntry{entry}, byA)

		all, err := channels.All()
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, channels.Remove(entry.PartyB, entry.PartyA))
		_, err = channels.ByParties(entry.PartyA, entry.PartyB)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestChannelsCacheInvalidation(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		channels, err := NewChannels(db, 10)
		require.NoError(t, err)

		entry := unittest.ChannelEntryFixture()
		require.NoError(t, channels.Upsert(entry))

		// warm the cache
		_, err = channels.ByParties(entry.PartyA, entry.PartyB)
		require.NoError(t, err)

		updated := entry
		updated.Status = proba.ChannelPendingClosure
		updated.BlockNumber++
		require.NoError(t, channels.Upsert(updated))

		actual, err := channels.ByParties(entry.PartyA, entry.PartyB)
		require.NoError(t, err)
		assert.Equal(t, updated, actual)
	})
}

func TestNoncesReplay(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		nonces := NewNonces(db)

		channelID := unittest.HashFixture()
		nonce := unittest.HashFixture()

		require.NoError(t, nonces.Insert(channelID, nonce))
		assert.ErrorIs(t, nonces.Insert(channelID, nonce), storage.ErrAlreadyExists)
	})
}

func TestCommitmentsStore(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		commitments := NewCommitments(db)

		_, err := commitments.Head()
		assert.ErrorIs(t, err, storage.ErrNotFound)

		value := unittest.HashFixture()
		require.NoError(t, commitments.StoreCheckpoint(0, value))
		require.NoError(t, commitments.SetHead(100000))

		actual, err := commitments.Checkpoint(0)
		require.NoError(t, err)
		assert.Equal(t, value, actual)

		head, err := commitments.Head()
		require.NoError(t, err)
		assert.Equal(t, uint64(100000), head)
	})
}

func TestProgressStore(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		progress := NewProgress(db)

		_, err := progress.ConfirmedHeight()
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, progress.SetConfirmedHeight(7))
		height, err := progress.ConfirmedHeight()
		require.NoError(t, err)
		assert.Equal(t, uint64(7), height)
	})
}

func TestTicketsStore(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		tickets := NewTickets(db)

		key := unittest.KeyFixture()
		channelID := unittest.HashFixture()
		ack := unittest.AcknowledgedTicketFixture(key, unittest.AddressFixture())

		require.NoError(t, tickets.Store(channelID, ack))

		actual, err := tickets.ByChallenge(channelID, ack.Ticket.Ticket.Challenge)
		require.NoError(t, err)
		assert.False(t, actual.Redeemed)

		actual.Redeemed = true
		require.NoError(t, tickets.Store(channelID, actual))

		actual, err = tickets.ByChallenge(channelID, ack.Ticket.Ticket.Challenge)
		require.NoError(t, err)
		assert.True(t, actual.Redeemed)

		byChannel, err := tickets.ByChannel(channelID)
		require.NoError(t, err)
		assert.Len(t, byChannel, 1)
	})
}
