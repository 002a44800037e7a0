package ticket

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probanet/proba-go/channel"
	"github.com/probanet/proba-go/commitment"
	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/ledger/mock"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/module/metrics"
	bstorage "github.com/probanet/proba-go/storage/badger"
	"github.com/probanet/proba-go/utils/unittest"
)

var chainConf = commitment.Config{ChainLength: 1000, StepWidth: 100}

type party struct {
	identity    *ledger.Identity
	client      *mock.Client
	protocol    *Protocol
	commitments *commitment.Manager
	stores      *bstorage.All
}

func newParty(t *testing.T, l *mock.Ledger, db *badger.DB) *party {
	identity, err := ledger.GenerateIdentity()
	require.NoError(t, err)

	client := l.Bind(identity.Address())
	stores, err := bstorage.InitAll(db)
	require.NoError(t, err)

	commitments, err := commitment.NewManager(zerolog.Nop(), chainConf, identity, client, stores.Commitments)
	require.NoError(t, err)

	protocol := NewProtocol(zerolog.Nop(), identity, client, commitments, stores.Tickets, metrics.NewNoopCollector())
	return &party{
		identity:    identity,
		client:      client,
		protocol:    protocol,
		commitments: commitments,
		stores:      stores,
	}
}

func (p *party) channelWith(counterparty proba.Address) *channel.Channel {
	return channel.New(
		zerolog.Nop(),
		p.client,
		p.identity.Address(),
		counterparty,
		p.stores.ChannelStates,
		p.stores.Nonces,
		metrics.NewNoopCollector(),
	)
}

func withParties(t *testing.T, f func(l *mock.Ledger, alice, bob *party)) {
	unittest.RunWithBadgerDB(t, func(aliceDB *badger.DB) {
		unittest.RunWithBadgerDB(t, func(bobDB *badger.DB) {
			l := mock.NewLedger(10)
			alice := newParty(t, l, aliceDB)
			bob := newParty(t, l, bobDB)

			l.MintToken(alice.identity.Address(), proba.NewBalanceFromUint64(1000))
			l.MintToken(bob.identity.Address(), proba.NewBalanceFromUint64(1000))

			f(l, alice, bob)
		})
	})
}

// openChannel funds the channel 70/30 between alice and bob and opens it.
func openChannel(t *testing.T, alice, bob *party) {
	ctx := context.Background()
	require.NoError(t, alice.client.FundChannel(ctx, bob.identity.Address(), proba.NewBalanceFromUint64(70)))
	require.NoError(t, bob.client.FundChannel(ctx, alice.identity.Address(), proba.NewBalanceFromUint64(30)))
	require.NoError(t, alice.client.OpenChannel(ctx, bob.identity.Address()))
}

func issueAndAcknowledge(t *testing.T, alice, bob *party, amount uint64, winProb proba.Hash) proba.AcknowledgedTicket {
	ctx := context.Background()
	aliceCh := alice.channelWith(bob.identity.Address())
	bobCh := bob.channelWith(alice.identity.Address())

	response := unittest.HashFixture()
	challenge := proba.HashOf(response.Bytes())

	signed, err := alice.protocol.Create(ctx, aliceCh, proba.NewBalanceFromUint64(amount), challenge, winProb)
	require.NoError(t, err)

	require.NoError(t, bob.protocol.Verify(bobCh, signed, alice.identity.Address()))

	ack, err := bob.protocol.Acknowledge(bobCh, signed, response)
	require.NoError(t, err)
	return ack
}

func TestRedeemAdjustsBalances(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		require.NoError(t, bob.commitments.Check(ctx))
		openChannel(t, alice, bob)

		ack := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())

		bobCh := bob.channelWith(alice.identity.Address())
		require.NoError(t, bob.protocol.Submit(ctx, bobCh, ack))

		// the 70/30 split became 60/40
		aliceBalance, err := alice.channelWith(bob.identity.Address()).OwnBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, aliceBalance.Cmp(proba.NewBalanceFromUint64(60)))

		bobBalance, err := bobCh.OwnBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, bobBalance.Cmp(proba.NewBalanceFromUint64(40)))

		// a second submission of the same ticket fails
		stored, err := bob.protocol.Stored(bobCh, ack.Ticket.Ticket.Challenge)
		require.NoError(t, err)
		assert.True(t, stored.Redeemed)
		assert.Error(t, bob.protocol.Submit(ctx, bobCh, stored))
	})
}

func TestVerifyReplayedTicket(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		openChannel(t, alice, bob)

		aliceCh := alice.channelWith(bob.identity.Address())
		bobCh := bob.channelWith(alice.identity.Address())

		response := unittest.HashFixture()
		signed, err := alice.protocol.Create(ctx, aliceCh, proba.NewBalanceFromUint64(5), proba.HashOf(response.Bytes()), proba.AlwaysWinningProb())
		require.NoError(t, err)

		require.NoError(t, bob.protocol.Verify(bobCh, signed, alice.identity.Address()))
		assert.ErrorIs(t, bob.protocol.Verify(bobCh, signed, alice.identity.Address()), proba.ErrReplayedNonce)
	})
}

func TestVerifyWrongIssuer(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		openChannel(t, alice, bob)

		aliceCh := alice.channelWith(bob.identity.Address())
		bobCh := bob.channelWith(alice.identity.Address())

		response := unittest.HashFixture()
		signed, err := alice.protocol.Create(ctx, aliceCh, proba.NewBalanceFromUint64(5), proba.HashOf(response.Bytes()), proba.AlwaysWinningProb())
		require.NoError(t, err)

		err = bob.protocol.Verify(bobCh, signed, unittest.AddressFixture())
		assert.ErrorIs(t, err, proba.ErrInvalidSignature)
	})
}

func TestAcknowledgeWrongResponse(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		openChannel(t, alice, bob)

		aliceCh := alice.channelWith(bob.identity.Address())
		bobCh := bob.channelWith(alice.identity.Address())

		response := unittest.HashFixture()
		signed, err := alice.protocol.Create(ctx, aliceCh, proba.NewBalanceFromUint64(5), proba.HashOf(response.Bytes()), proba.AlwaysWinningProb())
		require.NoError(t, err)

		_, err = bob.protocol.Acknowledge(bobCh, signed, unittest.HashFixture())
		assert.ErrorIs(t, err, proba.ErrInvalidResponse)
	})
}

func TestSubmitLosingTicket(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		require.NoError(t, bob.commitments.Check(ctx))
		openChannel(t, alice, bob)

		ack := issueAndAcknowledge(t, alice, bob, 10, proba.NeverWinningProb())

		bobCh := bob.channelWith(alice.identity.Address())
		err := bob.protocol.Submit(ctx, bobCh, ack)
		assert.ErrorIs(t, err, proba.ErrTicketNotWinning)

		// nothing moved
		bobBalance, err := bobCh.OwnBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, bobBalance.Cmp(proba.NewBalanceFromUint64(30)))
	})
}

func TestSubmitWithoutCommitment(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		openChannel(t, alice, bob)

		ack := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())

		bobCh := bob.channelWith(alice.identity.Address())
		err := bob.protocol.Submit(ctx, bobCh, ack)
		assert.ErrorIs(t, err, proba.ErrPreimageNotFound)
	})
}

func TestStaleEpochRejected(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		require.NoError(t, bob.commitments.Check(ctx))
		openChannel(t, alice, bob)

		// both tickets are issued against bob's current epoch
		first := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())
		second := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())

		bobCh := bob.channelWith(alice.identity.Address())
		require.NoError(t, bob.protocol.Submit(ctx, bobCh, first))

		// redeeming the first incremented the epoch, the second is now stale
		assert.Error(t, bob.protocol.Submit(ctx, bobCh, second))
	})
}

func TestSubsequentEpochTicket(t *testing.T) {
	withParties(t, func(l *mock.Ledger, alice, bob *party) {
		ctx := context.Background()
		require.NoError(t, bob.commitments.Check(ctx))
		openChannel(t, alice, bob)

		first := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())
		bobCh := bob.channelWith(alice.identity.Address())
		require.NoError(t, bob.protocol.Submit(ctx, bobCh, first))

		// a ticket issued after the epoch bump redeems fine
		next := issueAndAcknowledge(t, alice, bob, 10, proba.AlwaysWinningProb())
		require.NoError(t, bob.protocol.Submit(ctx, bobCh, next))

		bobBalance, err := bobCh.OwnBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, bobBalance.Cmp(proba.NewBalanceFromUint64(50)))
	})
}
