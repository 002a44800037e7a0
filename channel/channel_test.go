package channel

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probanet/proba-go/ledger/mock"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/module/metrics"
	"github.com/probanet/proba-go/storage"
	bstorage "github.com/probanet/proba-go/storage/badger"
	"github.com/probanet/proba-go/utils/unittest"
)

const closureWindow = 5

type fixture struct {
	ledger       *mock.Ledger
	self         proba.Address
	counterparty proba.Address
	channel      *Channel
	states       storage.ChannelStates
}

func withChannel(t *testing.T, f func(fx fixture)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		self := unittest.AddressFixture()
		counterparty := unittest.AddressFixture()

		l := mock.NewLedger(closureWindow)
		l.MintToken(self, proba.NewBalanceFromUint64(1000))

		states := bstorage.NewChannelStates(db)
		ch := New(
			zerolog.Nop(),
			l.Bind(self),
			self,
			counterparty,
			states,
			bstorage.NewNonces(db),
			metrics.NewNoopCollector(),
		)
		f(fixture{
			ledger:       l,
			self:         self,
			counterparty: counterparty,
			channel:      ch,
			states:       states,
		})
	})
}

func TestChannelIDSymmetric(t *testing.T) {
	withChannel(t, func(fx fixture) {
		assert.Equal(t, proba.ChannelID(fx.counterparty, fx.self), fx.channel.ID())
	})
}

func TestOpenAndQueryBalance(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))

		status, err := fx.channel.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, proba.ChannelOpen, status)

		deposit, err := fx.channel.Deposit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, deposit.Cmp(proba.NewBalanceFromUint64(100)))

		own, err := fx.channel.OwnBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, own.Cmp(proba.NewBalanceFromUint64(100)))

		open, err := fx.channel.IsOpen(ctx)
		require.NoError(t, err)
		assert.True(t, open)
	})
}

func TestIsOpenPurgesStaleLocalState(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()

		// a local record without an on-chain channel is stale
		require.NoError(t, fx.states.Store(fx.counterparty, proba.ChannelSnapshot{
			Deposit:       proba.NewBalanceFromUint64(100),
			PartyABalance: proba.NewBalanceFromUint64(100),
			StateCounter:  2,
		}))

		open, err := fx.channel.IsOpen(ctx)
		require.NoError(t, err)
		assert.False(t, open)

		_, err = fx.states.ByCounterparty(fx.counterparty)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestIsOpenDetectsLostLocalState(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))
		require.NoError(t, fx.states.Remove(fx.counterparty))

		_, err := fx.channel.IsOpen(ctx)
		assert.ErrorIs(t, err, proba.ErrStateMismatch)
	})
}

func TestTestAndSetNonce(t *testing.T) {
	withChannel(t, func(fx fixture) {
		var sig proba.Signature
		copy(sig[:], []byte("signature payload"))

		require.NoError(t, fx.channel.TestAndSetNonce(sig))
		assert.ErrorIs(t, fx.channel.TestAndSetNonce(sig), proba.ErrReplayedNonce)

		// a different signature yields a fresh nonce
		sig[0]++
		require.NoError(t, fx.channel.TestAndSetNonce(sig))
	})
}

func TestClaimBeforeWindowFails(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))

		client := fx.ledger.Bind(fx.self)
		require.NoError(t, client.InitiateChannelClosure(ctx, fx.counterparty))

		err := client.ClaimChannelClosure(ctx, fx.counterparty)
		assert.ErrorIs(t, err, proba.ErrNotClaimable)

		fx.ledger.AdvanceBlocks(closureWindow)
		require.NoError(t, client.ClaimChannelClosure(ctx, fx.counterparty))
	})
}

func TestInitiateSettlementFromOpen(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))

		done := make(chan error, 1)
		go func() {
			done <- fx.channel.InitiateSettlement(ctx)
		}()

		// feed blocks until the closure window has elapsed
		deadline := time.After(2 * time.Second)
		for {
			select {
			case err := <-done:
				require.NoError(t, err)

				// the deposit came back and the local record is gone
				balance, err := fx.ledger.Bind(fx.self).TokenBalance(ctx, fx.self)
				require.NoError(t, err)
				assert.Equal(t, 0, balance.Cmp(proba.NewBalanceFromUint64(1000)))

				_, err = fx.states.ByCounterparty(fx.counterparty)
				assert.ErrorIs(t, err, storage.ErrNotFound)

				status, err := fx.channel.Status(ctx)
				require.NoError(t, err)
				assert.Equal(t, proba.ChannelUninitialised, status)
				return
			case <-deadline:
				t.Fatal("settlement did not complete")
			case <-time.After(10 * time.Millisecond):
				fx.ledger.AdvanceBlocks(1)
			}
		}
	})
}

func TestInitiateSettlementResumesFromPending(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))
		require.NoError(t, fx.ledger.Bind(fx.self).InitiateChannelClosure(ctx, fx.counterparty))

		// window already elapsed before the (restarted) node settles
		fx.ledger.AdvanceBlocks(closureWindow)

		require.NoError(t, fx.channel.InitiateSettlement(ctx))

		status, err := fx.channel.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, proba.ChannelUninitialised, status)
	})
}

func TestInitiateSettlementNoChannel(t *testing.T) {
	withChannel(t, func(fx fixture) {
		err := fx.channel.InitiateSettlement(context.Background())
		assert.ErrorIs(t, err, proba.ErrChannelNotFound)
	})
}

func TestInitiateSettlementCancellable(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))

		cancelCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- fx.channel.InitiateSettlement(cancelCtx)
		}()

		// give the settlement time to enter the closure wait, then cancel
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("settlement did not react to cancellation")
		}
	})
}

func TestSettlerSettlesInBackground(t *testing.T) {
	withChannel(t, func(fx fixture) {
		ctx := context.Background()
		require.NoError(t, fx.channel.Open(ctx, proba.NewBalanceFromUint64(100)))

		settler := NewSettler(zerolog.Nop(), 2)
		settler.Submit(ctx, fx.channel)

		stopped := make(chan struct{})
		go func() {
			settler.StopWait()
			close(stopped)
		}()

		deadline := time.After(2 * time.Second)
		for {
			select {
			case <-stopped:
				status, err := fx.channel.Status(ctx)
				require.NoError(t, err)
				assert.Equal(t, proba.ChannelUninitialised, status)
				return
			case <-deadline:
				t.Fatal("settler did not finish")
			case <-time.After(10 * time.Millisecond):
				fx.ledger.AdvanceBlocks(1)
			}
		}
	})
}
