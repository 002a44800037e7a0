package commitment

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/ledger/mock"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	bstorage "github.com/probanet/proba-go/storage/badger"
	"github.com/probanet/proba-go/utils/unittest"
)

func withManager(t *testing.T, conf Config, f func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		identity, err := ledger.GenerateIdentity()
		require.NoError(t, err)

		l := mock.NewLedger(10)
		client := l.Bind(identity.Address())
		store := bstorage.NewCommitments(db)

		m, err := NewManager(zerolog.Nop(), conf, identity, client, store)
		require.NoError(t, err)
		f(m, store, client, identity)
	})
}

func smallConfig() Config {
	return Config{ChainLength: 1000, StepWidth: 100}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	identity, err := ledger.GenerateIdentity()
	require.NoError(t, err)

	_, err = NewManager(zerolog.Nop(), Config{ChainLength: 1000, StepWidth: 300}, identity, nil, nil)
	assert.Error(t, err)

	_, err = NewManager(zerolog.Nop(), Config{ChainLength: 0, StepWidth: 100}, identity, nil, nil)
	assert.Error(t, err)
}

func TestCreateStoresCheckpoints(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		terminal, err := m.Create(context.Background())
		require.NoError(t, err)

		// checkpoints exist at every step boundary below the chain length
		for index := uint64(0); index < 1000; index += 100 {
			_, err := store.Checkpoint(index)
			require.NoError(t, err, "missing checkpoint %d", index)
		}
		// the terminal value is not checkpointed
		_, err = store.Checkpoint(1000)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		head, err := store.Head()
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), head)

		// the terminal value is the seed hashed chain-length times
		seed, err := store.Checkpoint(0)
		require.NoError(t, err)
		value := seed
		for i := 0; i < 1000; i++ {
			value = proba.HashOf(value.Bytes())
		}
		assert.Equal(t, value, terminal)
	})
}

func TestFindPreimageRoundTrip(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, err := m.Create(context.Background())
		require.NoError(t, err)

		target, err := m.valueAt(550)
		require.NoError(t, err)

		preimage, index, err := m.FindPreimage(target)
		require.NoError(t, err)
		assert.Equal(t, uint64(549), index)
		assert.Equal(t, target, proba.HashOf(preimage.Bytes()))
	})
}

func TestFindPreimageFullChain(t *testing.T) {
	if testing.Short() {
		t.Skip("full-length chain generation")
	}
	withManager(t, DefaultConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, err := m.Create(context.Background())
		require.NoError(t, err)

		target, err := m.valueAt(55000)
		require.NoError(t, err)

		preimage, index, err := m.FindPreimage(target)
		require.NoError(t, err)
		assert.Equal(t, uint64(54999), index)
		assert.Equal(t, target, proba.HashOf(preimage.Bytes()))
	})
}

func TestFindPreimageUnknownTarget(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, err := m.Create(context.Background())
		require.NoError(t, err)

		_, _, err = m.FindPreimage(unittest.HashFixture())
		assert.ErrorIs(t, err, proba.ErrPreimageNotFound)
	})
}

func TestFindPreimageWithoutChain(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, _, err := m.FindPreimage(unittest.HashFixture())
		assert.ErrorIs(t, err, proba.ErrPreimageNotFound)
	})
}

func TestCreateCancellable(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Create(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCheckFreshNode(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		require.NoError(t, m.Check(context.Background()))

		// chain generated and commitment published
		head, err := store.Head()
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), head)

		account, err := client.Account(context.Background(), identity.Address())
		require.NoError(t, err)
		terminal, err := m.valueAt(1000)
		require.NoError(t, err)
		assert.Equal(t, terminal, account.SecretHash)

		// a second check finds both sides in agreement
		require.NoError(t, m.Check(context.Background()))
	})
}

func TestCheckRepublishesLocalOnly(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, err := m.Create(context.Background())
		require.NoError(t, err)

		// the publish never happened; Check pushes the head value
		require.NoError(t, m.Check(context.Background()))

		account, err := client.Account(context.Background(), identity.Address())
		require.NoError(t, err)
		terminal, err := m.valueAt(1000)
		require.NoError(t, err)
		assert.Equal(t, terminal, account.SecretHash)
	})
}

func TestCheckWipedNodeDebug(t *testing.T) {
	conf := smallConfig()
	conf.Debug = true
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		identity, err := ledger.GenerateIdentity()
		require.NoError(t, err)
		l := mock.NewLedger(10)
		client := l.Bind(identity.Address())

		first, err := NewManager(zerolog.Nop(), conf, identity, client, bstorage.NewCommitments(db))
		require.NoError(t, err)
		require.NoError(t, first.Check(context.Background()))

		// a wiped node regenerates the identical chain from the debug seed
		unittest.RunWithBadgerDB(t, func(fresh *badger.DB) {
			second, err := NewManager(zerolog.Nop(), conf, identity, client, bstorage.NewCommitments(fresh))
			require.NoError(t, err)
			require.NoError(t, second.Check(context.Background()))

			head, err := bstorage.NewCommitments(fresh).Head()
			require.NoError(t, err)
			assert.Equal(t, uint64(1000), head)
		})
	})
}

func TestCheckWipedNodeWithoutDebug(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		identity, err := ledger.GenerateIdentity()
		require.NoError(t, err)
		l := mock.NewLedger(10)
		client := l.Bind(identity.Address())

		first, err := NewManager(zerolog.Nop(), smallConfig(), identity, client, bstorage.NewCommitments(db))
		require.NoError(t, err)
		require.NoError(t, first.Check(context.Background()))

		unittest.RunWithBadgerDB(t, func(fresh *badger.DB) {
			second, err := NewManager(zerolog.Nop(), smallConfig(), identity, client, bstorage.NewCommitments(fresh))
			require.NoError(t, err)
			assert.ErrorIs(t, second.Check(context.Background()), proba.ErrStateMismatch)
		})
	})
}

func TestCheckResyncsHeadAfterRedemptions(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		require.NoError(t, m.Check(context.Background()))

		// a redemption disclosed the preimage at index 999 while the local
		// head still points at the terminal value
		value, err := m.valueAt(999)
		require.NoError(t, err)
		require.NoError(t, client.SetSecretHash(context.Background(), value))

		require.NoError(t, m.Check(context.Background()))

		head, err := store.Head()
		require.NoError(t, err)
		assert.Equal(t, uint64(999), head)
	})
}

func TestMarkDisclosed(t *testing.T) {
	withManager(t, smallConfig(), func(m *Manager, store storage.Commitments, client ledger.Client, identity *ledger.Identity) {
		_, err := m.Create(context.Background())
		require.NoError(t, err)

		require.NoError(t, m.MarkDisclosed(550))
		head, err := store.Head()
		require.NoError(t, err)
		assert.Equal(t, uint64(550), head)
	})
}
