// Package commitment manages the local hash chain behind the on-chain
// commitment: generation with periodic checkpoints, preimage search when a
// winning ticket must be redeemed, and reconciliation between local and
// on-chain state.
package commitment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
)

const (
	// DefaultChainLength is the number of hash iterations in a full chain.
	DefaultChainLength = 100000
	// DefaultStepWidth is the spacing between stored checkpoints.
	DefaultStepWidth = 10000
)

// cancelCheckInterval bounds how many hashes are computed between context
// checks during chain generation.
const cancelCheckInterval = 4096

// Config holds the injected chain parameters.
type Config struct {
	ChainLength uint64
	StepWidth   uint64

	// Debug derives the chain seed from the public key instead of fresh
	// randomness, so a wiped node can regenerate the identical chain.
	Debug bool
}

func DefaultConfig() Config {
	return Config{
		ChainLength: DefaultChainLength,
		StepWidth:   DefaultStepWidth,
	}
}

// Manager owns the local hash chain of one identity.
type Manager struct {
	log      zerolog.Logger
	conf     Config
	identity *ledger.Identity
	client   ledger.Client
	store    storage.Commitments
}

func NewManager(
	log zerolog.Logger,
	conf Config,
	identity *ledger.Identity,
	client ledger.Client,
	store storage.Commitments,
) (*Manager, error) {
	if conf.ChainLength == 0 || conf.StepWidth == 0 {
		return nil, fmt.Errorf("chain length and step width must be positive")
	}
	if conf.ChainLength%conf.StepWidth != 0 {
		return nil, fmt.Errorf("step width %d must divide chain length %d", conf.StepWidth, conf.ChainLength)
	}
	return &Manager{
		log:      log.With().Str("component", "commitment").Logger(),
		conf:     conf,
		identity: identity,
		client:   client,
		store:    store,
	}, nil
}

// Create generates a fresh hash chain, stores a checkpoint at every step
// boundary and returns the terminal value, which is the value to publish
// on-chain. Any previously stored chain is overwritten.
func (m *Manager) Create(ctx context.Context) (proba.Hash, error) {
	seed, err := m.seed()
	if err != nil {
		return proba.ZeroHash, err
	}

	current := seed
	for index := uint64(0); index < m.conf.ChainLength; index++ {
		if index%cancelCheckInterval == 0 && ctx.Err() != nil {
			return proba.ZeroHash, ctx.Err()
		}
		if index%m.conf.StepWidth == 0 {
			err = m.store.StoreCheckpoint(index, current)
			if err != nil {
				return proba.ZeroHash, fmt.Errorf("could not store checkpoint: %w", err)
			}
		}
		current = proba.HashOf(current.Bytes())
	}

	err = m.store.SetHead(m.conf.ChainLength)
	if err != nil {
		return proba.ZeroHash, fmt.Errorf("could not store chain head: %w", err)
	}

	m.log.Info().Uint64("length", m.conf.ChainLength).Msg("hash chain generated")
	return current, nil
}

func (m *Manager) seed() (proba.Hash, error) {
	if m.conf.Debug {
		return proba.HashOf(m.identity.PublicKeyBytes()), nil
	}
	var seed proba.Hash
	_, err := rand.Read(seed[:])
	if err != nil {
		return proba.ZeroHash, fmt.Errorf("could not read randomness: %w", err)
	}
	return seed, nil
}

// FindPreimage searches the chain for the value hashing to target and returns
// it along with its chain index. The search walks from the newest checkpoint
// backwards, computing at most StepWidth hashes per checkpoint.
func (m *Manager) FindPreimage(target proba.Hash) (proba.Hash, uint64, error) {
	_, err := m.store.Head()
	if errors.Is(err, storage.ErrNotFound) {
		return proba.ZeroHash, 0, fmt.Errorf("no hash chain generated: %w", proba.ErrPreimageNotFound)
	}
	if err != nil {
		return proba.ZeroHash, 0, err
	}

	for offset := m.conf.StepWidth; offset <= m.conf.ChainLength; offset += m.conf.StepWidth {
		start := m.conf.ChainLength - offset

		value, err := m.store.Checkpoint(start)
		if err != nil {
			return proba.ZeroHash, 0, fmt.Errorf("could not load checkpoint %d: %w", start, err)
		}

		for index := start; index < start+m.conf.StepWidth; index++ {
			next := proba.HashOf(value.Bytes())
			if next == target {
				return value, index, nil
			}
			value = next
		}
	}

	return proba.ZeroHash, 0, proba.ErrPreimageNotFound
}

// MarkDisclosed records that the chain value at the given index is now the
// on-chain commitment, after a redemption disclosed its successor's preimage.
func (m *Manager) MarkDisclosed(index uint64) error {
	return m.store.SetHead(index)
}

// Check reconciles local chain state with the on-chain commitment and
// returns once both sides agree. It covers a fresh node (generate and
// publish), a node whose publish never landed (re-publish), a node that
// missed redemptions while offline (re-sync the head) and a wiped node
// (regenerate in debug mode, fail otherwise).
func (m *Manager) Check(ctx context.Context) error {
	account, err := m.client.Account(ctx, m.identity.Address())
	if err != nil {
		return fmt.Errorf("could not load on-chain account: %w", err)
	}

	head, err := m.store.Head()
	haveLocal := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	switch {
	case !account.HasCommitment() && !haveLocal:
		terminal, err := m.Create(ctx)
		if err != nil {
			return err
		}
		err = m.client.SetSecretHash(ctx, terminal)
		if err != nil {
			return fmt.Errorf("could not publish commitment: %w", err)
		}
		m.log.Info().Msg("commitment created and published")
		return nil

	case !account.HasCommitment():
		// published value never landed, push the current head again
		value, err := m.valueAt(head)
		if err != nil {
			return err
		}
		err = m.client.SetSecretHash(ctx, value)
		if err != nil {
			return fmt.Errorf("could not publish commitment: %w", err)
		}
		m.log.Info().Uint64("head", head).Msg("commitment re-published")
		return nil

	case !haveLocal:
		if !m.conf.Debug {
			return fmt.Errorf("on-chain commitment exists but local chain is missing: %w", proba.ErrStateMismatch)
		}
		// the debug seed is deterministic, so the chain can be rebuilt and
		// the on-chain value located on it
		_, err := m.Create(ctx)
		if err != nil {
			return err
		}
		index, err := m.indexOf(account.SecretHash)
		if err != nil {
			return fmt.Errorf("regenerated chain does not contain on-chain commitment: %w", proba.ErrStateMismatch)
		}
		err = m.store.SetHead(index)
		if err != nil {
			return err
		}
		m.log.Info().Uint64("head", index).Msg("commitment regenerated from debug seed")
		return nil

	default:
		value, err := m.valueAt(head)
		if err != nil {
			return err
		}
		if value == account.SecretHash {
			return nil
		}
		// redemptions may have advanced the on-chain value while we were
		// offline, locate it on the chain
		index, err := m.indexOf(account.SecretHash)
		if err != nil {
			return fmt.Errorf("on-chain commitment is not part of local chain: %w", proba.ErrStateMismatch)
		}
		err = m.store.SetHead(index)
		if err != nil {
			return err
		}
		m.log.Info().Uint64("head", index).Msg("commitment head re-synced")
		return nil
	}
}

// valueAt computes the chain value at the given index from the nearest
// checkpoint at or below it.
func (m *Manager) valueAt(index uint64) (proba.Hash, error) {
	if index > m.conf.ChainLength {
		return proba.ZeroHash, fmt.Errorf("index %d beyond chain length %d", index, m.conf.ChainLength)
	}
	start := index - index%m.conf.StepWidth
	if start == m.conf.ChainLength {
		// the terminal value is not checkpointed, walk from the last one
		start -= m.conf.StepWidth
	}
	value, err := m.store.Checkpoint(start)
	if err != nil {
		return proba.ZeroHash, fmt.Errorf("could not load checkpoint %d: %w", start, err)
	}
	for i := start; i < index; i++ {
		value = proba.HashOf(value.Bytes())
	}
	return value, nil
}

// indexOf locates the chain index holding the given value, newest checkpoint
// first.
func (m *Manager) indexOf(target proba.Hash) (uint64, error) {
	for offset := m.conf.StepWidth; offset <= m.conf.ChainLength; offset += m.conf.StepWidth {
		start := m.conf.ChainLength - offset

		value, err := m.store.Checkpoint(start)
		if err != nil {
			return 0, fmt.Errorf("could not load checkpoint %d: %w", start, err)
		}

		for index := start; index <= start+m.conf.StepWidth; index++ {
			if value == target {
				return index, nil
			}
			value = proba.HashOf(value.Bytes())
		}
	}
	return 0, proba.ErrPreimageNotFound
}
