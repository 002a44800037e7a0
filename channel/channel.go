// Package channel drives the lifecycle of one payment channel from the local
// node's perspective: opening, balance queries, replay protection for signed
// artifacts, and settlement all the way to the final payout.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/module/metrics"
	"github.com/probanet/proba-go/storage"
)

// Channel is the local handle on the channel with one counterparty.
type Channel struct {
	log          zerolog.Logger
	client       ledger.Client
	self         proba.Address
	counterparty proba.Address
	channelID    proba.Hash
	states       storage.ChannelStates
	nonces       storage.Nonces
	metrics      metrics.Collector

	// serializes the test-and-set below, so two goroutines cannot both pass
	// the replay check with the same nonce
	nonceMu sync.Mutex
}

func New(
	log zerolog.Logger,
	client ledger.Client,
	self proba.Address,
	counterparty proba.Address,
	states storage.ChannelStates,
	nonces storage.Nonces,
	collector metrics.Collector,
) *Channel {
	return &Channel{
		log: log.With().
			Str("component", "channel").
			Str("counterparty", counterparty.String()).
			Logger(),
		client:       client,
		self:         self,
		counterparty: counterparty,
		channelID:    proba.ChannelID(self, counterparty),
		states:       states,
		nonces:       nonces,
		metrics:      collector,
	}
}

// ID returns the canonical channel identifier.
func (c *Channel) ID() proba.Hash {
	return c.channelID
}

// Counterparty returns the other party of the channel.
func (c *Channel) Counterparty() proba.Address {
	return c.counterparty
}

// Snapshot returns the current on-chain state of the channel.
func (c *Channel) Snapshot(ctx context.Context) (proba.ChannelSnapshot, error) {
	return c.client.Channel(ctx, c.channelID)
}

// Status returns the current on-chain status of the channel.
func (c *Channel) Status(ctx context.Context) (proba.ChannelStatus, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return proba.ChannelUninitialised, err
	}
	return snapshot.Status(), nil
}

// Deposit returns the total amount locked in the channel.
func (c *Channel) Deposit(ctx context.Context) (*proba.Balance, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Deposit, nil
}

// OwnBalance returns the local node's share of the deposit.
func (c *Channel) OwnBalance(ctx context.Context) (*proba.Balance, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if proba.IsPartyA(c.self, c.counterparty) {
		return snapshot.PartyABalance, nil
	}
	return snapshot.BalanceB(), nil
}

// IsOpen reconciles the local channel record with the on-chain state. A local
// record for a channel that is closed on-chain is purged; an on-chain open
// channel without a local record means local state was lost.
func (c *Channel) IsOpen(ctx context.Context) (bool, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	open := snapshot.Status() == proba.ChannelOpen

	_, err = c.states.ByCounterparty(c.counterparty)
	haveLocal := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	switch {
	case open && haveLocal:
		return true, nil
	case open:
		return false, fmt.Errorf("channel is open on-chain but unknown locally: %w", proba.ErrStateMismatch)
	case haveLocal:
		c.log.Debug().Msg("purging local record of closed channel")
		err = c.states.Remove(c.counterparty)
		if err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, nil
	}
}

// Open funds the channel with the given amount and opens it, then records the
// resulting on-chain snapshot locally.
func (c *Channel) Open(ctx context.Context, funds *proba.Balance) error {
	err := c.client.FundChannel(ctx, c.counterparty, funds)
	if err != nil {
		return fmt.Errorf("could not fund channel: %w", err)
	}
	err = c.client.OpenChannel(ctx, c.counterparty)
	if err != nil {
		return fmt.Errorf("could not open channel: %w", err)
	}

	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	err = c.states.Store(c.counterparty, snapshot)
	if err != nil {
		return fmt.Errorf("could not record channel state: %w", err)
	}

	c.log.Info().Str("funds", funds.String()).Msg("channel opened")
	return nil
}

// TestAndSetNonce consumes the nonce derived from the given signature. It is
// the single replay choke point: the first caller for a given signature
// passes, every later one fails with ErrReplayedNonce.
func (c *Channel) TestAndSetNonce(sig proba.Signature) error {
	nonce := proba.HashOf(sig.Bytes())

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	err := c.nonces.Insert(c.channelID, nonce)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("nonce %s: %w", nonce, proba.ErrReplayedNonce)
	}
	if err != nil {
		return fmt.Errorf("could not record nonce: %w", err)
	}
	return nil
}

// InitiateSettlement drives the channel to final payout: it initiates closure
// if needed, waits out the closure window and claims. The call blocks until
// the settlement completes, the context is cancelled, or the channel turns
// out not to be settleable. It resumes correctly from any on-chain state, so
// a node restarted mid-settlement can simply call it again.
func (c *Channel) InitiateSettlement(ctx context.Context) error {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}

	switch snapshot.Status() {
	case proba.ChannelOpen:
		err = c.client.InitiateChannelClosure(ctx, c.counterparty)
		if err != nil {
			return fmt.Errorf("could not initiate closure: %w", err)
		}
		snapshot, err = c.Snapshot(ctx)
		if err != nil {
			return err
		}
		err = c.claimAfter(ctx, snapshot.ClosureTime)
		if err != nil {
			return err
		}

	case proba.ChannelPendingClosure:
		err = c.claimAfter(ctx, snapshot.ClosureTime)
		if err != nil {
			return err
		}

	case proba.ChannelUninitialised:
		return fmt.Errorf("no channel with %s: %w", c.counterparty, proba.ErrChannelNotFound)

	default:
		return fmt.Errorf("cannot settle channel in status %s", snapshot.Status())
	}

	err = c.states.Remove(c.counterparty)
	if err != nil {
		return fmt.Errorf("could not clear channel state: %w", err)
	}
	c.metrics.SettlementCompleted()
	c.log.Info().Msg("channel settled")
	return nil
}

// claimAfter waits until the closure window has elapsed and claims the
// payout.
func (c *Channel) claimAfter(ctx context.Context, closureTime uint64) error {
	err := c.waitForHeight(ctx, closureTime)
	if err != nil {
		return err
	}

	err = c.client.ClaimChannelClosure(ctx, c.counterparty)
	if err == nil {
		return nil
	}

	// the counterparty may have claimed first; if the channel is already
	// back to uninitialised, the payout happened
	snapshot, serr := c.Snapshot(ctx)
	if serr == nil && snapshot.Status() == proba.ChannelUninitialised {
		c.log.Debug().Msg("closure already claimed by counterparty")
		return nil
	}
	return fmt.Errorf("could not claim closure: %w", err)
}

// waitForHeight blocks until the ledger head reaches the target height.
func (c *Channel) waitForHeight(ctx context.Context, target uint64) error {
	head, err := c.client.HeadHeight(ctx)
	if err != nil {
		return err
	}
	if head >= target {
		return nil
	}

	blocks := make(chan ledger.Block, 16)
	sub, err := c.client.SubscribeBlocks(ctx, blocks)
	if err != nil {
		return fmt.Errorf("could not subscribe to blocks: %w", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	c.log.Debug().Uint64("target", target).Uint64("head", head).Msg("waiting out closure window")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("block subscription failed: %w", err)
		case block := <-blocks:
			if block.Number >= target {
				return nil
			}
		}
	}
}
