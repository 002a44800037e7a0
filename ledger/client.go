// Package ledger defines the interface to the settlement ledger: the
// contract calls and event subscriptions the control plane depends on. The
// mock subpackage provides an in-memory implementation for tests and local
// runs.
package ledger

import (
	"context"

	"github.com/probanet/proba-go/model/proba"
)

// Block is a new-head notification from the ledger.
type Block struct {
	Number uint64
}

// Subscription is a handle on a running event or block subscription.
type Subscription interface {

	// Unsubscribe cancels the subscription and releases its resources. The
	// delivery channel is not closed.
	Unsubscribe() error

	// Err returns a channel that receives the terminal error if the
	// subscription fails. It receives nothing after Unsubscribe.
	Err() <-chan error
}

// Client is a connection to the settlement ledger, bound to one local caller:
// all state-changing calls are signed by and attributed to that caller.
type Client interface {

	// HeadHeight returns the current head block height.
	HeadHeight(ctx context.Context) (uint64, error)

	// SubscribeBlocks delivers new-head notifications on the given channel.
	SubscribeBlocks(ctx context.Context, blocks chan<- Block) (Subscription, error)

	// SubscribeChannelOpened delivers channel-opened events on the given
	// channel, starting with a replay of historical events from the given
	// block height.
	SubscribeChannelOpened(ctx context.Context, from uint64, events chan<- proba.ChannelOpened) (Subscription, error)

	// SubscribeChannelClosed delivers channel-closed events, starting with a
	// replay from the given block height.
	SubscribeChannelClosed(ctx context.Context, from uint64, events chan<- proba.ChannelClosed) (Subscription, error)

	// SubscribeSecretHashSet delivers commitment events, starting with a
	// replay from the given block height.
	SubscribeSecretHashSet(ctx context.Context, from uint64, events chan<- proba.SecretHashSet) (Subscription, error)

	// Account returns the on-chain account state of the given address.
	Account(ctx context.Context, addr proba.Address) (proba.AccountState, error)

	// Channel returns the on-chain snapshot of the channel with the given
	// identifier. A channel that does not exist is returned as an
	// uninitialised snapshot with zero balances.
	Channel(ctx context.Context, channelID proba.Hash) (proba.ChannelSnapshot, error)

	// TokenBalance returns the token balance of the given address.
	TokenBalance(ctx context.Context, addr proba.Address) (*proba.Balance, error)

	// NativeBalance returns the native balance of the given address, used to
	// pay for calls.
	NativeBalance(ctx context.Context, addr proba.Address) (*proba.NativeBalance, error)

	// SetSecretHash publishes the caller's commitment.
	SetSecretHash(ctx context.Context, secretHash proba.Hash) error

	// FundChannel moves amount from the caller's token balance into the
	// deposit of the channel with the counterparty.
	FundChannel(ctx context.Context, counterparty proba.Address, amount *proba.Balance) error

	// OpenChannel opens the funded channel with the counterparty.
	OpenChannel(ctx context.Context, counterparty proba.Address) error

	// InitiateChannelClosure starts the closure window of the open channel
	// with the counterparty.
	InitiateChannelClosure(ctx context.Context, counterparty proba.Address) error

	// ClaimChannelClosure finalizes the closure of the channel with the
	// counterparty and pays out the deposit.
	// Error returns:
	//   - proba.ErrNotClaimable if the closure window has not elapsed
	ClaimChannelClosure(ctx context.Context, counterparty proba.Address) error

	// RedeemTicket submits a winning ticket issued to the caller. The ticket
	// is reconstructed on-chain from the caller, the response and the given
	// fields, and the signature decides the issuing counterparty.
	RedeemTicket(ctx context.Context, preimage, response proba.Hash, epoch uint64, amount *proba.Balance, winProb proba.Hash, sig proba.Signature) error
}
