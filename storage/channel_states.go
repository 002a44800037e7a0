package storage

import (
	"github.com/probanet/proba-go/model/proba"
)

// ChannelStates represents persistent storage for the locally tracked
// on-chain snapshot of channels this node participates in, keyed by
// counterparty.
type ChannelStates interface {

	// Store stores the snapshot for the given counterparty, overwriting any
	// existing one.
	Store(counterparty proba.Address, snapshot proba.ChannelSnapshot) error

	// ByCounterparty retrieves the stored snapshot for the counterparty.
	// Error returns:
	//   - ErrNotFound if no snapshot is stored
	ByCounterparty(counterparty proba.Address) (proba.ChannelSnapshot, error)

	// Remove deletes the stored snapshot for the counterparty, if any.
	Remove(counterparty proba.Address) error
}
