package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// ChannelStates implements persistent storage for tracked on-chain channel
// snapshots.
type ChannelStates struct {
	db *badger.DB
}

var _ storage.ChannelStates = (*ChannelStates)(nil)

func NewChannelStates(db *badger.DB) *ChannelStates {
	return &ChannelStates{db: db}
}

func (c *ChannelStates) Store(counterparty proba.Address, snapshot proba.ChannelSnapshot) error {
	err := operation.RetryOnConflict(c.db.Update, operation.UpsertChannelState(counterparty, snapshot))
	if err != nil {
		return fmt.Errorf("could not store channel state: %w", err)
	}
	return nil
}

func (c *ChannelStates) ByCounterparty(counterparty proba.Address) (proba.ChannelSnapshot, error) {
	var snapshot proba.ChannelSnapshot
	err := c.db.View(operation.RetrieveChannelState(counterparty, &snapshot))
	if err != nil {
		return proba.ChannelSnapshot{}, err
	}
	return snapshot, nil
}

func (c *ChannelStates) Remove(counterparty proba.Address) error {
	err := operation.RetryOnConflict(c.db.Update, operation.RemoveChannelState(counterparty))
	if err != nil {
		return fmt.Errorf("could not remove channel state: %w", err)
	}
	return nil
}
