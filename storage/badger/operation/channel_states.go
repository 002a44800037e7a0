package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
)

func UpsertChannelState(counterparty proba.Address, snapshot proba.ChannelSnapshot) func(*badger.Txn) error {
	return upsert(makePrefix(codeChannelState, counterparty), snapshot)
}

func RetrieveChannelState(counterparty proba.Address, snapshot *proba.ChannelSnapshot) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChannelState, counterparty), snapshot)
}

func RemoveChannelState(counterparty proba.Address) func(*badger.Txn) error {
	return remove(makePrefix(codeChannelState, counterparty))
}
