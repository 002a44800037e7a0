package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
)

func UpsertChannelEntry(entry proba.ChannelEntry) func(*badger.Txn) error {
	return upsert(makePrefix(codeChannelEntry, entry.PartyA, entry.PartyB), entry)
}

func RetrieveChannelEntry(partyA, partyB proba.Address, entry *proba.ChannelEntry) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChannelEntry, partyA, partyB), entry)
}

func RemoveChannelEntry(partyA, partyB proba.Address) func(*badger.Txn) error {
	return remove(makePrefix(codeChannelEntry, partyA, partyB))
}

// TraverseChannelEntries iterates over all stored channel entries and calls
// handle for each of them.
func TraverseChannelEntries(handle func(entry proba.ChannelEntry) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeChannelEntry), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool {
			return true
		}
		var entry proba.ChannelEntry
		create := func() interface{} {
			return &entry
		}
		handler := func() error {
			return handle(entry)
		}
		return check, create, handler
	})
}
