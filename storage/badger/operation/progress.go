package operation

import (
	"github.com/dgraph-io/badger/v2"
)

func UpsertConfirmedHeight(height uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeConfirmedHeight), height)
}

func RetrieveConfirmedHeight(height *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeConfirmedHeight), height)
}
