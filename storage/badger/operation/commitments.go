package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
)

func UpsertCheckpoint(index uint64, value proba.Hash) func(*badger.Txn) error {
	return upsert(makePrefix(codeCheckpoint, index), value)
}

func RetrieveCheckpoint(index uint64, value *proba.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCheckpoint, index), value)
}

func UpsertChainHead(index uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeChainHead), index)
}

func RetrieveChainHead(index *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChainHead), index)
}
