package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
)

// InsertNonce marks the nonce as consumed for the channel. It fails with
// storage.ErrAlreadyExists if the nonce was consumed before, which is the
// replay check for signed artifacts.
func InsertNonce(channelID proba.Hash, nonce proba.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeNonce, channelID, nonce), nonce)
}
