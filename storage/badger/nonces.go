package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// Nonces implements persistent storage for consumed signature nonces.
type Nonces struct {
	db *badger.DB
}

var _ storage.Nonces = (*Nonces)(nil)

func NewNonces(db *badger.DB) *Nonces {
	return &Nonces{db: db}
}

func (n *Nonces) Insert(channelID proba.Hash, nonce proba.Hash) error {
	// ErrAlreadyExists is passed through unwrapped, it is the replay signal
	// callers act on.
	return operation.RetryOnConflict(n.db.Update, operation.InsertNonce(channelID, nonce))
}
