package storage

import (
	"github.com/probanet/proba-go/model/proba"
)

// Nonces represents persistent storage for consumed signature nonces, keyed
// by channel. Insertion is the single replay check for signed artifacts.
type Nonces interface {

	// Insert stores the nonce for the given channel.
	// Error returns:
	//   - ErrAlreadyExists if the nonce was already consumed for the channel
	Insert(channelID proba.Hash, nonce proba.Hash) error
}
