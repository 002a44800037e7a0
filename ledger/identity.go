package ledger

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/probanet/proba-go/model/proba"
)

// Identity is the local node's signing key together with its derived ledger
// address.
type Identity struct {
	key  *ecdsa.PrivateKey
	addr proba.Address
}

func NewIdentity(key *ecdsa.PrivateKey) *Identity {
	return &Identity{
		key:  key,
		addr: proba.PubKeyToAddress(key.PublicKey),
	}
}

// GenerateIdentity creates an identity with a fresh random key.
func GenerateIdentity() (*Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return NewIdentity(key), nil
}

// Address returns the ledger address derived from the public key.
func (i *Identity) Address() proba.Address {
	return i.addr
}

// PublicKeyBytes returns the uncompressed public key encoding.
func (i *Identity) PublicKeyBytes() []byte {
	return crypto.FromECDSAPub(&i.key.PublicKey)
}

// Sign produces a recoverable signature over the given digest.
func (i *Identity) Sign(digest proba.Hash) (proba.Signature, error) {
	raw, err := crypto.Sign(digest.Bytes(), i.key)
	if err != nil {
		return proba.Signature{}, fmt.Errorf("could not sign digest: %w", err)
	}
	return proba.BytesToSignature(raw)
}
