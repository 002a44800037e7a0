package proba

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of a recoverable secp256k1 signature
// (R || S || V).
const SignatureLength = 65

// Signature is a recoverable secp256k1 signature over a 32-byte digest.
type Signature [SignatureLength]byte

// BytesToSignature copies a byte slice into a signature.
func BytesToSignature(data []byte) (Signature, error) {
	var sig Signature
	if len(data) != SignatureLength {
		return sig, fmt.Errorf("invalid signature length: %d, expected %d", len(data), SignatureLength)
	}
	copy(sig[:], data)
	return sig, nil
}

func (s Signature) Bytes() []byte {
	return s[:]
}

// RecoverSigner recovers the address of the key that produced the signature
// over the given digest.
func RecoverSigner(digest Hash, sig Signature) (Address, error) {
	pub, err := crypto.SigToPub(digest.Bytes(), sig.Bytes())
	if err != nil {
		return ZeroAddress, fmt.Errorf("could not recover public key: %w", err)
	}
	return PubKeyToAddress(*pub), nil
}
