package proba

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the size of an on-chain account address.
const AddressLength = 20

// Address is the 20-byte ledger address of an account, derived from the
// account's public key.
type Address [AddressLength]byte

// ZeroAddress is the address that no one owns.
var ZeroAddress = Address{}

// BytesToAddress returns the Address with value b.
//
// If b is larger than 20 bytes, b is cropped from the left. If b is smaller,
// it is left-padded with zeroes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// HexToAddress parses a hex string (with or without 0x prefix) into an Address.
func HexToAddress(h string) (Address, error) {
	if len(h) >= 2 && h[0] == '0' && (h[1] == 'x' || h[1] == 'X') {
		h = h[2:]
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return ZeroAddress, fmt.Errorf("could not decode address hex: %w", err)
	}
	if len(b) != AddressLength {
		return ZeroAddress, fmt.Errorf("invalid address length (%d != %d)", len(b), AddressLength)
	}
	return BytesToAddress(b), nil
}

// PubKeyToAddress derives the ledger address for the given secp256k1 public
// key. The derivation is deterministic, so the result can be cached per
// identity.
func PubKeyToAddress(pub ecdsa.PublicKey) Address {
	return Address(crypto.PubkeyToAddress(pub))
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the hex string representation of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// IsZero returns true if this is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Cmp compares two addresses in the canonical (lexicographic byte) order.
func (a Address) Cmp(other Address) int {
	return bytes.Compare(a[:], other[:])
}
