package proba

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashLength is the size of a digest, channel id, secret or challenge.
const HashLength = 32

// Hash is a 32-byte Keccak-256 digest. Equality is byte-wise.
type Hash [HashLength]byte

// ZeroHash is the all-zero digest.
var ZeroHash = Hash{}

// HashOf returns the Keccak-256 digest over the concatenation of the given
// byte slices. Every digest in the protocol (channel ids, ticket hashes,
// secret chains, luck values) is computed through this single function.
func HashOf(data ...[]byte) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(data...))
	return h
}

// BytesToHash returns the Hash with value b, left-cropped or left-padded to
// 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash parses a hex string (with or without 0x prefix) into a Hash.
func HexToHash(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("could not decode hash hex: %w", err)
	}
	if len(b) != HashLength {
		return ZeroHash, fmt.Errorf("invalid hash length (%d != %d)", len(b), HashLength)
	}
	return BytesToHash(b), nil
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero returns true if this is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}
