package proba

import (
	"math/big"

	"github.com/vmihailenco/msgpack/v4"
)

// Balance is a non-negative amount of payment-channel tokens. It is a
// distinct type from NativeBalance so the two denominations can never be
// mixed up implicitly.
type Balance big.Int

// NewBalance returns a Balance holding a copy of i.
func NewBalance(i *big.Int) *Balance {
	return (*Balance)(new(big.Int).Set(i))
}

// NewBalanceFromUint64 returns a Balance holding v.
func NewBalanceFromUint64(v uint64) *Balance {
	return (*Balance)(new(big.Int).SetUint64(v))
}

// ZeroBalance returns a zero token balance.
func ZeroBalance() *Balance {
	return (*Balance)(new(big.Int))
}

// Int returns the underlying integer value. The result must not be mutated.
func (b *Balance) Int() *big.Int {
	return (*big.Int)(b)
}

// Add returns b + other as a new Balance.
func (b *Balance) Add(other *Balance) *Balance {
	return (*Balance)(new(big.Int).Add(b.Int(), other.Int()))
}

// Sub returns b - other as a new Balance.
func (b *Balance) Sub(other *Balance) *Balance {
	return (*Balance)(new(big.Int).Sub(b.Int(), other.Int()))
}

// Cmp compares b and other, returning -1, 0 or 1.
func (b *Balance) Cmp(other *Balance) int {
	return b.Int().Cmp(other.Int())
}

// IsZero returns true if the balance is zero.
func (b *Balance) IsZero() bool {
	return b.Int().Sign() == 0
}

func (b *Balance) String() string {
	return b.Int().String()
}

// Bytes32 returns the fixed-width 32-byte big-endian encoding of the balance,
// as used in canonical ticket encodings and storage records.
func (b *Balance) Bytes32() [32]byte {
	var out [32]byte
	b.Int().FillBytes(out[:])
	return out
}

// BalanceFromBytes32 decodes a fixed-width 32-byte big-endian balance.
func BalanceFromBytes32(b [32]byte) *Balance {
	return (*Balance)(new(big.Int).SetBytes(b[:]))
}

// EncodeMsgpack encodes the balance as its fixed-width byte representation so
// that records holding balances can go through the storage codec.
func (b *Balance) EncodeMsgpack(enc *msgpack.Encoder) error {
	v := b.Bytes32()
	return enc.EncodeBytes(v[:])
}

// DecodeMsgpack decodes a balance stored by EncodeMsgpack.
func (b *Balance) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	b.Int().SetBytes(raw)
	return nil
}

// NativeBalance is a non-negative amount of the ledger's native gas token.
type NativeBalance big.Int

// NewNativeBalance returns a NativeBalance holding a copy of i.
func NewNativeBalance(i *big.Int) *NativeBalance {
	return (*NativeBalance)(new(big.Int).Set(i))
}

// Int returns the underlying integer value. The result must not be mutated.
func (b *NativeBalance) Int() *big.Int {
	return (*big.Int)(b)
}

// Cmp compares b and other, returning -1, 0 or 1.
func (b *NativeBalance) Cmp(other *NativeBalance) int {
	return b.Int().Cmp(other.Int())
}

// IsZero returns true if the balance is zero.
func (b *NativeBalance) IsZero() bool {
	return b.Int().Sign() == 0
}

func (b *NativeBalance) String() string {
	return b.Int().String()
}
