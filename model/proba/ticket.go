package proba

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Ticket is the unsigned body of a probabilistic micropayment. The encoding
// is a fixed layout so that hashing and signing are deterministic across
// implementations:
//
//	counterparty (20) | challenge (32) | epoch (8, BE) | amount (32, BE) | winProb (32)
type Ticket struct {
	Counterparty Address
	Challenge    Hash
	Epoch        uint64
	Amount       *Balance
	WinProb      Hash
}

// EncodedTicketLength is the length of the canonical ticket encoding.
const EncodedTicketLength = 20 + 32 + 8 + 32 + 32

// Encode serializes the ticket into its canonical fixed layout.
func (t Ticket) Encode() []byte {
	buf := make([]byte, 0, EncodedTicketLength)
	buf = append(buf, t.Counterparty.Bytes()...)
	buf = append(buf, t.Challenge.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, t.Epoch)
	amount := t.Amount.Bytes32()
	buf = append(buf, amount[:]...)
	buf = append(buf, t.WinProb.Bytes()...)
	return buf
}

// DecodeTicket parses a canonical ticket encoding.
func DecodeTicket(data []byte) (Ticket, error) {
	if len(data) != EncodedTicketLength {
		return Ticket{}, fmt.Errorf("invalid ticket encoding: %d bytes, expected %d", len(data), EncodedTicketLength)
	}
	var t Ticket
	copy(t.Counterparty[:], data[0:20])
	copy(t.Challenge[:], data[20:52])
	t.Epoch = binary.BigEndian.Uint64(data[52:60])
	var amount [32]byte
	copy(amount[:], data[60:92])
	t.Amount = BalanceFromBytes32(amount)
	copy(t.WinProb[:], data[92:124])
	return t, nil
}

// Hash returns the digest of the canonical encoding. This is the value that
// is signed and the value whose luck decides a win.
func (t Ticket) Hash() Hash {
	return HashOf(t.Encode())
}

// SignedTicket is a ticket together with the issuer's recoverable signature
// over the ticket hash.
type SignedTicket struct {
	Ticket    Ticket
	Signature Signature
}

// EncodedSignedTicketLength is the length of the signed ticket encoding.
const EncodedSignedTicketLength = EncodedTicketLength + SignatureLength

// Encode serializes the signed ticket as ticket encoding followed by the
// signature.
func (s SignedTicket) Encode() []byte {
	buf := make([]byte, 0, EncodedSignedTicketLength)
	buf = append(buf, s.Ticket.Encode()...)
	buf = append(buf, s.Signature[:]...)
	return buf
}

// DecodeSignedTicket parses a signed ticket encoding.
func DecodeSignedTicket(data []byte) (SignedTicket, error) {
	if len(data) != EncodedSignedTicketLength {
		return SignedTicket{}, fmt.Errorf("invalid signed ticket encoding: %d bytes, expected %d", len(data), EncodedSignedTicketLength)
	}
	ticket, err := DecodeTicket(data[:EncodedTicketLength])
	if err != nil {
		return SignedTicket{}, err
	}
	var sig Signature
	copy(sig[:], data[EncodedTicketLength:])
	return SignedTicket{Ticket: ticket, Signature: sig}, nil
}

// Signer recovers the address that signed the ticket.
func (s SignedTicket) Signer() (Address, error) {
	return RecoverSigner(s.Ticket.Hash(), s.Signature)
}

// AcknowledgedTicket is a received ticket together with the response that
// solves its challenge, ready for redemption once it turns out to be a
// winner.
type AcknowledgedTicket struct {
	Ticket   SignedTicket
	Response Hash
	Redeemed bool
}

// AlwaysWinningProb is the winning probability under which every ticket wins.
func AlwaysWinningProb() Hash {
	var p Hash
	for i := range p {
		p[i] = 0xff
	}
	return p
}

// NeverWinningProb is the winning probability under which no ticket wins
// (except with probability 2^-256).
func NeverWinningProb() Hash {
	return ZeroHash
}

// WinProbFraction converts a probability expressed as num/den into the
// 256-bit threshold encoding: floor((2^256 - 1) * num / den). num must not
// exceed den and den must be non-zero.
func WinProbFraction(num, den uint64) (Hash, error) {
	if den == 0 {
		return ZeroHash, fmt.Errorf("zero denominator")
	}
	if num > den {
		return ZeroHash, fmt.Errorf("probability %d/%d exceeds one", num, den)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	v := new(big.Int).Mul(max, new(big.Int).SetUint64(num))
	v.Div(v, new(big.Int).SetUint64(den))
	var p Hash
	v.FillBytes(p[:])
	return p, nil
}

// IsWinning decides whether a ticket wins: the luck value derived from the
// ticket hash, the issuer's disclosed preimage, the acknowledgement response
// and the winning probability must not exceed the winning probability.
func IsWinning(ticketHash, response, preimage, winProb Hash) bool {
	luck := HashOf(ticketHash.Bytes(), preimage.Bytes(), response.Bytes(), winProb.Bytes())
	return bytes.Compare(luck[:], winProb[:]) != 1
}
