package proba

import (
	"fmt"
)

// ChannelStatus is the lifecycle state of a payment channel, derived from the
// on-chain state counter. It is never stored independently.
type ChannelStatus uint8

const (
	// ChannelUninitialised means no channel exists between the two parties
	// in the current epoch.
	ChannelUninitialised ChannelStatus = iota
	// ChannelFunding means at least one party has deposited funds but the
	// channel has not been opened yet.
	ChannelFunding
	// ChannelOpen means the channel is open and tickets can be exchanged.
	ChannelOpen
	// ChannelPendingClosure means a closure has been initiated and the
	// closure window is running.
	ChannelPendingClosure
)

// statusModulus maps a state counter onto a status: incrementing the counter
// by a full cycle marks a close/reopen epoch, so stale signed state from a
// previous epoch remains distinguishable.
const statusModulus = 10

func (s ChannelStatus) String() string {
	switch s {
	case ChannelUninitialised:
		return "UNINITIALISED"
	case ChannelFunding:
		return "FUNDING"
	case ChannelOpen:
		return "OPEN"
	case ChannelPendingClosure:
		return "PENDING_CLOSURE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// CanonicalPair orders two addresses into the canonical (partyA, partyB)
// order, which is independent of which party initiated an action. A channel
// therefore has exactly one storage key.
func CanonicalPair(a, b Address) (Address, Address) {
	if a.Cmp(b) <= 0 {
		return a, b
	}
	return b, a
}

// IsPartyA returns true if self is partyA in the canonical ordering of the
// pair (self, counterparty).
func IsPartyA(self, counterparty Address) bool {
	return self.Cmp(counterparty) < 0
}

// ChannelID derives the channel identifier for a pair of parties. The pair is
// canonicalized first, so ChannelID(a, b) == ChannelID(b, a).
func ChannelID(a, b Address) Hash {
	partyA, partyB := CanonicalPair(a, b)
	return HashOf(partyA.Bytes(), partyB.Bytes())
}

// EventKey is the total order over ledger events: block number first, then
// transaction index within the block, then log index within the transaction.
type EventKey struct {
	BlockNumber      uint64
	TransactionIndex uint32
	LogIndex         uint32
}

// After returns true if k is strictly greater than other in event order.
func (k EventKey) After(other EventKey) bool {
	if k.BlockNumber != other.BlockNumber {
		return k.BlockNumber > other.BlockNumber
	}
	if k.TransactionIndex != other.TransactionIndex {
		return k.TransactionIndex > other.TransactionIndex
	}
	return k.LogIndex > other.LogIndex
}

func (k EventKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.BlockNumber, k.TransactionIndex, k.LogIndex)
}

// ChannelEntry is the indexed view of one channel, as derived from confirmed
// ledger events. Parties are always stored in canonical order.
type ChannelEntry struct {
	PartyA           Address
	PartyB           Address
	BlockNumber      uint64
	TransactionIndex uint32
	LogIndex         uint32
	Status           ChannelStatus
}

// NewChannelEntry builds a channel entry for the given (unordered) pair of
// parties from the event log metadata that produced it.
func NewChannelEntry(a, b Address, log EventLog, status ChannelStatus) ChannelEntry {
	partyA, partyB := CanonicalPair(a, b)
	return ChannelEntry{
		PartyA:           partyA,
		PartyB:           partyB,
		BlockNumber:      log.BlockNumber,
		TransactionIndex: log.TransactionIndex,
		LogIndex:         log.LogIndex,
		Status:           status,
	}
}

// EventKey returns the event-order key of the event this entry was derived
// from. A stored entry is only ever replaced by one with a strictly greater
// key.
func (e ChannelEntry) EventKey() EventKey {
	return EventKey{
		BlockNumber:      e.BlockNumber,
		TransactionIndex: e.TransactionIndex,
		LogIndex:         e.LogIndex,
	}
}

// ID returns the channel identifier for this entry.
func (e ChannelEntry) ID() Hash {
	return ChannelID(e.PartyA, e.PartyB)
}

// Touches returns true if the given address is one of the two parties.
func (e ChannelEntry) Touches(addr Address) bool {
	return e.PartyA == addr || e.PartyB == addr
}

// OtherParty returns the counterparty of addr in this channel, or the zero
// address if addr is not a party.
func (e ChannelEntry) OtherParty(addr Address) Address {
	switch addr {
	case e.PartyA:
		return e.PartyB
	case e.PartyB:
		return e.PartyA
	default:
		return ZeroAddress
	}
}

// ChannelSnapshot is the on-chain projection of one channel as returned by
// the channels contract call.
type ChannelSnapshot struct {
	Deposit       *Balance
	PartyABalance *Balance
	ClosureTime   uint64
	StateCounter  uint64
}

// Status derives the channel status from the state counter.
func (s ChannelSnapshot) Status() ChannelStatus {
	return ChannelStatus(s.StateCounter % statusModulus)
}

// Iteration returns the close/reopen epoch of the channel. Signed artifacts
// from a previous iteration are invalid.
func (s ChannelSnapshot) Iteration() uint64 {
	return s.StateCounter / statusModulus
}

// BalanceB returns the counterparty share of the deposit.
func (s ChannelSnapshot) BalanceB() *Balance {
	return s.Deposit.Sub(s.PartyABalance)
}
