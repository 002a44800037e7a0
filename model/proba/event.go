package proba

import (
	"encoding/binary"
)

// EventKind discriminates the ledger event types the indexer consumes.
type EventKind uint8

const (
	EventChannelOpened EventKind = iota + 1
	EventChannelClosed
	EventSecretHashSet
)

func (k EventKind) String() string {
	switch k {
	case EventChannelOpened:
		return "channel_opened"
	case EventChannelClosed:
		return "channel_closed"
	case EventSecretHashSet:
		return "secret_hash_set"
	default:
		return "unknown"
	}
}

// EventLog carries the ledger metadata attached to every emitted event. It
// determines both the event's identity and its position in event order.
type EventLog struct {
	BlockNumber      uint64
	TxHash           Hash
	TransactionIndex uint32
	LogIndex         uint32
}

// Key returns the event-order key of the log.
func (l EventLog) Key() EventKey {
	return EventKey{
		BlockNumber:      l.BlockNumber,
		TransactionIndex: l.TransactionIndex,
		LogIndex:         l.LogIndex,
	}
}

// EventID derives the composite identifier that deduplicates an event across
// repeated deliveries: the same (kind, txHash, txIndex, logIndex) tuple is
// the same event regardless of which block ends up including it.
func EventID(kind EventKind, log EventLog) Hash {
	var idx [9]byte
	idx[0] = byte(kind)
	binary.BigEndian.PutUint32(idx[1:5], log.TransactionIndex)
	binary.BigEndian.PutUint32(idx[5:9], log.LogIndex)
	return HashOf(idx[:1], log.TxHash.Bytes(), idx[1:])
}

// ChannelOpened is emitted when a funded channel transitions to open.
type ChannelOpened struct {
	Opener       Address
	Counterparty Address
	Log          EventLog
}

func (e ChannelOpened) ID() Hash {
	return EventID(EventChannelOpened, e.Log)
}

// ChannelClosed is emitted when a channel closure is finalized and the
// deposit has been paid out.
type ChannelClosed struct {
	Closer       Address
	Counterparty Address
	Log          EventLog
}

func (e ChannelClosed) ID() Hash {
	return EventID(EventChannelClosed, e.Log)
}

// SecretHashSet is emitted when an account (re)publishes its on-chain
// commitment.
type SecretHashSet struct {
	Account    Address
	SecretHash Hash
	Counter    uint64
	Log        EventLog
}

func (e SecretHashSet) ID() Hash {
	return EventID(EventSecretHashSet, e.Log)
}
