package unittest

import (
	"crypto/ecdsa"
	"crypto/rand"
	mrand "math/rand"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/probanet/proba-go/model/proba"
)

func AddressFixture() proba.Address {
	var addr proba.Address
	_, _ = rand.Read(addr[:])
	return addr
}

func HashFixture() proba.Hash {
	var h proba.Hash
	_, _ = rand.Read(h[:])
	return h
}

func KeyFixture() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

func BalanceFixture() *proba.Balance {
	return proba.NewBalanceFromUint64(uint64(mrand.Intn(10000) + 1))
}

func EventLogFixture(blockNumber uint64) proba.EventLog {
	return proba.EventLog{
		BlockNumber:      blockNumber,
		TxHash:           HashFixture(),
		TransactionIndex: uint32(mrand.Intn(100)),
		LogIndex:         uint32(mrand.Intn(10)),
	}
}

func ChannelEntryFixture() proba.ChannelEntry {
	return proba.NewChannelEntry(
		AddressFixture(),
		AddressFixture(),
		EventLogFixture(uint64(mrand.Intn(1000)+1)),
		proba.ChannelOpen,
	)
}

func TicketFixture(counterparty proba.Address) proba.Ticket {
	return proba.Ticket{
		Counterparty: counterparty,
		Challenge:    HashFixture(),
		Epoch:        uint64(mrand.Intn(10)),
		Amount:       BalanceFixture(),
		WinProb:      proba.AlwaysWinningProb(),
	}
}

func SignedTicketFixture(key *ecdsa.PrivateKey, counterparty proba.Address) proba.SignedTicket {
	ticket := TicketFixture(counterparty)
	digest := ticket.Hash()
	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		panic(err)
	}
	sig, err := proba.BytesToSignature(raw)
	if err != nil {
		panic(err)
	}
	return proba.SignedTicket{Ticket: ticket, Signature: sig}
}

func AcknowledgedTicketFixture(key *ecdsa.PrivateKey, counterparty proba.Address) proba.AcknowledgedTicket {
	return proba.AcknowledgedTicket{
		Ticket:   SignedTicketFixture(key, counterparty),
		Response: HashFixture(),
	}
}
