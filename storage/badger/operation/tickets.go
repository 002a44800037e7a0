package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
)

func UpsertTicket(channelID proba.Hash, ticket proba.AcknowledgedTicket) func(*badger.Txn) error {
	return upsert(makePrefix(codeTicket, channelID, ticket.Ticket.Ticket.Challenge), ticket)
}

func RetrieveTicket(channelID proba.Hash, challenge proba.Hash, ticket *proba.AcknowledgedTicket) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTicket, channelID, challenge), ticket)
}

// TraverseTickets iterates over all acknowledged tickets stored for the
// channel and calls handle for each of them.
func TraverseTickets(channelID proba.Hash, handle func(ticket proba.AcknowledgedTicket) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeTicket, channelID), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool {
			return true
		}
		var ticket proba.AcknowledgedTicket
		create := func() interface{} {
			return &ticket
		}
		handler := func() error {
			return handle(ticket)
		}
		return check, create, handler
	})
}
