package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// Tickets implements persistent storage for acknowledged tickets.
type Tickets struct {
	db *badger.DB
}

var _ storage.Tickets = (*Tickets)(nil)

func NewTickets(db *badger.DB) *Tickets {
	return &Tickets{db: db}
}

func (t *Tickets) Store(channelID proba.Hash, ticket proba.AcknowledgedTicket) error {
	err := operation.RetryOnConflict(t.db.Update, operation.UpsertTicket(channelID, ticket))
	if err != nil {
		return fmt.Errorf("could not store ticket: %w", err)
	}
	return nil
}

func (t *Tickets) ByChallenge(channelID proba.Hash, challenge proba.Hash) (proba.AcknowledgedTicket, error) {
	var ticket proba.AcknowledgedTicket
	err := t.db.View(operation.RetrieveTicket(channelID, challenge, &ticket))
	if err != nil {
		return proba.AcknowledgedTicket{}, err
	}
	return ticket, nil
}

func (t *Tickets) ByChannel(channelID proba.Hash) ([]proba.AcknowledgedTicket, error) {
	var tickets []proba.AcknowledgedTicket
	err := t.db.View(operation.TraverseTickets(channelID, func(ticket proba.AcknowledgedTicket) error {
		tickets = append(tickets, ticket)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse tickets: %w", err)
	}
	return tickets, nil
}
