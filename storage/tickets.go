package storage

import (
	"github.com/probanet/proba-go/model/proba"
)

// Tickets represents persistent storage for acknowledged tickets, keyed by
// channel and challenge.
type Tickets interface {

	// Store stores the acknowledged ticket under its channel, overwriting any
	// existing ticket with the same challenge.
	Store(channelID proba.Hash, ticket proba.AcknowledgedTicket) error

	// ByChallenge retrieves the acknowledged ticket with the given challenge
	// in the given channel.
	// Error returns:
	//   - ErrNotFound if no ticket is stored for the challenge
	ByChallenge(channelID proba.Hash, challenge proba.Hash) (proba.AcknowledgedTicket, error)

	// ByChannel retrieves all acknowledged tickets stored for the channel.
	ByChannel(channelID proba.Hash) ([]proba.AcknowledgedTicket, error)
}
