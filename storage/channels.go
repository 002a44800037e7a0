package storage

import (
	"github.com/probanet/proba-go/model/proba"
)

// Channels represents persistent storage for indexed channel entries, keyed
// by the canonical party pair.
type Channels interface {

	// Upsert stores the channel entry, overwriting any existing entry for the
	// same party pair.
	Upsert(entry proba.ChannelEntry) error

	// ByParties retrieves the channel entry for the given pair of parties.
	// The pair is canonicalized before lookup.
	// Error returns:
	//   - ErrNotFound if no entry is stored for the pair
	ByParties(a, b proba.Address) (proba.ChannelEntry, error)

	// ByParty retrieves all channel entries that the given address is a
	// party of.
	ByParty(party proba.Address) ([]proba.ChannelEntry, error)

	// All retrieves all stored channel entries.
	All() ([]proba.ChannelEntry, error)

	// Remove deletes the channel entry for the given pair of parties, if any.
	Remove(a, b proba.Address) error
}
