package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/storage"
)

// All bundles every store backed by the same database.
type All struct {
	Channels      storage.Channels
	ChannelStates storage.ChannelStates
	Commitments   storage.Commitments
	Nonces        storage.Nonces
	Tickets       storage.Tickets
	Progress      storage.Progress
}

const channelCacheSize = 1000

func InitAll(db *badger.DB) (*All, error) {
	channels, err := NewChannels(db, channelCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not initialize channel store: %w", err)
	}
	return &All{
		Channels:      channels,
		ChannelStates: NewChannelStates(db),
		Commitments:   NewCommitments(db),
		Nonces:        NewNonces(db),
		Tickets:       NewTickets(db),
		Progress:      NewProgress(db),
	}, nil
}
