package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// Channels implements persistent storage for indexed channel entries, with an
// LRU cache in front of lookups by party pair.
type Channels struct {
	db    *badger.DB
	cache *lru.Cache
}

var _ storage.Channels = (*Channels)(nil)

func NewChannels(db *badger.DB, cacheSize int) (*Channels, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not initialize cache: %w", err)
	}
	return &Channels{
		db:    db,
		cache: cache,
	}, nil
}

func (c *Channels) Upsert(entry proba.ChannelEntry) error {
	err := operation.RetryOnConflict(c.db.Update, operation.UpsertChannelEntry(entry))
	if err != nil {
		return fmt.Errorf("could not store channel entry: %w", err)
	}
	c.cache.Add(entry.ID(), entry)
	return nil
}

func (c *Channels) ByParties(a, b proba.Address) (proba.ChannelEntry, error) {
	partyA, partyB := proba.CanonicalPair(a, b)

	cached, ok := c.cache.Get(proba.ChannelID(partyA, partyB))
	if ok {
		return cached.(proba.ChannelEntry), nil
	}

	var entry proba.ChannelEntry
	err := c.db.View(operation.RetrieveChannelEntry(partyA, partyB, &entry))
	if err != nil {
		return proba.ChannelEntry{}, err
	}
	c.cache.Add(entry.ID(), entry)
	return entry, nil
}

func (c *Channels) ByParty(party proba.Address) ([]proba.ChannelEntry, error) {
	var entries []proba.ChannelEntry
	err := c.db.View(operation.TraverseChannelEntries(func(entry proba.ChannelEntry) error {
		if entry.Touches(party) {
			entries = append(entries, entry)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse channel entries: %w", err)
	}
	return entries, nil
}

func (c *Channels) All() ([]proba.ChannelEntry, error) {
	var entries []proba.ChannelEntry
	err := c.db.View(operation.TraverseChannelEntries(func(entry proba.ChannelEntry) error {
		entries = append(entries, entry)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse channel entries: %w", err)
	}
	return entries, nil
}

func (c *Channels) Remove(a, b proba.Address) error {
	partyA, partyB := proba.CanonicalPair(a, b)
	err := operation.RetryOnConflict(c.db.Update, operation.RemoveChannelEntry(partyA, partyB))
	if err != nil {
		return fmt.Errorf("could not remove channel entry: %w", err)
	}
	c.cache.Remove(proba.ChannelID(partyA, partyB))
	return nil
}
