package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// Commitments implements persistent storage for the local hash chain.
type Commitments struct {
	db *badger.DB
}

var _ storage.Commitments = (*Commitments)(nil)

func NewCommitments(db *badger.DB) *Commitments {
	return &Commitments{db: db}
}

func (c *Commitments) StoreCheckpoint(index uint64, value proba.Hash) error {
	err := operation.RetryOnConflict(c.db.Update, operation.UpsertCheckpoint(index, value))
	if err != nil {
		return fmt.Errorf("could not store checkpoint %d: %w", index, err)
	}
	return nil
}

func (c *Commitments) Checkpoint(index uint64) (proba.Hash, error) {
	var value proba.Hash
	err := c.db.View(operation.RetrieveCheckpoint(index, &value))
	if err != nil {
		return proba.ZeroHash, err
	}
	return value, nil
}

func (c *Commitments) SetHead(index uint64) error {
	err := operation.RetryOnConflict(c.db.Update, operation.UpsertChainHead(index))
	if err != nil {
		return fmt.Errorf("could not store chain head: %w", err)
	}
	return nil
}

func (c *Commitments) Head() (uint64, error) {
	var index uint64
	err := c.db.View(operation.RetrieveChainHead(&index))
	if err != nil {
		return 0, err
	}
	return index, nil
}
