package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/storage"
	"github.com/probanet/proba-go/storage/badger/operation"
)

// Progress implements persistent storage for the indexer's confirmed-block
// watermark.
type Progress struct {
	db *badger.DB
}

var _ storage.Progress = (*Progress)(nil)

func NewProgress(db *badger.DB) *Progress {
	return &Progress{db: db}
}

func (p *Progress) SetConfirmedHeight(height uint64) error {
	err := operation.RetryOnConflict(p.db.Update, operation.UpsertConfirmedHeight(height))
	if err != nil {
		return fmt.Errorf("could not store confirmed height: %w", err)
	}
	return nil
}

func (p *Progress) ConfirmedHeight() (uint64, error) {
	var height uint64
	err := p.db.View(operation.RetrieveConfirmedHeight(&height))
	if err != nil {
		return 0, err
	}
	return height, nil
}
