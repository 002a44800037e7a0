package storage

import (
	"github.com/probanet/proba-go/model/proba"
)

// Commitments represents persistent storage for the local hash chain:
// intermediate checkpoints plus the index of the newest value disclosed
// on-chain.
type Commitments interface {

	// StoreCheckpoint stores the chain value at the given chain index.
	StoreCheckpoint(index uint64, value proba.Hash) error

	// Checkpoint retrieves the stored chain value at the given chain index.
	// Error returns:
	//   - ErrNotFound if no checkpoint is stored at the index
	Checkpoint(index uint64) (proba.Hash, error)

	// SetHead stores the chain index of the newest value disclosed on-chain.
	SetHead(index uint64) error

	// Head retrieves the chain index of the newest value disclosed on-chain.
	// Error returns:
	//   - ErrNotFound if no chain has been generated yet
	Head() (uint64, error)
}
