package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/probanet/proba-go/storage"
)

// SkipDuplicates executes the operation and suppresses ErrAlreadyExists.
func SkipDuplicates(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// SkipNonExist executes the operation and suppresses ErrNotFound.
func SkipNonExist(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
}

// RetryOnConflict repeats the badger transaction until it commits without a
// conflict.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
