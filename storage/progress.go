package storage

// Progress represents persistent storage for the indexer's confirmed-block
// watermark.
type Progress interface {

	// SetConfirmedHeight stores the highest block height up to which all
	// events have been applied.
	SetConfirmedHeight(height uint64) error

	// ConfirmedHeight retrieves the stored watermark.
	// Error returns:
	//   - ErrNotFound if no watermark has been stored yet
	ConfirmedHeight() (uint64, error)
}
