package ledger

import (
	"context"
	"fmt"
	"sync"
)

// NonceSequencer hands out strictly increasing transaction nonces for one
// account. The first nonce is fetched from the ledger, every following one is
// assigned locally, so concurrent calls never reuse a nonce even before their
// transactions are included.
type NonceSequencer struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context) (uint64, error)
	next    uint64
	fetched bool
}

func NewNonceSequencer(fetch func(ctx context.Context) (uint64, error)) *NonceSequencer {
	return &NonceSequencer{fetch: fetch}
}

// Next returns the next unused transaction nonce.
func (s *NonceSequencer) Next(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetched {
		next, err := s.fetch(ctx)
		if err != nil {
			return 0, fmt.Errorf("could not fetch account nonce: %w", err)
		}
		s.next = next
		s.fetched = true
	}

	nonce := s.next
	s.next++
	return nonce, nil
}

// Reset discards the local sequence, so the next call fetches from the ledger
// again. Used after a transaction was rejected for a nonce mismatch.
func (s *NonceSequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = false
}
