package proba

import (
	"errors"
)

var (
	// ErrInvalidSignature indicates a signature that does not recover to the
	// expected signer.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrReplayedNonce indicates a signed artifact whose nonce was already
	// consumed for the channel.
	ErrReplayedNonce = errors.New("nonce already used")

	// ErrStateMismatch indicates that local state and on-chain state disagree
	// in a way that cannot be reconciled automatically.
	ErrStateMismatch = errors.New("local state does not match on-chain state")

	// ErrTicketNotWinning indicates a ticket whose luck value exceeds its
	// winning probability.
	ErrTicketNotWinning = errors.New("ticket is not a winner")

	// ErrNotClaimable indicates a closure claim attempted before the closure
	// window has elapsed.
	ErrNotClaimable = errors.New("channel closure window has not elapsed")

	// ErrChannelNotFound indicates an operation on a channel that does not
	// exist, locally or on-chain.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrPreimageNotFound indicates a commitment target that is not part of
	// the locally stored hash chain.
	ErrPreimageNotFound = errors.New("preimage not found in hash chain")

	// ErrInvalidResponse indicates an acknowledgement response that does not
	// solve the ticket's challenge.
	ErrInvalidResponse = errors.New("response does not solve challenge")

	// ErrPathNotFound indicates that no path of the requested length could be
	// found within the iteration budget.
	ErrPathNotFound = errors.New("no path of requested length found")
)
