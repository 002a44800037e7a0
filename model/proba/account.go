package proba

// AccountState is the on-chain account record relevant to ticket redemption:
// the current commitment head and the ticket epoch, which increments on every
// successful redemption.
type AccountState struct {
	SecretHash  Hash
	TicketEpoch uint64
}

// HasCommitment returns true if the account has a published commitment.
func (a AccountState) HasCommitment() bool {
	return !a.SecretHash.IsZero()
}
