package metrics

// Collector records operational metrics of the control plane.
type Collector interface {

	// ConfirmedHeight records the indexer's confirmed-block watermark.
	ConfirmedHeight(height uint64)

	// BufferedEvents records the current size of the indexer's unconfirmed
	// event buffer.
	BufferedEvents(count int)

	// TicketIssued counts a ticket created and signed locally.
	TicketIssued()

	// TicketRedeemed counts a winning ticket successfully submitted.
	TicketRedeemed()

	// TicketLosing counts a ticket that turned out not to be a winner.
	TicketLosing()

	// SettlementCompleted counts a channel settlement driven to completion.
	SettlementCompleted()
}
