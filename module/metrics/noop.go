package metrics

// NoopCollector discards all metrics.
type NoopCollector struct{}

var _ Collector = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) ConfirmedHeight(height uint64) {}
func (nc *NoopCollector) BufferedEvents(count int)      {}
func (nc *NoopCollector) TicketIssued()                 {}
func (nc *NoopCollector) TicketRedeemed()               {}
func (nc *NoopCollector) TicketLosing()                 {}
func (nc *NoopCollector) SettlementCompleted()          {}
