package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceProba   = "proba"
	subsystemIndexer = "indexer"
	subsystemTickets = "tickets"
	subsystemChannel = "channel"
)

// PrometheusCollector reports metrics through a prometheus registry.
type PrometheusCollector struct {
	confirmedHeight      prometheus.Gauge
	bufferedEvents       prometheus.Gauge
	ticketsIssued        prometheus.Counter
	ticketsRedeemed      prometheus.Counter
	ticketsLosing        prometheus.Counter
	settlementsCompleted prometheus.Counter
}

var _ Collector = (*PrometheusCollector)(nil)

func NewPrometheusCollector(registerer prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(registerer)
	return &PrometheusCollector{
		confirmedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemIndexer,
			Name:      "confirmed_height",
			Help:      "highest block height up to which all events have been applied",
		}),
		bufferedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemIndexer,
			Name:      "buffered_events",
			Help:      "number of events awaiting confirmation",
		}),
		ticketsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemTickets,
			Name:      "issued_total",
			Help:      "number of tickets created and signed locally",
		}),
		ticketsRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemTickets,
			Name:      "redeemed_total",
			Help:      "number of winning tickets submitted successfully",
		}),
		ticketsLosing: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemTickets,
			Name:      "losing_total",
			Help:      "number of tickets that were not winners",
		}),
		settlementsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceProba,
			Subsystem: subsystemChannel,
			Name:      "settlements_completed_total",
			Help:      "number of channel settlements driven to completion",
		}),
	}
}

func (pc *PrometheusCollector) ConfirmedHeight(height uint64) {
	pc.confirmedHeight.Set(float64(height))
}

func (pc *PrometheusCollector) BufferedEvents(count int) {
	pc.bufferedEvents.Set(float64(count))
}

func (pc *PrometheusCollector) TicketIssued() {
	pc.ticketsIssued.Inc()
}

func (pc *PrometheusCollector) TicketRedeemed() {
	pc.ticketsRedeemed.Inc()
}

func (pc *PrometheusCollector) TicketLosing() {
	pc.ticketsLosing.Inc()
}

func (pc *PrometheusCollector) SettlementCompleted() {
	pc.settlementsCompleted.Inc()
}
