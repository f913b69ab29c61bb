package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics aggregates the settlement engine's operational counters.
type MarketMetrics struct {
	listingsCreated    *prometheus.CounterVec
	bidsAccepted       prometheus.Counter
	settlements        *prometheus.CounterVec
	withdrawals        *prometheus.CounterVec
	creditsStored      prometheus.Counter
	rejectedOperations *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide market metrics registry, registering the
// collectors on first use.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of listings created by kind.",
			}, []string{"kind"}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_accepted_total",
				Help: "Count of accepted bids.",
			}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_settlements_total",
				Help: "Count of terminal settlements by kind.",
			}, []string{"kind"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_withdrawals_total",
				Help: "Count of listings withdrawn by kind.",
			}, []string{"kind"}),
			creditsStored: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_escrow_credits_total",
				Help: "Count of payouts degraded to escrow credits.",
			}),
			rejectedOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rejected_operations_total",
				Help: "Count of rejected operations by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsCreated,
			marketRegistry.bidsAccepted,
			marketRegistry.settlements,
			marketRegistry.withdrawals,
			marketRegistry.creditsStored,
			marketRegistry.rejectedOperations,
		)
	})
	return marketRegistry
}

// ListingCreated records a successful listing creation.
func (m *MarketMetrics) ListingCreated(kind string) {
	if m == nil {
		return
	}
	m.listingsCreated.WithLabelValues(kind).Inc()
}

// BidAccepted records an accepted bid.
func (m *MarketMetrics) BidAccepted() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

// Settled records a terminal settlement.
func (m *MarketMetrics) Settled(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

// Withdrawn records a withdrawn listing.
func (m *MarketMetrics) Withdrawn(kind string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(kind).Inc()
}

// CreditStored records a payout degraded to an escrow credit.
func (m *MarketMetrics) CreditStored() {
	if m == nil {
		return
	}
	m.creditsStored.Inc()
}

// Rejected records a rejected operation for the supplied method.
func (m *MarketMetrics) Rejected(method string) {
	if m == nil {
		return
	}
	m.rejectedOperations.WithLabelValues(method).Inc()
}
