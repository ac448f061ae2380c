package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the loyalty engine.
type Metrics struct {
	EventsProcessed prometheus.Counter
	RulesFired      prometheus.Counter
	PointsAwarded   prometheus.Counter
	PointsRedeemed  prometheus.Counter
	TierChanges     prometheus.Counter
}

// New creates and registers all loyalty metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_events_processed_total",
			Help: "Total number of business events processed by the rule engine",
		}),
		RulesFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_rules_fired_total",
			Help: "Total number of rules whose condition passed and action ran",
		}),
		PointsAwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_awarded_total",
			Help: "Total points credited through the ledger",
		}),
		PointsRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Total points debited through the ledger",
		}),
		TierChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_tier_changes_total",
			Help: "Total number of tier transitions",
		}),
	}
}
