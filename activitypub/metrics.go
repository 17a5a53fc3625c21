package activitypub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "burrow_inbound_activities_total",
	Help: "Inbound activities by type and final state",
}, []string{"type", "state"})

var fetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "burrow_remote_fetches_total",
	Help: "Remote objects fetched by the resolver",
})

var fetchBudgetExceeded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "burrow_fetch_budget_exceeded_total",
	Help: "Resolutions aborted because the fetch budget was spent",
})

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "burrow_deliveries_total",
	Help: "Outbound deliveries by result",
}, []string{"result"})

var deliveryQueueGiveUps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "burrow_delivery_queue_give_ups_total",
	Help: "Queued deliveries dropped after the last retry",
})

// typeLabel keeps the type label bounded for activities that failed to decode.
func typeLabel(t string) string {
	switch t {
	case "Follow", "Accept", "Undo", "Block", "Create", "Update", "Delete", "Announce":
		return t
	}
	return "other"
}
