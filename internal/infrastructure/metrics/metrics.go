package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Funnel counters exposed on /metrics.
var (
	CheckoutSessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_checkout_sessions_created_total",
		Help: "Checkout sessions created, by funnel and mode.",
	}, []string{"funnel", "mode"})

	UpsellCharges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_upsell_charges_total",
		Help: "One-click upsell charges, by outcome.",
	}, []string{"outcome"})

	PurchaseEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_purchase_events_total",
		Help: "Purchase conversion events fired, by sink.",
	}, []string{"sink"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_webhook_deliveries_total",
		Help: "Outbound webhook deliveries, by target and outcome.",
	}, []string{"target", "outcome"})

	EventsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnel_events_logged_total",
		Help: "Analytics events accepted by the tracker.",
	})
)
