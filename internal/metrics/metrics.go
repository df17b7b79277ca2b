package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics covers the order-side workflow.
type CheckoutMetrics struct {
	Checkouts            *prometheus.CounterVec
	Compensations        prometheus.Counter
	CompensationFailures prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "orders",
		Name:      "checkouts_total",
		Help:      "Total number of checkout attempts by result.",
	}, []string{"result"})
	compensations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "orders",
		Name:      "payment_compensations_total",
		Help:      "Compensating cancel requests issued after a failed order commit.",
	})
	compensationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "orders",
		Name:      "payment_compensation_failures_total",
		Help:      "Compensating cancel requests that did not succeed. Money may be stranded.",
	})

	reg.MustRegister(checkouts, compensations, compensationFailures)
	return &CheckoutMetrics{
		Checkouts:            checkouts,
		Compensations:        compensations,
		CompensationFailures: compensationFailures,
	}
}

// BillingMetrics covers the billing-side transaction state machine.
type BillingMetrics struct {
	Authorizations         *prometheus.CounterVec
	Captures               *prometheus.CounterVec
	Cancellations          *prometheus.CounterVec
	StrandedAuthorizations prometheus.Counter
}

func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	authorizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "billing",
		Name:      "authorizations_total",
		Help:      "Gateway authorization attempts by outcome.",
	}, []string{"outcome"})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "billing",
		Name:      "captures_total",
		Help:      "Capture attempts by outcome.",
	}, []string{"outcome"})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "billing",
		Name:      "cancellations_total",
		Help:      "Cancel attempts by outcome.",
	}, []string{"outcome"})
	stranded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devstore",
		Subsystem: "billing",
		Name:      "stranded_authorizations_total",
		Help:      "Authorizations that could not be recorded nor canceled at the gateway.",
	})

	reg.MustRegister(authorizations, captures, cancellations, stranded)
	return &BillingMetrics{
		Authorizations:         authorizations,
		Captures:               captures,
		Cancellations:          cancellations,
		StrandedAuthorizations: stranded,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
