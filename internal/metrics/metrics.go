// Package metrics declares the service's Prometheus collectors. They register with the
// default registry and are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ContributionsRecorded counts committed contributions by bucket and funding method.
var ContributionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "contributions",
	Name:      "recorded_total",
	Help:      "Committed contributions by type and payment method.",
}, []string{"type", "method"})

// ContributionAmount sums committed contribution amounts in kobo.
var ContributionAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "contributions",
	Name:      "amount_kobo_total",
	Help:      "Sum of committed contribution amounts in kobo by type.",
}, []string{"type"})

// DuplicateReferences counts gateway confirmations replayed against an already processed reference.
var DuplicateReferences = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "gateway",
	Name:      "duplicate_references_total",
	Help:      "Gateway confirmations whose reference was already processed.",
})

// GatewayMismatches counts confirmations rejected for amount or currency mismatch.
var GatewayMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "gateway",
	Name:      "confirmation_mismatches_total",
	Help:      "Gateway confirmations flagged because amount or currency differed from the charge.",
})

// ContentionRetries counts unit-of-work retries after lock or serialization failures.
var ContentionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "ledger",
	Name:      "contention_retries_total",
	Help:      "Unit-of-work retries after a lock or serialization failure.",
}, []string{"operation"})

// InterestCredits counts subscribers credited by interest runs.
var InterestCredits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dewbox",
	Subsystem: "interest",
	Name:      "credits_total",
	Help:      "Subscribers credited with yearly ICA interest.",
})

// UnitOfWorkDuration observes how long ledger transactions take, including retries.
var UnitOfWorkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dewbox",
	Subsystem: "ledger",
	Name:      "unit_of_work_seconds",
	Help:      "Duration of ledger units of work.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "outcome"})
