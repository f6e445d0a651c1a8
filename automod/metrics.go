package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_messages_processed",
	Help: "Number of channel messages run through the moderation pipeline",
})

var verdictsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "alphababoon_verdicts",
	Help: "Number of verdicts reached, by outcome and pipeline stage",
}, []string{"verdict", "stage"})

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_decision_cache_hits",
	Help: "Number of decision cache hits",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_decision_cache_misses",
	Help: "Number of decision cache misses",
})

var oracleCalls = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_classifier_calls",
	Help: "Number of calls to the hosted classifier",
})

var oracleFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_classifier_failures",
	Help: "Number of failed or timed-out classifier calls",
})

var actionsTaken = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_remediations_started",
	Help: "Number of remediation sequences started",
})

var actionsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_remediations_suppressed",
	Help: "Number of violations suppressed by the per-user cooldown",
})
