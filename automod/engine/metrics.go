package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var moderationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "spotter_moderation_duration_sec",
	Help: "Duration of content moderation, by verdict source",
}, []string{"source"})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_verdicts",
	Help: "Number of moderation verdicts, by action",
}, []string{"action"})

var ruleHitCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_rule_hits",
	Help: "Number of times each rule fired",
}, []string{"rule"})

var degradedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_degraded_verdicts",
	Help: "Number of verdicts composed without the external classifier",
})

var pendingCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_pending_submissions",
	Help: "Number of submissions where the caller gave up before a verdict was ready",
})

var moderationErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_moderation_errors",
	Help: "Number of submissions which failed moderation",
})

var reconcileCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_reconciled",
	Help: "Number of degraded verdicts re-moderated, by result",
}, []string{"result"})

var reviewCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_reviews",
	Help: "Number of human review dispositions, by decision",
}, []string{"decision"})

var contentFetches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_content_fetches",
	Help: "Number of content reads from the platform content API",
})
