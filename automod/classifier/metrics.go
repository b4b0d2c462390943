package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifierRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_classifier_requests",
	Help: "Number of external classifier requests, by outcome",
}, []string{"status"})

var classifierCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_classifier_cache_hits",
	Help: "Number of classifier responses served from cache",
})

var classifierDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "spotter_classifier_duration_sec",
	Help: "Duration of external classifier requests",
})
