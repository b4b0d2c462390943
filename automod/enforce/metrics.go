package enforce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enforcementActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_enforcement_actions",
	Help: "Number of enforcement results, by action taken",
}, []string{"action"})

var enforcementWriteRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_enforcement_write_retries",
	Help: "Number of failed enforcement write attempts which were retried",
})

var enforcementWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_enforcement_write_failures",
	Help: "Number of enforcement writes which failed after all retries",
})

var expiryTransitions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_suspension_expiries",
	Help: "Number of suspended accounts returned to active",
})

var recoveries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spotter_reputation_recoveries",
	Help: "Number of accounts which regained reputation in a recovery pass",
})
