package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_audit_records",
	Help: "Number of audit records appended, by kind",
}, []string{"kind"})

var auditWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotter_audit_write_failures",
	Help: "Number of audit records which could not be written, by kind",
}, []string{"kind"})
