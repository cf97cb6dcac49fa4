package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess     = "success"
	resultRejected    = "rejected"
	resultRateLimited = "rate_limited"
	resultError       = "error"
)

var sessionOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "session_operations_total",
	Help: "Session operations by operation and result.",
}, []string{"operation", "result"})

var recordMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "record_mutations_total",
	Help: "Successful post and comment mutations by resource and action.",
}, []string{"resource", "action"})
