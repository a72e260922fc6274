package services

import "github.com/prometheus/client_golang/prometheus"

var (
	friendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_requests_total",
			Help: "Friend request state transitions",
		},
		[]string{"action"},
	)
	townVisitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "town_visits_total",
			Help: "Recorded town visits",
		},
	)
	notificationDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Push notification dispatch results",
		},
		[]string{"result"},
	)
	identityOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_operations_total",
			Help: "Identity provider operations by outcome",
		},
		[]string{"op", "result"},
	)
)

// RegisterMetrics registers the service counters. Call this once from main.go.
func RegisterMetrics() {
	prometheus.MustRegister(friendRequestsTotal)
	prometheus.MustRegister(townVisitsTotal)
	prometheus.MustRegister(notificationDispatchTotal)
	prometheus.MustRegister(identityOperationsTotal)
}

// ObserveIdentityOperation counts one sign-up, login or other account operation.
func ObserveIdentityOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	identityOperationsTotal.WithLabelValues(op, result).Inc()
}
