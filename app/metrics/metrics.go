package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LockAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_lock_acquisitions_total",
		Help: "Account lock acquisition attempts by result",
	}, []string{"result"})

	PaymentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_payment_attempts_total",
		Help: "Checkout payment attempts by outcome",
	}, []string{"mode", "outcome"})

	Failovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_account_failovers_total",
		Help: "Accounts skipped after a daily limit error",
	}, []string{"mode"})

	LimitChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_daily_limit_checks_total",
		Help: "Remote daily limit checks by result",
	}, []string{"result", "cached"})

	StatusSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_status_signals_total",
		Help: "Order status signals handled by channel and outcome",
	}, []string{"channel", "outcome"})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_account_sync_runs_total",
		Help: "Account status sync runs by result",
	}, []string{"result"})

	RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_remote_call_duration_seconds",
		Help:    "Latency of remote gateway API calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
	}, []string{"endpoint"})
)
