package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pnrwatch",
			Subsystem: "check",
			Name:      "total",
			Help:      "Number of PNR checks by result (success, failure).",
		}, []string{"result"},
	)
	fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pnrwatch",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Number of status API requests by outcome (ok or failure kind).",
		}, []string{"result"},
	)
	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pnrwatch",
			Subsystem: "status",
			Name:      "changes_total",
			Help:      "Number of detected status transitions per PNR.",
		}, []string{"pnr"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pnrwatch",
			Subsystem: "notify",
			Name:      "total",
			Help:      "Number of notifications by result (sent, failed, disabled).",
		}, []string{"result"},
	)
	lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pnrwatch",
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		},
	)
	lastRunFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pnrwatch",
			Subsystem: "run",
			Name:      "last_failed_checks",
			Help:      "Failed checks in the last run.",
		},
	)
)

// Register registers all metrics with the provided registerer. It is safe to
// call multiple times and with several registries; collectors already present
// in r are skipped.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{checks, fetchAttempts, statusChanges, notifications, lastRun, lastRunFailed}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile dumps g in the text exposition format for the node_exporter
// textfile collector. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Helpers below no-op if Register hasn't been called.

func IncCheck(success bool) {
	if regOK.Load() {
		result := "success"
		if !success {
			result = "failure"
		}
		checks.WithLabelValues(result).Inc()
	}
}

func IncFetchAttempt(result string) {
	if regOK.Load() {
		fetchAttempts.WithLabelValues(result).Inc()
	}
}

func IncStatusChange(pnr string) {
	if regOK.Load() {
		statusChanges.WithLabelValues(pnr).Inc()
	}
}

func IncNotification(result string) {
	if regOK.Load() {
		notifications.WithLabelValues(result).Inc()
	}
}

func SetLastRun(at time.Time, failed int) {
	if regOK.Load() {
		lastRun.Set(float64(at.Unix()))
		lastRunFailed.Set(float64(failed))
	}
}
