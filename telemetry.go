package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "btopquiet",
		Name:      "poll_cycles_total",
		Help:      "Number of poll cycles started.",
	})
	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "btopquiet",
		Name:      "poll_errors_total",
		Help:      "Number of poll cycles that failed.",
	})
	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "btopquiet",
		Name:      "poll_duration_seconds",
		Help:      "Wall-clock duration of successful poll cycles.",
	})
)
