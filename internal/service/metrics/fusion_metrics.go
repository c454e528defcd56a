package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    FusionLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "finfuse",
            Subsystem: "fusion",
            Name:      "latency_seconds",
            Help:      "Latency of fusion endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    FusionErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "finfuse",
            Subsystem: "fusion",
            Name:      "errors_total",
            Help:      "Errors by fusion endpoint",
        },
        []string{"endpoint"},
    )

    GateOutcomes = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "finfuse",
            Subsystem: "fusion",
            Name:      "gate_outcomes_total",
            Help:      "Non-OPEN gate outcomes by gate name",
        },
        []string{"gate"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(FusionLatency, FusionErrors, GateOutcomes)
    })
}
