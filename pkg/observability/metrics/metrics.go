package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ForwardTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_remap",
        Name:      "forward_total",
        Help:      "Forward remap decisions by direction and outcome",
    }, []string{"direction", "outcome"})

    ReverseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_remap",
        Name:      "reverse_total",
        Help:      "Reverse remap lookups by result (hit, miss, cached)",
    }, []string{"result"})

    ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_remap",
        Name:      "errors_total",
        Help:      "Remap call failures by operation",
    }, []string{"op"})

    TableLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_remap",
        Subsystem: "table",
        Name:      "loads_total",
        Help:      "Table load/validate/sort cycles by result",
    }, []string{"result"})

    TableEntries = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_remap",
        Subsystem: "table",
        Name:      "entries",
        Help:      "Active entries in the published remap table",
    })

    Events = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_remap",
        Name:      "events_total",
        Help:      "Diagnostics events reported by severity",
    }, []string{"severity"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(ForwardTotal)
        prometheus.MustRegister(ReverseTotal)
        prometheus.MustRegister(ErrorsTotal)
        prometheus.MustRegister(TableLoads)
        prometheus.MustRegister(TableEntries)
        prometheus.MustRegister(Events)
    })
}
