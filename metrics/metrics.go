// Package metrics provides Prometheus observability metrics for the
// allocation engine: allocation throughput, batch pipeline health, and
// per-error-type failure counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the application
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// AllocationsTotal counts ownership changes by action (ALLOCATE, REALLOCATE, DEALLOCATE).
var AllocationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "changes_total",
	Help:      "Total ownership changes by ledger action",
}, []string{"action"})

// AllocationConflictsTotal counts concurrent-allocation conflicts observed.
var AllocationConflictsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "conflicts_total",
	Help:      "Total allocate calls that lost a per-case race and surfaced a conflict",
})

// BatchRowsProcessed counts batch rows by outcome (applied, failed).
var BatchRowsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batch",
	Name:      "rows_total",
	Help:      "Total batch rows processed by outcome",
}, []string{"outcome"})

// BatchErrorsTotal counts batch row failures by error type.
var BatchErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batch",
	Name:      "errors_total",
	Help:      "Total batch row errors by error type",
}, []string{"error_type"})

// BatchesCompleted counts finished batches by terminal status.
var BatchesCompleted = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batch",
	Name:      "completed_total",
	Help:      "Total batches reaching a terminal status",
}, []string{"status"})

// BatchDurationSeconds tracks time from claim to terminal status.
var BatchDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "batch",
	Name:      "duration_seconds",
	Help:      "Time taken to process one uploaded batch",
	Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
})

// ReallocationJobsRunning gauges reallocation jobs currently executing.
var ReallocationJobsRunning = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "reallocation",
	Name:      "jobs_running",
	Help:      "Number of reallocation jobs currently running",
})

// ReallocationCasesMoved counts cases moved by async reallocation jobs.
var ReallocationCasesMoved = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "reallocation",
	Name:      "cases_moved_total",
	Help:      "Total cases moved by reallocation jobs",
})
