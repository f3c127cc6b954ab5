// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "markforest"

var (
	// analyses counts completed analyses by source (api, job, cli, watch)
	// and outcome (ok, error).
	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "total",
		Help:      "Document analyses by source and outcome",
	}, []string{"source", "outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Time spent analysing one parsed document",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	})

	treesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "forest",
		Name:      "trees_total",
		Help:      "Trees produced by the forest builder",
	})

	// diagnostics counts forest anomalies by kind (orphan, cycle, ...).
	diagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "forest",
		Name:      "diagnostics_total",
		Help:      "Forest builder anomalies resolved, by kind",
	}, []string{"kind"})

	connectorPairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connector",
		Name:      "pairs_total",
		Help:      "Connector pairs seen, by state (resolved, unresolved)",
	}, []string{"state"})

	connectorRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connector",
		Name:      "repairs_total",
		Help:      "Parent links severed by connector cycle repair",
	})

	idsAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "idalloc",
		Name:      "allocated_total",
		Help:      "Identifiers allocated, by cache result (hit, miss)",
	}, []string{"cache"})

	jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Async analysis jobs by terminal status",
	}, []string{"status"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker",
	})
)

// RecordAnalysis records one analysis attempt.
func RecordAnalysis(source string, ok bool, durationSec float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	analyses.WithLabelValues(source, outcome).Inc()
	if ok {
		analysisDuration.Observe(durationSec)
	}
}

// RecordForest records the trees and diagnostics of one analysis.
func RecordForest(trees int, diagnosticKinds []string) {
	treesBuilt.Add(float64(trees))
	for _, k := range diagnosticKinds {
		diagnostics.WithLabelValues(k).Inc()
	}
}

// RecordConnectors records pair resolution and repair counts.
func RecordConnectors(resolved, unresolved, repaired int) {
	connectorPairs.WithLabelValues("resolved").Add(float64(resolved))
	connectorPairs.WithLabelValues("unresolved").Add(float64(unresolved))
	connectorRepairs.Add(float64(repaired))
}

// RecordIDAllocated records one identifier allocation.
func RecordIDAllocated(cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	idsAllocated.WithLabelValues(label).Inc()
}

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status string) {
	jobs.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the number of queued jobs.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
