package aotgraph

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngest holds Prometheus metrics for the ingestion pipeline.
type metricsIngest struct {
	once sync.Once

	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter

	documentsParsed prometheus.Counter

	nodesCreated prometheus.Counter
	nodesUpdated prometheus.Counter
	nodesRetired prometheus.Counter
	edgesAdded   prometheus.Counter
	edgesRemoved prometheus.Counter

	diagnostics prometheus.Counter

	parseDuration     prometheus.Histogram
	extractDuration   prometheus.Histogram
	reconcileDuration prometheus.Histogram
	totalDuration     prometheus.Histogram
}

var ingestMetrics metricsIngest

func (m *metricsIngest) init() {
	m.once.Do(func() {
		m.runsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_runs_completed_total", Help: "Ingestion runs that reconciled successfully"})
		m.runsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_runs_failed_total", Help: "Ingestion runs that failed outright"})

		m.documentsParsed = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_documents_parsed_total", Help: "Export documents parsed"})

		m.nodesCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_nodes_created_total", Help: "Graph nodes created"})
		m.nodesUpdated = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_nodes_updated_total", Help: "Graph nodes refreshed in place"})
		m.nodesRetired = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_nodes_retired_total", Help: "Graph nodes marked stale"})
		m.edgesAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_edges_added_total", Help: "Graph edges inserted"})
		m.edgesRemoved = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_edges_removed_total", Help: "Graph edges deleted"})

		m.diagnostics = prometheus.NewCounter(prometheus.CounterOpts{Name: "aotgraph_diagnostics_total", Help: "Non-fatal diagnostics recorded"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "aotgraph_parse_seconds", Help: "Document parse phase duration", Buckets: buckets})
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "aotgraph_extract_seconds", Help: "Reference extraction phase duration", Buckets: buckets})
		m.reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "aotgraph_reconcile_seconds", Help: "Graph reconciliation phase duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "aotgraph_run_seconds", Help: "End-to-end run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.runsCompleted, m.runsFailed,
			m.documentsParsed,
			m.nodesCreated, m.nodesUpdated, m.nodesRetired,
			m.edgesAdded, m.edgesRemoved,
			m.diagnostics,
			m.parseDuration, m.extractDuration, m.reconcileDuration, m.totalDuration,
		)
	})
}

// recordRun flushes a finished run's totals into the counters.
func recordRun(report *RunReport, ok bool) {
	ingestMetrics.init()
	if ok {
		ingestMetrics.runsCompleted.Inc()
	} else {
		ingestMetrics.runsFailed.Inc()
	}
	ingestMetrics.nodesCreated.Add(float64(report.Stats.NodesCreated))
	ingestMetrics.nodesUpdated.Add(float64(report.Stats.NodesUpdated))
	ingestMetrics.nodesRetired.Add(float64(report.Stats.NodesRetired))
	ingestMetrics.edgesAdded.Add(float64(report.Stats.EdgesAdded))
	ingestMetrics.edgesRemoved.Add(float64(report.Stats.EdgesRemoved))
	ingestMetrics.diagnostics.Add(float64(len(report.Diagnostics)))
	ingestMetrics.totalDuration.Observe(report.Duration.Seconds())
}
