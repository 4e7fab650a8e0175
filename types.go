package aotgraph

import (
	"time"

	"github.com/aotgraph/aotgraph/internal/diag"
	"github.com/aotgraph/aotgraph/internal/store"
)

// Aliases for the internal store types surfaced by the QueryBuilder API.
// External consumers use these names; no conversion is needed.

type Store = store.Store
type Node = store.Node
type Edge = store.Edge
type ApplyStats = store.ApplyStats
type Diagnostic = diag.Diagnostic

// SourceReport is the outcome of one input path within a run.
type SourceReport struct {
	Path      string
	Documents int
	Err       string // empty when the source resolved cleanly
}

// Failed reports whether the source could not be resolved at all.
func (s SourceReport) Failed() bool { return s.Err != "" }

// RunReport summarizes one ingestion run across all input sources.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Sources         []SourceReport
	DocumentsParsed int
	DocumentsFailed int

	Classes int
	Methods int
	Tables  int
	Fields  int

	Stats ApplyStats

	Diagnostics      []Diagnostic
	DiagnosticCounts map[diag.Kind]int
}

// FailedSources counts the input paths that could not be resolved.
func (r *RunReport) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Failed() {
			n++
		}
	}
	return n
}

// AllSourcesFailed reports whether no input path resolved.
func (r *RunReport) AllSourcesFailed() bool {
	return len(r.Sources) > 0 && r.FailedSources() == len(r.Sources)
}
