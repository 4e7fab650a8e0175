// Package diag defines the non-fatal diagnostic records surfaced in run
// reports. Diagnostics are values, never errors: a malformed record, an
// unresolved reference, or an ambiguous call is recorded and counted but
// never aborts a document or a run.
package diag

import "fmt"

// Kind classifies a diagnostic.
type Kind string

const (
	KindMalformedRecord     Kind = "malformed_record"
	KindUnknownElement      Kind = "unknown_element"
	KindDuplicateDecl       Kind = "duplicate_declaration"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindUnresolvedCall      Kind = "unresolved_call"
	KindAmbiguousCall       Kind = "ambiguous_call"
	KindDanglingEdge        Kind = "dangling_edge"
	KindRetiredStale        Kind = "retired_stale"
)

// Diagnostic is one non-fatal observation made during ingestion.
type Diagnostic struct {
	Kind    Kind
	Stage   string // "parse", "build", "extract", "reconcile"
	Subject string // element identifier or name the diagnostic is about
	Detail  string
}

func (d Diagnostic) String() string {
	if d.Detail == "" {
		return fmt.Sprintf("[%s] %s: %s", d.Stage, d.Kind, d.Subject)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", d.Stage, d.Kind, d.Subject, d.Detail)
}

// New constructs a diagnostic.
func New(stage string, kind Kind, subject, detail string) Diagnostic {
	return Diagnostic{Kind: kind, Stage: stage, Subject: subject, Detail: detail}
}

// CountByKind tallies diagnostics per kind, for report summaries.
func CountByKind(diags []Diagnostic) map[Kind]int {
	if len(diags) == 0 {
		return nil
	}
	counts := make(map[Kind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	return counts
}
