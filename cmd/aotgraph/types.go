package main

import (
	"github.com/aotgraph/aotgraph"
)

// CLIResult is the top-level JSON envelope every command emits.
type CLIResult struct {
	Query      string `json:"query"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
}

// CLINode is the JSON shape of a graph node. Empty property columns are
// omitted so class, method, table, and field nodes stay readable.
type CLINode struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Layer     string `json:"layer,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	TableName string `json:"table_name,omitempty"`
	Access    string `json:"access,omitempty"`
	IsStatic  bool   `json:"is_static,omitempty"`
	LineCount int    `json:"line_count,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
}

func cliNode(n *aotgraph.Node) CLINode {
	return CLINode{
		ID:        n.ID,
		Label:     n.Label,
		Name:      n.Name,
		Model:     n.Model,
		Layer:     n.Layer,
		ClassName: n.ClassName,
		TableName: n.TableName,
		Access:    n.Access,
		IsStatic:  n.IsStatic,
		LineCount: n.LineCount,
		Stale:     n.Stale,
	}
}

func cliNodes(nodes []*aotgraph.Node) []CLINode {
	out := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, cliNode(n))
	}
	return out
}

// CLIMethodRef is a node plus the resolution of the edge that reached it.
type CLIMethodRef struct {
	CLINode
	Resolution string `json:"resolution,omitempty"`
}

func cliMethodRefs(refs []aotgraph.MethodRef) []CLIMethodRef {
	out := make([]CLIMethodRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, CLIMethodRef{CLINode: cliNode(r.Node), Resolution: r.Resolution})
	}
	return out
}

// CLISourceReport is the per-input outcome within an ingest report.
type CLISourceReport struct {
	Path      string `json:"path"`
	Documents int    `json:"documents"`
	Error     string `json:"error,omitempty"`
}

// CLIDiagnostic is one non-fatal observation from an ingest run.
type CLIDiagnostic struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
}

// CLIReport is the JSON shape of an ingest run report.
type CLIReport struct {
	RunID           string            `json:"run_id"`
	DurationMS      int64             `json:"duration_ms"`
	Sources         []CLISourceReport `json:"sources"`
	DocumentsParsed int               `json:"documents_parsed"`
	DocumentsFailed int               `json:"documents_failed,omitempty"`
	Classes         int               `json:"classes"`
	Methods         int               `json:"methods"`
	Tables          int               `json:"tables"`
	Fields          int               `json:"fields"`
	NodesCreated    int               `json:"nodes_created"`
	NodesUpdated    int               `json:"nodes_updated"`
	NodesRetired    int               `json:"nodes_retired,omitempty"`
	EdgesAdded      int               `json:"edges_added"`
	EdgesRemoved    int               `json:"edges_removed,omitempty"`
	Diagnostics     []CLIDiagnostic   `json:"diagnostics,omitempty"`
}

func cliReport(r *aotgraph.RunReport) CLIReport {
	out := CLIReport{
		RunID:           r.RunID,
		DurationMS:      r.Duration.Milliseconds(),
		DocumentsParsed: r.DocumentsParsed,
		DocumentsFailed: r.DocumentsFailed,
		Classes:         r.Classes,
		Methods:         r.Methods,
		Tables:          r.Tables,
		Fields:          r.Fields,
		NodesCreated:    r.Stats.NodesCreated,
		NodesUpdated:    r.Stats.NodesUpdated,
		NodesRetired:    r.Stats.NodesRetired,
		EdgesAdded:      r.Stats.EdgesAdded,
		EdgesRemoved:    r.Stats.EdgesRemoved,
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, CLISourceReport{Path: s.Path, Documents: s.Documents, Error: s.Err})
	}
	for _, d := range r.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{
			Kind:    string(d.Kind),
			Stage:   d.Stage,
			Subject: d.Subject,
			Detail:  d.Detail,
		})
	}
	return out
}

// CLISummary is the JSON shape of a graph summary.
type CLISummary struct {
	NodeCounts map[string]int  `json:"node_counts"`
	EdgeCounts map[string]int  `json:"edge_counts"`
	Models     []CLIModelStats `json:"models,omitempty"`
}

// CLIModelStats is the per-model node breakdown within a summary.
type CLIModelStats struct {
	Model       string         `json:"model"`
	LabelCounts map[string]int `json:"label_counts"`
}

func cliSummary(s *aotgraph.GraphSummary) CLISummary {
	out := CLISummary{NodeCounts: s.NodeCounts, EdgeCounts: s.EdgeCounts}
	for _, m := range s.Models {
		out.Models = append(out.Models, CLIModelStats{Model: m.Model, LabelCounts: m.LabelCounts})
	}
	return out
}
