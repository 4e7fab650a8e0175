package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatNodesText formats CLINode results as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tNAME\tMODEL")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Label, n.Name, n.Model)
	}
	tw.Flush()
}

// formatMethodRefsText formats CLIMethodRef results as aligned columns.
func formatMethodRefsText(w io.Writer, refs []CLIMethodRef) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASS\tMETHOD\tRESOLUTION")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.ClassName, r.Name, r.Resolution)
	}
	tw.Flush()
}

// formatReportText formats an ingest report as readable text.
func formatReportText(w io.Writer, report CLIReport) {
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintln(w, "Sources:")
	for _, s := range report.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "  %s: FAILED (%s)\n", s.Path, s.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %d document(s)\n", s.Path, s.Documents)
	}
	fmt.Fprintf(w, "Parsed: %d document(s), %d failed\n", report.DocumentsParsed, report.DocumentsFailed)
	fmt.Fprintf(w, "Declared: %d classes, %d methods, %d tables, %d fields\n",
		report.Classes, report.Methods, report.Tables, report.Fields)
	fmt.Fprintf(w, "Graph: +%d/~%d nodes, %d retired, +%d/-%d edges\n",
		report.NodesCreated, report.NodesUpdated, report.NodesRetired,
		report.EdgesAdded, report.EdgesRemoved)
	if len(report.Diagnostics) > 0 {
		counts := make(map[string]int)
		for _, d := range report.Diagnostics {
			counts[d.Kind]++
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintln(w, "Diagnostics:")
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
		}
	}
}

// formatSummaryText formats a graph summary as readable text.
func formatSummaryText(w io.Writer, summary CLISummary) {
	fmt.Fprintln(w, "Graph Summary")
	fmt.Fprintln(w, "=============")

	labels := make([]string, 0, len(summary.NodeCounts))
	for l := range summary.NodeCounts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	fmt.Fprintln(w, "Nodes:")
	for _, l := range labels {
		fmt.Fprintf(w, "  %s: %d\n", l, summary.NodeCounts[l])
	}

	kinds := make([]string, 0, len(summary.EdgeCounts))
	for k := range summary.EdgeCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintln(w, "Edges:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, summary.EdgeCounts[k])
	}

	if len(summary.Models) > 0 {
		fmt.Fprintln(w, "Models:")
		for _, m := range summary.Models {
			total := 0
			for _, c := range m.LabelCounts {
				total += c
			}
			fmt.Fprintf(w, "  %s: %d node(s)\n", m.Model, total)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on
// the result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLINode:
		formatNodesText(w, v)
	case CLINode:
		formatNodesText(w, []CLINode{v})
	case []CLIMethodRef:
		formatMethodRefsText(w, v)
	case CLIReport:
		formatReportText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLINode:
		return len(r)
	case []CLIMethodRef:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
