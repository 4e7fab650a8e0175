package aotgraph

import (
	"fmt"
	"strings"

	"github.com/aotgraph/aotgraph/internal/store"
)

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// NodeFilter specifies which nodes to include.
type NodeFilter struct {
	Labels []string // match any of these labels
	Model  string   // restrict to one model
}

// SearchNodes performs glob-style search on node names. '*' is the
// wildcard (mapped to SQL '%'). Stale nodes are excluded.
func (q *QueryBuilder) SearchNodes(pattern string, filter NodeFilter, page Pagination) (*PagedResult[*Node], error) {
	page = page.normalize()

	where := []string{"NOT stale"}
	var args []any

	if pattern != "" && pattern != "*" {
		likePattern := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, `name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern)
	}
	if len(filter.Labels) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Labels)-1) + "?"
		where = append(where, "label IN ("+placeholders+")")
		for _, l := range filter.Labels {
			args = append(args, l)
		}
	}
	if filter.Model != "" {
		where = append(where, "model = ?")
		args = append(args, filter.Model)
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	var totalCount int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM nodes "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search nodes: count: %w", err)
	}

	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)
	nodes, err := q.store.QueryNodes(
		"SELECT "+store.NodeColumns+" FROM nodes "+whereClause+" ORDER BY id LIMIT ? OFFSET ?",
		dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	if nodes == nil {
		nodes = []*Node{}
	}
	return &PagedResult[*Node]{Items: nodes, TotalCount: totalCount}, nil
}

// ModelStats is the per-model breakdown for GraphSummary.
type ModelStats struct {
	Model       string
	LabelCounts map[string]int
}

// GraphSummary is a high-level overview of the persisted graph.
type GraphSummary struct {
	Models     []ModelStats
	NodeCounts map[string]int // live nodes per label
	EdgeCounts map[string]int // edges per kind
}

// GraphSummary returns node and edge counts across the whole graph,
// broken down per model.
func (q *QueryBuilder) GraphSummary() (*GraphSummary, error) {
	summary := &GraphSummary{
		NodeCounts: make(map[string]int),
		EdgeCounts: make(map[string]int),
	}

	rows, err := q.store.DB().Query(
		"SELECT label, COUNT(*) FROM nodes WHERE NOT stale GROUP BY label ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("graph summary: node counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("graph summary: scan label: %w", err)
		}
		summary.NodeCounts[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graph summary: label rows: %w", err)
	}

	edgeRows, err := q.store.DB().Query(
		"SELECT kind, COUNT(*) FROM edges GROUP BY kind ORDER BY kind")
	if err != nil {
		return nil, fmt.Errorf("graph summary: edge counts: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var kind string
		var count int
		if err := edgeRows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("graph summary: scan kind: %w", err)
		}
		summary.EdgeCounts[kind] = count
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("graph summary: edge rows: %w", err)
	}

	modelRows, err := q.store.DB().Query(
		`SELECT model, label, COUNT(*) FROM nodes
		 WHERE NOT stale AND model != ''
		 GROUP BY model, label ORDER BY model, label`)
	if err != nil {
		return nil, fmt.Errorf("graph summary: model counts: %w", err)
	}
	defer modelRows.Close()

	var current *ModelStats
	for modelRows.Next() {
		var model, label string
		var count int
		if err := modelRows.Scan(&model, &label, &count); err != nil {
			return nil, fmt.Errorf("graph summary: scan model: %w", err)
		}
		if current == nil || current.Model != model {
			summary.Models = append(summary.Models, ModelStats{Model: model, LabelCounts: make(map[string]int)})
			current = &summary.Models[len(summary.Models)-1]
		}
		current.LabelCounts[label] = count
	}
	if err := modelRows.Err(); err != nil {
		return nil, fmt.Errorf("graph summary: model rows: %w", err)
	}

	return summary, nil
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
