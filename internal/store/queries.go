package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// NodeColumns is the select list matching the Node scan order. Exported
// for callers composing their own queries over DB().
const NodeColumns = nodeColumns

// QueryNodes runs a node select whose column list matches NodeColumns.
func (s *Store) QueryNodes(query string, args ...any) ([]*Node, error) {
	return s.queryNodes(query, args...)
}

// NodeByID returns the node with the given identifier, or nil when it is
// not persisted.
func (s *Store) NodeByID(id string) (*Node, error) {
	n, err := scanNode(s.db.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node by id: %w", err)
	}
	return n, nil
}

// NodesByLabelAndName returns live nodes of the given label and name,
// ordered by identifier. The same short name can be declared in several
// models, so more than one node can come back.
func (s *Store) NodesByLabelAndName(label, name string) ([]*Node, error) {
	return s.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE label = ? AND name = ? AND NOT stale ORDER BY id",
		label, name)
}

// MethodsNamed returns live method nodes declared as class.method.
func (s *Store) MethodsNamed(class, method string) ([]*Node, error) {
	return s.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE label = ? AND class_name = ? AND name = ? AND NOT stale ORDER BY id",
		LabelMethod, class, method)
}

// FieldsNamed returns live field nodes declared as table.field.
func (s *Store) FieldsNamed(table, field string) ([]*Node, error) {
	return s.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE label = ? AND table_name = ? AND name = ? AND NOT stale ORDER BY id",
		LabelField, table, field)
}

// nodeColumnsQualified is nodeColumns with every column prefixed by the
// nodes table, for queries that join against tables with overlapping
// column names.
var nodeColumnsQualified = func() string {
	parts := strings.Split(nodeColumns, ",")
	for i, p := range parts {
		parts[i] = "nodes." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}()

// MembersOf returns the live targets of the given edge kind from sourceID,
// ordered by identifier.
func (s *Store) MembersOf(sourceID, kind string) ([]*Node, error) {
	return s.queryNodes(
		`SELECT `+nodeColumnsQualified+` FROM nodes
		 JOIN edges ON edges.target_id = nodes.id
		 WHERE edges.source_id = ? AND edges.kind = ? AND NOT nodes.stale
		 ORDER BY nodes.id`,
		sourceID, kind)
}

// EdgesFrom returns edges leaving sourceID with the given kind.
func (s *Store) EdgesFrom(sourceID, kind string) ([]Edge, error) {
	return s.queryEdges(
		"SELECT source_id, kind, target_id, resolution, run_id FROM edges WHERE source_id = ? AND kind = ? ORDER BY target_id",
		sourceID, kind)
}

// EdgesTo returns edges arriving at targetID with the given kind.
func (s *Store) EdgesTo(targetID, kind string) ([]Edge, error) {
	return s.queryEdges(
		"SELECT source_id, kind, target_id, resolution, run_id FROM edges WHERE target_id = ? AND kind = ? ORDER BY source_id",
		targetID, kind)
}

// AllEdgesOfKind returns every edge of the given kind, ordered by source
// then target. Used for bulk-loading adjacency maps.
func (s *Store) AllEdgesOfKind(kind string) ([]Edge, error) {
	return s.queryEdges(
		"SELECT source_id, kind, target_id, resolution, run_id FROM edges WHERE kind = ? ORDER BY source_id, target_id",
		kind)
}

// NodesByIDs fetches the given nodes, ordered by identifier. Missing
// identifiers are silently absent from the result.
func (s *Store) NodesByIDs(ids []string) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE id IN ("+placeholderList(len(ids))+") ORDER BY id",
		stringsToArgs(ids)...)
}

// BaseClassID returns the identifier of the superclass of classID via its
// EXTENDS edge, or empty when none is persisted.
func (s *Store) BaseClassID(classID string) (string, error) {
	var target string
	err := s.db.QueryRow(
		"SELECT target_id FROM edges WHERE source_id = ? AND kind = ? LIMIT 1",
		classID, EdgeExtends).Scan(&target)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("base class of %s: %w", classID, err)
	}
	return target, nil
}

// CountNodes returns the number of live nodes, optionally restricted to a
// label. Empty label counts everything.
func (s *Store) CountNodes(label string) (int, error) {
	q := "SELECT COUNT(*) FROM nodes WHERE NOT stale"
	var args []any
	if label != "" {
		q += " AND label = ?"
		args = append(args, label)
	}
	var n int
	if err := s.db.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// CountEdges returns the number of edges, optionally restricted to a kind.
func (s *Store) CountEdges(kind string) (int, error) {
	q := "SELECT COUNT(*) FROM edges"
	var args []any
	if kind != "" {
		q += " WHERE kind = ?"
		args = append(args, kind)
	}
	var n int
	if err := s.db.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return n, nil
}

func (s *Store) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *Store) queryEdges(query string, args ...any) ([]Edge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.Kind, &e.TargetID, &e.Resolution, &e.RunID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
