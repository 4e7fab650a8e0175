package aotgraph

import (
	"fmt"
	"sort"

	"github.com/aotgraph/aotgraph/internal/store"
)

// CallersOf returns the methods with a CALLS edge into any method declared
// as class.method. The short name can be declared in several models, so
// every matching declaration contributes callers.
func (q *QueryBuilder) CallersOf(class, method string) ([]MethodRef, error) {
	targets, err := q.store.MethodsNamed(class, method)
	if err != nil {
		return nil, fmt.Errorf("callers of: %w", err)
	}

	var edges []Edge
	for _, target := range targets {
		in, err := q.store.EdgesTo(target.ID, store.EdgeCalls)
		if err != nil {
			return nil, fmt.Errorf("callers of: %w", err)
		}
		edges = append(edges, in...)
	}
	return q.edgeEndpoints(edges, func(e Edge) string { return e.SourceID })
}

// CalleesOf returns the methods that class.method has CALLS edges into.
func (q *QueryBuilder) CalleesOf(class, method string) ([]MethodRef, error) {
	sources, err := q.store.MethodsNamed(class, method)
	if err != nil {
		return nil, fmt.Errorf("callees of: %w", err)
	}

	var edges []Edge
	for _, src := range sources {
		out, err := q.store.EdgesFrom(src.ID, store.EdgeCalls)
		if err != nil {
			return nil, fmt.Errorf("callees of: %w", err)
		}
		edges = append(edges, out...)
	}
	return q.edgeEndpoints(edges, func(e Edge) string { return e.TargetID })
}

// ReadersOf returns the methods with a READS_FIELD edge into table.field.
func (q *QueryBuilder) ReadersOf(table, field string) ([]MethodRef, error) {
	return q.fieldAccessors(table, field, store.EdgeReadsField)
}

// WritersOf returns the methods with a WRITES_FIELD edge into table.field.
func (q *QueryBuilder) WritersOf(table, field string) ([]MethodRef, error) {
	return q.fieldAccessors(table, field, store.EdgeWritesField)
}

func (q *QueryBuilder) fieldAccessors(table, field, kind string) ([]MethodRef, error) {
	targets, err := q.store.FieldsNamed(table, field)
	if err != nil {
		return nil, fmt.Errorf("accessors of: %w", err)
	}

	var edges []Edge
	for _, target := range targets {
		in, err := q.store.EdgesTo(target.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("accessors of: %w", err)
		}
		edges = append(edges, in...)
	}
	return q.edgeEndpoints(edges, func(e Edge) string { return e.SourceID })
}

// CallGraph is a transitive call graph rooted at a method. Nodes and edges
// are bulk-loaded then traversed with BFS, avoiding recursive SQL and N+1
// queries.
type CallGraph struct {
	Root  string          // starting method identifier
	Nodes []CallGraphNode // all methods reachable within depth
	Edges []Edge          // all CALLS edges in the subgraph
	Depth int             // actual max depth reached (may be < maxDepth)
}

// CallGraphNode is a method in the call graph with its distance from the
// root.
type CallGraphNode struct {
	Node  *Node
	Depth int // BFS depth from root (0 = root itself)
}

// callGraphData holds the bulk-loaded CALLS adjacency maps.
type callGraphData struct {
	forward map[string][]string // caller -> callees
	reverse map[string][]string // callee -> callers
	edges   map[[2]string]Edge  // (source, target) -> edge
}

func (q *QueryBuilder) buildCallGraphData() (*callGraphData, error) {
	edges, err := q.store.AllEdgesOfKind(store.EdgeCalls)
	if err != nil {
		return nil, fmt.Errorf("build call graph: load edges: %w", err)
	}

	data := &callGraphData{
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
		edges:   make(map[[2]string]Edge, len(edges)),
	}
	for _, e := range edges {
		data.forward[e.SourceID] = append(data.forward[e.SourceID], e.TargetID)
		data.reverse[e.TargetID] = append(data.reverse[e.TargetID], e.SourceID)
		data.edges[[2]string{e.SourceID, e.TargetID}] = e
	}
	return data, nil
}

// Callees returns the call graph reachable downstream from rootID within
// maxDepth hops. maxDepth <= 0 means unbounded.
func (q *QueryBuilder) Callees(rootID string, maxDepth int) (*CallGraph, error) {
	data, err := q.buildCallGraphData()
	if err != nil {
		return nil, err
	}
	return q.traverseCallGraph(rootID, maxDepth, data, data.forward, false)
}

// Callers returns the call graph reachable upstream from rootID within
// maxDepth hops. maxDepth <= 0 means unbounded.
func (q *QueryBuilder) Callers(rootID string, maxDepth int) (*CallGraph, error) {
	data, err := q.buildCallGraphData()
	if err != nil {
		return nil, err
	}
	return q.traverseCallGraph(rootID, maxDepth, data, data.reverse, true)
}

func (q *QueryBuilder) traverseCallGraph(rootID string, maxDepth int, data *callGraphData, adjacency map[string][]string, upstream bool) (*CallGraph, error) {
	depths := map[string]int{rootID: 0}
	queue := []string{rootID}
	reached := 0

	var subEdges []Edge
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := depths[cur]
		if maxDepth > 0 && d >= maxDepth {
			continue
		}
		next := append([]string(nil), adjacency[cur]...)
		sort.Strings(next)
		for _, n := range next {
			key := [2]string{cur, n}
			if upstream {
				key = [2]string{n, cur}
			}
			subEdges = append(subEdges, data.edges[key])
			if _, seen := depths[n]; seen {
				continue
			}
			depths[n] = d + 1
			if d+1 > reached {
				reached = d + 1
			}
			queue = append(queue, n)
		}
	}

	ids := make([]string, 0, len(depths))
	for id := range depths {
		ids = append(ids, id)
	}
	nodes, err := q.store.NodesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("call graph: load nodes: %w", err)
	}

	graph := &CallGraph{Root: rootID, Edges: subEdges, Depth: reached}
	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, CallGraphNode{Node: n, Depth: depths[n.ID]})
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Depth != graph.Nodes[j].Depth {
			return graph.Nodes[i].Depth < graph.Nodes[j].Depth
		}
		return graph.Nodes[i].Node.ID < graph.Nodes[j].Node.ID
	})
	return graph, nil
}
