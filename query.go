package aotgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aotgraph/aotgraph/internal/store"
)

// ErrNodeNotFound is returned by lookups that require the node to exist.
var ErrNodeNotFound = errors.New("node not found")

// QueryBuilder provides the read-side API over the Store.
type QueryBuilder struct {
	store *store.Store
}

// MethodRef pairs a method node with the resolution recorded on the edge
// that reached it.
type MethodRef struct {
	Node       *Node
	Resolution string
}

// NodeByID returns the node with the given element identifier, or nil when
// it is not persisted.
func (q *QueryBuilder) NodeByID(id string) (*Node, error) {
	return q.store.NodeByID(id)
}

// NodeText returns the persisted source text of the node with the given
// identifier. Only method nodes carry text; any other label yields an
// empty string.
func (q *QueryBuilder) NodeText(id string) (string, error) {
	n, err := q.store.NodeByID(id)
	if err != nil {
		return "", fmt.Errorf("node text: %w", err)
	}
	if n == nil {
		return "", fmt.Errorf("node text: %w: %s", ErrNodeNotFound, id)
	}
	return n.Body, nil
}

// ClassesNamed returns the live class nodes declared under the given short
// name, one per declaring model, ordered by identifier.
func (q *QueryBuilder) ClassesNamed(name string) ([]*Node, error) {
	return q.store.NodesByLabelAndName(store.LabelClass, name)
}

// TablesNamed returns the live table nodes declared under the given short
// name, ordered by identifier.
func (q *QueryBuilder) TablesNamed(name string) ([]*Node, error) {
	return q.store.NodesByLabelAndName(store.LabelTable, name)
}

// edgeEndpoints resolves one side of an edge list to nodes, pairing each
// with the edge's resolution and deduplicating by node identifier.
func (q *QueryBuilder) edgeEndpoints(edges []Edge, pick func(Edge) string) ([]MethodRef, error) {
	resolution := make(map[string]string, len(edges))
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		id := pick(e)
		if _, ok := resolution[id]; ok {
			continue
		}
		resolution[id] = e.Resolution
		ids = append(ids, id)
	}

	nodes, err := q.store.NodesByIDs(ids)
	if err != nil {
		return nil, err
	}

	refs := make([]MethodRef, 0, len(nodes))
	for _, n := range nodes {
		refs = append(refs, MethodRef{Node: n, Resolution: resolution[n.ID]})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Node.ID < refs[j].Node.ID })
	return refs, nil
}
