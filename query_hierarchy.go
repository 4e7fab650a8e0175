package aotgraph

import (
	"fmt"

	"github.com/aotgraph/aotgraph/internal/store"
)

// InheritanceChain returns a class followed by its superclasses, nearest
// first, walking persisted EXTENDS edges. When the short name is declared
// in several models the lexically-first declaration is walked; use
// InheritanceChainByID to pick one explicitly. A declaration cycle ends
// the walk at the repeated class.
func (q *QueryBuilder) InheritanceChain(class string) ([]*Node, error) {
	classes, err := q.store.NodesByLabelAndName(store.LabelClass, class)
	if err != nil {
		return nil, fmt.Errorf("inheritance chain: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("inheritance chain: %w: class %s", ErrNodeNotFound, class)
	}
	return q.InheritanceChainByID(classes[0].ID)
}

// InheritanceChainByID is InheritanceChain starting from a known class
// identifier.
func (q *QueryBuilder) InheritanceChainByID(classID string) ([]*Node, error) {
	var chain []*Node
	visited := make(map[string]bool)

	for cur := classID; cur != "" && !visited[cur]; {
		visited[cur] = true
		n, err := q.store.NodeByID(cur)
		if err != nil {
			return nil, fmt.Errorf("inheritance chain: %w", err)
		}
		if n == nil {
			break // dangling superclass reference
		}
		chain = append(chain, n)

		cur, err = q.store.BaseClassID(cur)
		if err != nil {
			return nil, fmt.Errorf("inheritance chain: %w", err)
		}
	}
	return chain, nil
}

// SubclassesOf returns the classes with an EXTENDS edge into any class
// declared under the given short name.
func (q *QueryBuilder) SubclassesOf(class string) ([]*Node, error) {
	classes, err := q.store.NodesByLabelAndName(store.LabelClass, class)
	if err != nil {
		return nil, fmt.Errorf("subclasses of: %w", err)
	}

	var out []*Node
	seen := make(map[string]bool)
	for _, c := range classes {
		edges, err := q.store.EdgesTo(c.ID, store.EdgeExtends)
		if err != nil {
			return nil, fmt.Errorf("subclasses of: %w", err)
		}
		var ids []string
		for _, e := range edges {
			if !seen[e.SourceID] {
				seen[e.SourceID] = true
				ids = append(ids, e.SourceID)
			}
		}
		nodes, err := q.store.NodesByIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("subclasses of: %w", err)
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// MethodsOf returns the live methods declared by classes under the given
// short name, ordered by identifier.
func (q *QueryBuilder) MethodsOf(class string) ([]*Node, error) {
	return q.declaredMembers(store.LabelClass, class, store.EdgeDeclaresMethod)
}

// FieldsOf returns the live fields declared by tables under the given
// short name, ordered by identifier.
func (q *QueryBuilder) FieldsOf(table string) ([]*Node, error) {
	return q.declaredMembers(store.LabelTable, table, store.EdgeHasField)
}

func (q *QueryBuilder) declaredMembers(label, name, kind string) ([]*Node, error) {
	parents, err := q.store.NodesByLabelAndName(label, name)
	if err != nil {
		return nil, fmt.Errorf("members of: %w", err)
	}

	var out []*Node
	for _, p := range parents {
		members, err := q.store.MembersOf(p.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("members of: %w", err)
		}
		out = append(out, members...)
	}
	return out, nil
}
