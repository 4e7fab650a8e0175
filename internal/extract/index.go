package extract

import (
	"sort"

	"github.com/aotgraph/aotgraph/internal/ir"
)

// Index holds the lookup structures the extractor resolves candidates
// against. It is built once per run from the immutable IR snapshot and is
// safe for concurrent readers.
type Index struct {
	// classIDsByName maps a class short name to the identifiers of every
	// class declared with that name, sorted.
	classIDsByName map[string][]string

	// methodsByClass maps a class identifier to its declared method names
	// and their identifiers.
	methodsByClass map[string]map[string]string

	// baseOf maps a class identifier to its resolved superclass identifier.
	baseOf map[string]string

	// globalMethods maps a bare method name to every method identifier
	// declared with that name anywhere in the run, sorted.
	globalMethods map[string][]string

	// tablesByName maps a table short name to every table declared with
	// that name, sorted by model so name collisions resolve the same way
	// on every run.
	tablesByName map[string][]*ir.Table
}

// NewIndex builds the extraction index from a snapshot.
func NewIndex(snap *ir.Snapshot) *Index {
	idx := &Index{
		classIDsByName: make(map[string][]string),
		methodsByClass: make(map[string]map[string]string),
		baseOf:         make(map[string]string),
		globalMethods:  make(map[string][]string),
		tablesByName:   make(map[string][]*ir.Table),
	}

	for id, cls := range snap.Classes {
		idx.classIDsByName[cls.Name] = append(idx.classIDsByName[cls.Name], id)
		if cls.BaseClassID != "" {
			idx.baseOf[id] = cls.BaseClassID
		}

		methods := make(map[string]string, len(cls.Methods))
		for name, m := range cls.Methods {
			methods[name] = m.ID()
			idx.globalMethods[name] = append(idx.globalMethods[name], m.ID())
		}
		idx.methodsByClass[id] = methods
	}

	for _, tbl := range snap.Tables {
		idx.tablesByName[tbl.Name] = append(idx.tablesByName[tbl.Name], tbl)
	}

	for name := range idx.classIDsByName {
		sort.Strings(idx.classIDsByName[name])
	}
	for name := range idx.globalMethods {
		sort.Strings(idx.globalMethods[name])
	}
	for name := range idx.tablesByName {
		tables := idx.tablesByName[name]
		sort.Slice(tables, func(i, j int) bool { return tables[i].Model < tables[j].Model })
	}

	return idx
}

// lookupOwn returns the identifier of a method declared directly on the
// given class.
func (idx *Index) lookupOwn(classID, method string) (string, bool) {
	id, ok := idx.methodsByClass[classID][method]
	return id, ok
}

// lookupInherited walks the superclass chain looking for a method. The
// chain walk is bounded by a visited set so declaration cycles cannot
// loop forever.
func (idx *Index) lookupInherited(classID, method string) (string, bool) {
	visited := map[string]bool{classID: true}
	for cur := idx.baseOf[classID]; cur != "" && !visited[cur]; cur = idx.baseOf[cur] {
		visited[cur] = true
		if id, ok := idx.lookupOwn(cur, method); ok {
			return id, true
		}
	}
	return "", false
}

// lookupGlobal returns every method identifier declared under the given
// bare name, across all classes in the run.
func (idx *Index) lookupGlobal(method string) []string {
	return idx.globalMethods[method]
}

// classIDs returns the identifiers of classes declared with the given
// short name.
func (idx *Index) classIDs(name string) []string {
	return idx.classIDsByName[name]
}

// modelsDeclaringField returns, sorted by model, every model whose table
// of the given short name declares the field. When several models declare
// the same table name all of them contribute, mirroring the keep-all
// policy for ambiguous calls.
func (idx *Index) modelsDeclaringField(table, field string) []string {
	var out []string
	for _, tbl := range idx.tablesByName[table] {
		if _, ok := tbl.Fields[field]; ok {
			out = append(out, tbl.Model)
		}
	}
	return out
}
