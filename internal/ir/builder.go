package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aotgraph/aotgraph/internal/aotdoc"
	"github.com/aotgraph/aotgraph/internal/diag"
)

const stage = "build"

// Snapshot is the complete, self-consistent IR for one ingestion run. It is
// immutable once built: the reference extractor reads it concurrently and
// the reconciler consumes it, after which it is discarded.
type Snapshot struct {
	Classes map[string]*Class // keyed by element identifier
	Tables  map[string]*Table

	Diagnostics []diag.Diagnostic
}

// Build constructs a snapshot from parsed documents using two passes:
// declare then link. Duplicate declarations within the run are merged by
// keeping the lexically-last definition, with a diagnostic. Superclass
// references that do not resolve within the run are kept dangling rather
// than dropped; they may still resolve against the persisted store during
// reconciliation.
func Build(docs []*aotdoc.Document) *Snapshot {
	snap := &Snapshot{
		Classes: make(map[string]*Class),
		Tables:  make(map[string]*Table),
	}

	// Pass 1: declare every class, method, table, and field.
	for _, doc := range docs {
		for i := range doc.Classes {
			snap.declareClass(&doc.Classes[i])
		}
		for i := range doc.Tables {
			snap.declareTable(&doc.Tables[i])
		}
	}

	// Pass 2: link superclass references against the declared set.
	for _, cls := range snap.Classes {
		snap.linkBaseClass(cls)
	}

	return snap
}

func (s *Snapshot) declareClass(raw *aotdoc.RawClass) {
	cls := &Class{
		Name:      raw.Name,
		AOTPath:   raw.Name,
		Model:     raw.Model,
		Package:   raw.Package,
		Layer:     raw.Layer,
		BaseClass: raw.Extends,
	}

	id := cls.ID()
	if _, ok := s.Classes[id]; ok {
		s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindDuplicateDecl,
			id, "class declared more than once; keeping last definition"))
	}
	s.Classes[id] = cls

	seen := make(map[string]bool, len(raw.Methods))
	for _, rm := range raw.Methods {
		if seen[rm.Name] {
			s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindDuplicateDecl,
				ElementID(cls.Model, cls.Name, rm.Name), "method declared more than once; keeping last definition"))
		}
		seen[rm.Name] = true
		cls.AddMethod(&Method{
			Name:      rm.Name,
			AOTPath:   cls.AOTPath + "/" + rm.Name,
			Model:     cls.Model,
			ClassName: cls.Name,
			Access:    ParseAccessModifier(rm.Access),
			IsStatic:  rm.Static,
			LineCount: aotdoc.CountLines(rm.Source),
			Body:      rm.Source,
		})
	}
}

func (s *Snapshot) declareTable(raw *aotdoc.RawTable) {
	tbl := &Table{
		Name:    raw.Name,
		AOTPath: raw.Name,
		Model:   raw.Model,
		Package: raw.Package,
		Layer:   raw.Layer,
	}

	id := tbl.ID()
	if _, ok := s.Tables[id]; ok {
		s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindDuplicateDecl,
			id, "table declared more than once; keeping last definition"))
	}
	s.Tables[id] = tbl

	seen := make(map[string]bool, len(raw.Fields))
	for _, rf := range raw.Fields {
		if seen[rf.Name] {
			s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindDuplicateDecl,
				ElementID(tbl.Model, tbl.Name, rf.Name), "field declared more than once; keeping last definition"))
		}
		seen[rf.Name] = true
		tbl.AddField(&Field{
			Name:             rf.Name,
			AOTPath:          tbl.AOTPath + "/" + rf.Name,
			TableName:        tbl.Name,
			Model:            tbl.Model,
			FieldType:        rf.Type,
			ExtendedDataType: rf.ExtendedDataType,
		})
	}
}

func (s *Snapshot) linkBaseClass(cls *Class) {
	if cls.BaseClass == "" {
		return
	}

	baseID := QualifyClassRef(cls.BaseClass, cls.Model)
	if baseID == cls.ID() {
		s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindMalformedRecord,
			cls.ID(), "class extends itself; reference dropped"))
		cls.BaseClass = ""
		return
	}

	if _, ok := s.Classes[baseID]; ok {
		cls.BaseClassID = baseID
		return
	}

	// Same short name under a different model also counts: AOT references
	// are model-agnostic in source text. Candidates are sorted so the
	// choice is deterministic across runs.
	if !strings.Contains(cls.BaseClass, "/") {
		var candidates []string
		for id, candidate := range s.Classes {
			if candidate.Name == cls.BaseClass && id != cls.ID() {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) > 0 {
			sort.Strings(candidates)
			cls.BaseClassID = candidates[0]
			return
		}
	}

	// Dangling: kept on the entity, retried against the persisted store.
	s.Diagnostics = append(s.Diagnostics, diag.New(stage, diag.KindUnresolvedReference,
		cls.ID(), fmt.Sprintf("superclass %q not declared in this run", cls.BaseClass)))
}

// SortedClasses returns classes ordered by identifier for deterministic
// processing.
func (s *Snapshot) SortedClasses() []*Class {
	out := make([]*Class, 0, len(s.Classes))
	for _, c := range s.Classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SortedTables returns tables ordered by identifier.
func (s *Snapshot) SortedTables() []*Table {
	out := make([]*Table, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Methods yields every method in the snapshot, ordered by identifier.
func (s *Snapshot) Methods() []*Method {
	var out []*Method
	for _, c := range s.SortedClasses() {
		names := make([]string, 0, len(c.Methods))
		for name := range c.Methods {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, c.Methods[name])
		}
	}
	return out
}
