// Package extract infers CALLS and READS_FIELD/WRITES_FIELD facts from
// method body text. There is no parser or type checker for the body
// language: candidates are found by lightweight tokenization and resolved
// against the run's IR snapshot with a scoped lookup (own methods, then
// the inheritance chain, then a global name index). Extraction is
// best-effort and never fails a run; anything unresolvable is recorded as
// a diagnostic and omitted from the edge set.
package extract

import (
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/aotgraph/aotgraph/internal/diag"
	"github.com/aotgraph/aotgraph/internal/ir"
)

const stage = "extract"

var (
	qualifiedCallPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*::\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	memberCallPattern    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	bareCallPattern      = regexp.MustCompile(`(^|[^.\w:])([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	fieldRefPattern      = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*([A-Za-z_][A-Za-z0-9_]*)`)
)

// keywords are body-language constructs that look like call sites to the
// tokenizer and must never be treated as method names.
var keywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "do": true,
	"switch": true, "case": true, "return": true, "new": true, "this": true,
	"throw": true, "try": true, "catch": true, "retry": true, "select": true,
	"insert": true, "update": true, "delete": true, "firstonly": true,
	"ttsbegin": true, "ttscommit": true, "ttsabort": true, "changecompany": true,
	"print": true, "breakpoint": true, "str": true, "int": true, "real": true,
	"boolean": true, "date": true, "void": true, "anytype": true, "container": true,
}

// Extractor scans method bodies against a run's index.
type Extractor struct {
	idx *Index
}

// New creates an extractor over the given index.
func New(idx *Index) *Extractor {
	return &Extractor{idx: idx}
}

// Run extracts references for every method in the snapshot, populating
// each method's Calls and FieldAccesses in place. Methods are processed
// concurrently: each worker only reads the shared index and writes to its
// own method. Returns the combined diagnostics.
func Run(snap *ir.Snapshot, workers int) []diag.Diagnostic {
	idx := NewIndex(snap)
	ex := New(idx)
	methods := snap.Methods()
	if len(methods) == 0 {
		return nil
	}

	ownerOf := make(map[string]*ir.Class, len(methods))
	for _, cls := range snap.Classes {
		for _, m := range cls.Methods {
			ownerOf[m.ID()] = cls
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(methods) {
		workers = len(methods)
	}

	jobs := make(chan *ir.Method, len(methods))
	diagsCh := make(chan []diag.Diagnostic, len(methods))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				calls, accesses, diags := ex.ExtractMethod(m, ownerOf[m.ID()])
				m.Calls = calls
				m.FieldAccesses = accesses
				diagsCh <- diags
			}
		}()
	}
	for _, m := range methods {
		jobs <- m
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(diagsCh)
	}()

	var all []diag.Diagnostic
	for diags := range diagsCh {
		all = append(all, diags...)
	}
	return all
}

// ExtractMethod scans one method body and returns its call and
// field-access facts plus diagnostics for anything ambiguous or
// unresolvable.
func (e *Extractor) ExtractMethod(m *ir.Method, owner *ir.Class) ([]ir.CallRef, []ir.FieldAccess, []diag.Diagnostic) {
	if m.Body == "" {
		return nil, nil, nil
	}

	body := stripCommentsAndStrings(m.Body)
	body = skipDeclarationHeader(body, m.Name)

	var diags []diag.Diagnostic
	calls := newCallSet()

	classID := ""
	if owner != nil {
		classID = owner.ID()
	}

	// Qualified static calls: Class::method(). An explicit qualifier always
	// wins over any other resolution; an unknown class still produces a
	// potential edge that the reconciler retries against the store.
	for _, match := range qualifiedCallPattern.FindAllStringSubmatch(body, -1) {
		className, methodName := match[1], match[2]
		if resolved := e.resolveQualified(className, methodName); len(resolved) > 0 {
			for _, id := range resolved {
				calls.add(ir.CallRef{TargetID: id, Resolution: ir.ResolutionQualified})
			}
			continue
		}
		calls.add(ir.CallRef{
			TargetID:   ir.ElementID(m.Model, className, methodName),
			Resolution: ir.ResolutionQualified,
		})
	}

	// Member calls: this.method() resolves through the owning class;
	// table.method() is a record-buffer call we cannot type, so only the
	// this-qualified form is resolved.
	for _, match := range memberCallPattern.FindAllStringSubmatch(body, -1) {
		target, methodName := match[1], match[2]
		if target != "this" {
			continue
		}
		ref, ok := e.resolveScoped(classID, methodName)
		if !ok {
			diags = append(diags, diag.New(stage, diag.KindUnresolvedCall, m.ID(),
				"this."+methodName+" does not resolve in "+m.ClassName+" or its bases"))
			continue
		}
		calls.add(ref)
	}

	// Bare calls: method(). Resolved within the owning class first, then
	// its inheritance chain, then the global name index. Ambiguous global
	// matches record edges to all plausible targets.
	for _, match := range bareCallPattern.FindAllStringSubmatch(body, -1) {
		name := match[2]
		if keywords[strings.ToLower(name)] {
			continue
		}
		if name == "super" {
			// super() dispatches to the same-named method on the base chain.
			if id, ok := e.idx.lookupInherited(classID, m.Name); ok {
				calls.add(ir.CallRef{TargetID: id, Resolution: ir.ResolutionInherited})
			}
			continue
		}

		if ref, ok := e.resolveScoped(classID, name); ok {
			calls.add(ref)
			continue
		}

		global := e.idx.lookupGlobal(name)
		switch len(global) {
		case 0:
			diags = append(diags, diag.New(stage, diag.KindUnresolvedCall, m.ID(),
				name+" does not resolve against any declared method"))
		case 1:
			calls.add(ir.CallRef{TargetID: global[0], Resolution: ir.ResolutionGlobal})
		default:
			// Precision over recall: keep every plausible target rather
			// than guessing one.
			for _, id := range global {
				calls.add(ir.CallRef{TargetID: id, Resolution: ir.ResolutionAmbiguous})
			}
			diags = append(diags, diag.New(stage, diag.KindAmbiguousCall, m.ID(),
				name+" matches methods on multiple unrelated classes"))
		}
	}

	accesses := e.extractFieldAccesses(body)

	return calls.sorted(), accesses, diags
}

// resolveQualified resolves Class::method against every class declared
// with that short name, walking each candidate's inheritance chain.
func (e *Extractor) resolveQualified(className, methodName string) []string {
	var out []string
	for _, classID := range e.idx.classIDs(className) {
		if id, ok := e.idx.lookupOwn(classID, methodName); ok {
			out = append(out, id)
			continue
		}
		if id, ok := e.idx.lookupInherited(classID, methodName); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// resolveScoped resolves a method name within the owning class and then
// its inheritance chain.
func (e *Extractor) resolveScoped(classID, methodName string) (ir.CallRef, bool) {
	if classID == "" {
		return ir.CallRef{}, false
	}
	if id, ok := e.idx.lookupOwn(classID, methodName); ok {
		return ir.CallRef{TargetID: id, Resolution: ir.ResolutionSelf}, true
	}
	if id, ok := e.idx.lookupInherited(classID, methodName); ok {
		return ir.CallRef{TargetID: id, Resolution: ir.ResolutionInherited}, true
	}
	return ir.CallRef{}, false
}

// extractFieldAccesses finds Table.Field references and classifies each as
// a read, a write, or both. Known table and field name sets take
// precedence over bare identifiers: a dotted pair is only a field access
// when both names are declared. A table name declared in several models
// records one access per declaring model, so the edge targets do not
// depend on which declaration happened to be seen first.
func (e *Extractor) extractFieldAccesses(body string) []ir.FieldAccess {
	type key struct {
		table, field, model string
		kind                ir.FieldAccessKind
	}
	seen := make(map[key]bool)
	var out []ir.FieldAccess

	record := func(table, field, model string, kind ir.FieldAccessKind) {
		k := key{table, field, model, kind}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, ir.FieldAccess{
			TableName: table,
			FieldName: field,
			Model:     model,
			Kind:      kind,
		})
	}

	for _, loc := range fieldRefPattern.FindAllStringSubmatchIndex(body, -1) {
		table := body[loc[2]:loc[3]]
		field := body[loc[4]:loc[5]]
		models := e.idx.modelsDeclaringField(table, field)
		if len(models) == 0 {
			continue
		}

		rest := body[loc[5]:]
		kind := classifyAccess(rest)
		if kind == accessCall {
			// Method call on the record buffer, not a field access.
			continue
		}
		for _, model := range models {
			switch kind {
			case accessWrite:
				record(table, field, model, ir.AccessWrite)
			case accessReadWrite:
				record(table, field, model, ir.AccessRead)
				record(table, field, model, ir.AccessWrite)
			default:
				record(table, field, model, ir.AccessRead)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TableName != out[j].TableName {
			return out[i].TableName < out[j].TableName
		}
		if out[i].FieldName != out[j].FieldName {
			return out[i].FieldName < out[j].FieldName
		}
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

type accessClass int

const (
	accessRead accessClass = iota
	accessWrite
	accessReadWrite
	accessCall
)

// classifyAccess inspects what follows a field reference. Assignment
// (= or :=, but not ==) is a write; compound assignment is both a read
// and a write; a parenthesis means the match was a method call.
func classifyAccess(rest string) accessClass {
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i >= len(rest) {
		return accessRead
	}

	switch rest[i] {
	case '(':
		return accessCall
	case '=':
		if i+1 < len(rest) && rest[i+1] == '=' {
			return accessRead
		}
		return accessWrite
	case ':':
		if i+1 < len(rest) && rest[i+1] == '=' {
			return accessWrite
		}
	case '+', '-', '*', '/':
		if i+1 < len(rest) && rest[i+1] == '=' {
			return accessReadWrite
		}
	}
	return accessRead
}

// skipDeclarationHeader blanks the method's own signature line when the
// body text includes it, so the declaration is not mistaken for a
// recursive call. Genuine recursion inside the braces is still seen.
func skipDeclarationHeader(body, methodName string) string {
	brace := strings.IndexByte(body, '{')
	if brace < 0 {
		return body
	}
	header := body[:brace]
	if !strings.Contains(header, methodName) {
		return body
	}
	return strings.Repeat(" ", brace) + body[brace:]
}

// stripCommentsAndStrings blanks out comments and string literals so the
// candidate patterns do not fire inside them. Offsets are preserved by
// replacing stripped runs with spaces.
func stripCommentsAndStrings(body string) string {
	out := []byte(body)
	n := len(out)
	i := 0

	blank := func(from, to int) {
		for j := from; j < to && j < n; j++ {
			if out[j] != '\n' {
				out[j] = ' '
			}
		}
	}

	for i < n {
		switch {
		case out[i] == '/' && i+1 < n && out[i+1] == '/':
			j := i
			for j < n && out[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case out[i] == '/' && i+1 < n && out[i+1] == '*':
			j := i + 2
			for j+1 < n && !(out[j] == '*' && out[j+1] == '/') {
				j++
			}
			if j+1 < n {
				j += 2
			} else {
				j = n
			}
			blank(i, j)
			i = j
		case out[i] == '"' || out[i] == '\'':
			quote := out[i]
			j := i + 1
			for j < n && out[j] != quote && out[j] != '\n' {
				if out[j] == '\\' {
					j++
				}
				j++
			}
			if j < n {
				j++
			}
			blank(i, j)
			i = j
		default:
			i++
		}
	}
	return string(out)
}

// callSet deduplicates call references by target, keeping the first
// resolution kind seen for a target.
type callSet struct {
	seen map[string]bool
	refs []ir.CallRef
}

func newCallSet() *callSet {
	return &callSet{seen: make(map[string]bool)}
}

func (s *callSet) add(ref ir.CallRef) {
	if s.seen[ref.TargetID] {
		return
	}
	s.seen[ref.TargetID] = true
	s.refs = append(s.refs, ref)
}

func (s *callSet) sorted() []ir.CallRef {
	sort.Slice(s.refs, func(i, j int) bool { return s.refs[i].TargetID < s.refs[j].TargetID })
	return s.refs
}
