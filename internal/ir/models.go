// Package ir defines the run-scoped intermediate representation built from
// parsed AOT export documents. Entities carry deterministic identifiers
// derived from their fully-qualified declaration path, so re-parsing the
// same source always yields the same identifier for the same declaration.
package ir

import "strings"

// AccessModifier is a method's declared visibility.
type AccessModifier string

const (
	AccessPublic    AccessModifier = "public"
	AccessProtected AccessModifier = "protected"
	AccessPrivate   AccessModifier = "private"
	AccessInternal  AccessModifier = "internal"
)

// ParseAccessModifier normalizes an access string, defaulting to public.
func ParseAccessModifier(s string) AccessModifier {
	switch AccessModifier(strings.ToLower(strings.TrimSpace(s))) {
	case AccessProtected:
		return AccessProtected
	case AccessPrivate:
		return AccessPrivate
	case AccessInternal:
		return AccessInternal
	default:
		return AccessPublic
	}
}

// FieldAccessKind distinguishes field reads from writes.
type FieldAccessKind string

const (
	AccessRead  FieldAccessKind = "read"
	AccessWrite FieldAccessKind = "write"
)

// ResolutionKind records how a call edge's target was resolved.
type ResolutionKind string

const (
	ResolutionQualified ResolutionKind = "qualified"
	ResolutionSelf      ResolutionKind = "self"
	ResolutionInherited ResolutionKind = "inherited"
	ResolutionGlobal    ResolutionKind = "global"
	ResolutionAmbiguous ResolutionKind = "global-ambiguous"
)

// ElementID builds the canonical identifier for an AOT element from its
// model name and remaining path segments (container name, local name).
// Empty segments are dropped; segments are joined with "/".
func ElementID(model string, segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, strings.TrimSpace(model))
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}

// Class is a class declaration with its methods.
type Class struct {
	Name      string
	AOTPath   string
	Model     string
	Package   string
	Layer     string
	BaseClass string // unresolved short or qualified name; may be dangling
	Methods   map[string]*Method

	// BaseClassID is filled by the link pass when the superclass was
	// declared in this run; otherwise empty and BaseClass stays dangling.
	BaseClassID string
}

// ID returns the class's canonical identifier.
func (c *Class) ID() string { return ElementID(c.Model, c.Name) }

// AddMethod registers a method, replacing any earlier declaration with the
// same name (lexically-last wins).
func (c *Class) AddMethod(m *Method) {
	if c.Methods == nil {
		c.Methods = make(map[string]*Method)
	}
	c.Methods[m.Name] = m
}

// Method is a method declaration including its raw body text and the
// reference facts extracted from it.
type Method struct {
	Name      string
	AOTPath   string
	Model     string
	ClassName string
	Access    AccessModifier
	IsStatic  bool
	LineCount int
	Body      string

	Calls         []CallRef
	FieldAccesses []FieldAccess
}

// ID returns the method's canonical identifier.
func (m *Method) ID() string { return ElementID(m.Model, m.ClassName, m.Name) }

// CallRef is one outgoing call fact: target method identifier plus how the
// target was resolved.
type CallRef struct {
	TargetID   string
	Resolution ResolutionKind
}

// FieldAccess is one field read or write fact.
type FieldAccess struct {
	TableName string
	FieldName string
	Model     string
	Kind      FieldAccessKind
}

// TargetFieldID returns the canonical identifier of the accessed field.
func (fa FieldAccess) TargetFieldID() string {
	return ElementID(fa.Model, fa.TableName, fa.FieldName)
}

// Table is a table declaration with its fields.
type Table struct {
	Name    string
	AOTPath string
	Model   string
	Package string
	Layer   string
	Fields  map[string]*Field
}

// ID returns the table's canonical identifier.
func (t *Table) ID() string { return ElementID(t.Model, t.Name) }

// AddField registers a field, replacing any earlier declaration with the
// same name.
func (t *Table) AddField(f *Field) {
	if t.Fields == nil {
		t.Fields = make(map[string]*Field)
	}
	t.Fields[f.Name] = f
}

// Field is a table field declaration.
type Field struct {
	Name             string
	AOTPath          string
	TableName        string
	Model            string
	FieldType        string
	ExtendedDataType string
}

// ID returns the field's canonical identifier.
func (f *Field) ID() string { return ElementID(f.Model, f.TableName, f.Name) }

// QualifyClassRef converts a reference such as "Model/ClassName" or a bare
// "ClassName" into a class identifier, defaulting to fallbackModel.
func QualifyClassRef(ref, fallbackModel string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.Contains(ref, "/") {
		return ref
	}
	return ElementID(fallbackModel, ref)
}
