package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aotgraph/aotgraph/internal/aotdoc"
	"github.com/aotgraph/aotgraph/internal/diag"
)

func rawClass(model, name, extends string, methods ...string) aotdoc.RawClass {
	cls := aotdoc.RawClass{Name: name, Model: model, Package: model, Extends: extends}
	for _, m := range methods {
		cls.Methods = append(cls.Methods, aotdoc.RawMethod{Name: m, Source: "void " + m + "() {}"})
	}
	return cls
}

func docOf(classes ...aotdoc.RawClass) *aotdoc.Document {
	return &aotdoc.Document{Path: "test.xml", Classes: classes}
}

func kinds(diags []diag.Diagnostic) []diag.Kind {
	var out []diag.Kind
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}

// ====== Declaration ======

func TestBuild_DeclaresClassesAndMethods(t *testing.T) {
	t.Parallel()

	snap := Build([]*aotdoc.Document{docOf(rawClass("App", "Foo", "", "bar", "baz"))})

	require.Len(t, snap.Classes, 1)
	cls := snap.Classes["App/Foo"]
	require.NotNil(t, cls)
	assert.Equal(t, "Foo", cls.Name)
	require.Len(t, cls.Methods, 2)

	bar := cls.Methods["bar"]
	require.NotNil(t, bar)
	assert.Equal(t, "App/Foo/bar", bar.ID())
	assert.Equal(t, "Foo", bar.ClassName)
	assert.Equal(t, AccessPublic, bar.Access)
	assert.Equal(t, 1, bar.LineCount)
	assert.Empty(t, snap.Diagnostics)
}

func TestBuild_DeclaresTablesAndFields(t *testing.T) {
	t.Parallel()

	doc := &aotdoc.Document{Path: "test.xml", Tables: []aotdoc.RawTable{{
		Name: "CustTable", Model: "App",
		Fields: []aotdoc.RawField{{Name: "CreditMax", Type: "Real", ExtendedDataType: "AmountMST"}},
	}}}
	snap := Build([]*aotdoc.Document{doc})

	tbl := snap.Tables["App/CustTable"]
	require.NotNil(t, tbl)
	f := tbl.Fields["CreditMax"]
	require.NotNil(t, f)
	assert.Equal(t, "App/CustTable/CreditMax", f.ID())
	assert.Equal(t, "Real", f.FieldType)
	assert.Equal(t, "AmountMST", f.ExtendedDataType)
}

// ====== Duplicates ======

func TestBuild_DuplicateClassKeepsLast(t *testing.T) {
	t.Parallel()

	first := docOf(rawClass("App", "Foo", "", "old"))
	second := docOf(rawClass("App", "Foo", "", "new"))
	snap := Build([]*aotdoc.Document{first, second})

	require.Len(t, snap.Classes, 1)
	cls := snap.Classes["App/Foo"]
	assert.Nil(t, cls.Methods["old"], "earlier definition replaced")
	assert.NotNil(t, cls.Methods["new"])
	assert.Contains(t, kinds(snap.Diagnostics), diag.KindDuplicateDecl)
}

func TestBuild_DuplicateMethodKeepsLast(t *testing.T) {
	t.Parallel()

	cls := rawClass("App", "Foo", "")
	cls.Methods = []aotdoc.RawMethod{
		{Name: "bar", Source: "void bar() { old(); }"},
		{Name: "bar", Source: "void bar() { new2(); }"},
	}
	snap := Build([]*aotdoc.Document{docOf(cls)})

	m := snap.Classes["App/Foo"].Methods["bar"]
	require.NotNil(t, m)
	assert.Contains(t, m.Body, "new2()")
	assert.Contains(t, kinds(snap.Diagnostics), diag.KindDuplicateDecl)
}

// ====== Superclass linking ======

func TestBuild_LinksForwardReference(t *testing.T) {
	t.Parallel()

	// Derived appears before Base; the link pass runs after all
	// declarations so order cannot matter.
	snap := Build([]*aotdoc.Document{
		docOf(rawClass("App", "Derived", "Base")),
		docOf(rawClass("App", "Base", "")),
	})

	derived := snap.Classes["App/Derived"]
	require.NotNil(t, derived)
	assert.Equal(t, "App/Base", derived.BaseClassID)
	assert.Empty(t, snap.Diagnostics)
}

func TestBuild_LinksAcrossModels(t *testing.T) {
	t.Parallel()

	snap := Build([]*aotdoc.Document{
		docOf(rawClass("Extension", "Derived", "Base")),
		docOf(rawClass("Foundation", "Base", "")),
	})

	derived := snap.Classes["Extension/Derived"]
	require.NotNil(t, derived)
	assert.Equal(t, "Foundation/Base", derived.BaseClassID)
}

func TestBuild_DanglingBaseKept(t *testing.T) {
	t.Parallel()

	snap := Build([]*aotdoc.Document{docOf(rawClass("App", "Derived", "Missing"))})

	derived := snap.Classes["App/Derived"]
	require.NotNil(t, derived)
	assert.Empty(t, derived.BaseClassID)
	assert.Equal(t, "Missing", derived.BaseClass, "reference survives for store-side resolution")
	assert.Contains(t, kinds(snap.Diagnostics), diag.KindUnresolvedReference)
}

func TestBuild_SelfExtendsDropped(t *testing.T) {
	t.Parallel()

	snap := Build([]*aotdoc.Document{docOf(rawClass("App", "Loop", "Loop"))})

	cls := snap.Classes["App/Loop"]
	require.NotNil(t, cls)
	assert.Empty(t, cls.BaseClass)
	assert.Empty(t, cls.BaseClassID)
	assert.Contains(t, kinds(snap.Diagnostics), diag.KindMalformedRecord)
}

// ====== Ordering ======

func TestSnapshot_DeterministicOrder(t *testing.T) {
	t.Parallel()

	snap := Build([]*aotdoc.Document{docOf(
		rawClass("App", "Zeta", "", "b", "a"),
		rawClass("App", "Alpha", "", "z"),
	)})

	classes := snap.SortedClasses()
	require.Len(t, classes, 2)
	assert.Equal(t, "App/Alpha", classes[0].ID())
	assert.Equal(t, "App/Zeta", classes[1].ID())

	var ids []string
	for _, m := range snap.Methods() {
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []string{"App/Alpha/z", "App/Zeta/a", "App/Zeta/b"}, ids)
}
