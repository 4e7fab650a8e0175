package aotdoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aotgraph/aotgraph/internal/diag"
)

func parseString(t *testing.T, doc string) *Document {
	t.Helper()
	var p Parser
	parsed, err := p.Parse(strings.NewReader(doc), "test.xml")
	require.NoError(t, err)
	return parsed
}

// ====== Classes ======

func TestParse_ClassWithMethods(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxModel Name="Demo">
  <AxClass Name="Foo">
    <Extends>Base</Extends>
    <Methods>
      <AxMethod Name="bar" Access="protected" Static="true">
        <Source>void bar()
{
    this.baz();
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
</AxModel>`)

	assert.Equal(t, "Demo", doc.Model)
	require.Len(t, doc.Classes, 1)
	cls := doc.Classes[0]
	assert.Equal(t, "Foo", cls.Name)
	assert.Equal(t, "Demo", cls.Model)
	assert.Equal(t, "Base", cls.Extends)

	require.Len(t, cls.Methods, 1)
	m := cls.Methods[0]
	assert.Equal(t, "bar", m.Name)
	assert.Equal(t, "protected", m.Access)
	assert.True(t, m.Static)
	assert.Contains(t, m.Source, "this.baz()")
}

func TestParse_ClassNameFromChildElement(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxClass><Name>Foo</Name></AxClass>`)

	require.Len(t, doc.Classes, 1)
	assert.Equal(t, "Foo", doc.Classes[0].Name)
}

func TestParse_FlatMethodChildren(t *testing.T) {
	t.Parallel()

	// Some export shapes skip the Methods container.
	doc := parseString(t, `<AxClass Name="Foo">
  <AxMethod Name="one"><Source>void one() {}</Source></AxMethod>
  <AxMethod Name="two"><Code>void two() {}</Code></AxMethod>
</AxClass>`)

	require.Len(t, doc.Classes, 1)
	require.Len(t, doc.Classes[0].Methods, 2)
	assert.Equal(t, "one", doc.Classes[0].Methods[0].Name)
	assert.Equal(t, "void two() {}", doc.Classes[0].Methods[1].Source)
}

func TestParse_NoModelScope(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxClass Name="Foo"/>`)

	require.Len(t, doc.Classes, 1)
	assert.Equal(t, DefaultModel, doc.Classes[0].Model)
	assert.Empty(t, doc.Model)
}

// ====== Tables ======

func TestParse_TableWithFields(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxModel Name="Demo">
  <AxTable Name="CustTable">
    <Fields>
      <AxTableField Name="AccountNum">
        <Type>String</Type>
        <ExtendedDataType>CustAccount</ExtendedDataType>
      </AxTableField>
      <AxTableField Name="CreditMax"><Type>Real</Type></AxTableField>
    </Fields>
  </AxTable>
</AxModel>`)

	require.Len(t, doc.Tables, 1)
	tbl := doc.Tables[0]
	assert.Equal(t, "CustTable", tbl.Name)
	assert.Equal(t, "Demo", tbl.Model)

	require.Len(t, tbl.Fields, 2)
	assert.Equal(t, "AccountNum", tbl.Fields[0].Name)
	assert.Equal(t, "String", tbl.Fields[0].Type)
	assert.Equal(t, "CustAccount", tbl.Fields[0].ExtendedDataType)
	assert.Equal(t, "CreditMax", tbl.Fields[1].Name)
}

func TestParse_UnknownElementInFields(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxTable Name="CustTable">
  <Fields>
    <AxTableField Name="AccountNum"/>
    <Mystery Name="what"/>
  </Fields>
</AxTable>`)

	require.Len(t, doc.Tables, 1)
	require.Len(t, doc.Tables[0].Fields, 1)
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, diag.KindUnknownElement, doc.Diagnostics[0].Kind)
	assert.Equal(t, "CustTable", doc.Diagnostics[0].Subject)
}

// ====== Malformed records ======

func TestParse_MissingNamesAreDiagnostics(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<AxModel Name="Demo">
  <AxClass>
    <Methods><AxMethod Name="orphan"/></Methods>
  </AxClass>
  <AxClass Name="Ok">
    <Methods><AxMethod/></Methods>
  </AxClass>
  <AxTable Name="T">
    <Fields><AxTableField/></Fields>
  </AxTable>
</AxModel>`)

	// The nameless class, method, and field are skipped; the rest survive.
	require.Len(t, doc.Classes, 1)
	assert.Equal(t, "Ok", doc.Classes[0].Name)
	assert.Empty(t, doc.Classes[0].Methods)
	require.Len(t, doc.Tables, 1)
	assert.Empty(t, doc.Tables[0].Fields)

	require.Len(t, doc.Diagnostics, 3)
	for _, d := range doc.Diagnostics {
		assert.Equal(t, diag.KindMalformedRecord, d.Kind)
	}
}

func TestParse_MultipleModelScopes(t *testing.T) {
	t.Parallel()

	doc := parseString(t, `<Export>
  <AxModel Name="First"><AxClass Name="A"/></AxModel>
  <AxModel Name="Second"><AxClass Name="B"/></AxModel>
</Export>`)

	require.Len(t, doc.Classes, 2)
	assert.Equal(t, "First", doc.Classes[0].Model)
	assert.Equal(t, "Second", doc.Classes[1].Model)
	assert.Equal(t, "First", doc.Model)
}

// ====== Helpers ======

func TestParseBool(t *testing.T) {
	t.Parallel()

	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("Yes"))
	assert.True(t, parseBool("1"))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool(""))
	assert.False(t, parseBool("maybe"))
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("void f() {}"))
	assert.Equal(t, 4, CountLines("void f()\n{\n\n    return;\n\n}"))
}
