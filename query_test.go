package aotgraph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCreditQuery ingests the credit scenario fixtures and returns the
// query side.
func newCreditQuery(t *testing.T) *QueryBuilder {
	t.Helper()
	e := newTestEngine(t)
	ingest(t, e, filepath.Join("testdata", "exports"))
	return e.Query()
}

// ====== Lookups ======

func TestQuery_ClassesAndTablesNamed(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	classes, err := q.ClassesNamed("CustCreditService")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "ApplicationSuite/CustCreditService", classes[0].ID)
	assert.Equal(t, "ApplicationSuite", classes[0].Model)

	tables, err := q.TablesNamed("CustTable")
	require.NoError(t, err)
	require.Len(t, tables, 1)

	none, err := q.ClassesNamed("Nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQuery_MethodsAndFieldsOf(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	methods, err := q.MethodsOf("CustCreditService")
	require.NoError(t, err)
	require.Len(t, methods, 3)
	assert.Equal(t, "ApplicationSuite/CustCreditService/audit", methods[0].ID)
	assert.Equal(t, "ApplicationSuite/CustCreditService/checkLimit", methods[1].ID)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", methods[2].ID)

	fields, err := q.FieldsOf("CustTable")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "ApplicationSuite/CustTable/AccountNum", fields[0].ID)
	assert.Equal(t, "ApplicationSuite/CustTable/CreditMax", fields[1].ID)
}

func TestQuery_NodeByID(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	n, err := q.NodeByID("ApplicationSuite/Logger/write")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "write", n.Name)
	assert.Equal(t, "Logger", n.ClassName)
	assert.True(t, n.IsStatic)

	missing, err := q.NodeByID("ApplicationSuite/Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestQuery_InheritanceChainUnknownClass(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	_, err := q.InheritanceChain("Nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// ====== Transitive call graph ======

func TestQuery_CalleesTransitive(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	graph, err := q.Callees("ApplicationSuite/CustCreditService/raiseLimit", 0)
	require.NoError(t, err)

	// raiseLimit -> audit -> Logger::write.
	assert.Equal(t, 2, graph.Depth)
	require.Len(t, graph.Nodes, 3)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", graph.Nodes[0].Node.ID)
	assert.Equal(t, 0, graph.Nodes[0].Depth)
	assert.Equal(t, "ApplicationSuite/CustCreditService/audit", graph.Nodes[1].Node.ID)
	assert.Equal(t, 1, graph.Nodes[1].Depth)
	assert.Equal(t, "ApplicationSuite/Logger/write", graph.Nodes[2].Node.ID)
	assert.Equal(t, 2, graph.Nodes[2].Depth)
}

func TestQuery_CalleesDepthBounded(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	graph, err := q.Callees("ApplicationSuite/CustCreditService/raiseLimit", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, graph.Depth)
	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, "ApplicationSuite/CustCreditService/audit", graph.Nodes[1].Node.ID)
}

func TestQuery_CallersTransitive(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	graph, err := q.Callers("ApplicationSuite/Logger/write", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, graph.Depth)
	require.Len(t, graph.Nodes, 3)
	assert.Equal(t, "ApplicationSuite/Logger/write", graph.Nodes[0].Node.ID)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", graph.Nodes[2].Node.ID)
}

// ====== Search ======

func TestQuery_SearchNodes(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	res, err := q.SearchNodes("Cust*", NodeFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "ApplicationSuite/CustCreditService", res.Items[0].ID)
	assert.Equal(t, "ApplicationSuite/CustTable", res.Items[1].ID)

	tablesOnly, err := q.SearchNodes("Cust*", NodeFilter{Labels: []string{"Table"}}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, tablesOnly.TotalCount)

	nothing, err := q.SearchNodes("Zz*", NodeFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Zero(t, nothing.TotalCount)
	assert.Empty(t, nothing.Items)
}

func TestQuery_SearchPagination(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	page, err := q.SearchNodes("*", NodeFilter{Labels: []string{"Method"}}, Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Len(t, page.Items, 2)

	next, err := q.SearchNodes("*", NodeFilter{Labels: []string{"Method"}}, Pagination{Offset: 4, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
}

// ====== Summary ======

func TestQuery_GraphSummary(t *testing.T) {
	t.Parallel()
	q := newCreditQuery(t)

	s, err := q.GraphSummary()
	require.NoError(t, err)

	assert.Equal(t, 3, s.NodeCounts["Class"])
	assert.Equal(t, 5, s.NodeCounts["Method"])
	assert.Equal(t, 1, s.NodeCounts["Table"])
	assert.Equal(t, 2, s.NodeCounts["Field"])

	assert.Equal(t, 2, s.EdgeCounts["CALLS"])
	assert.Equal(t, 1, s.EdgeCounts["EXTENDS"])
	assert.Equal(t, 2, s.EdgeCounts["READS_FIELD"])
	assert.Equal(t, 1, s.EdgeCounts["WRITES_FIELD"])

	require.NotEmpty(t, s.Models)
	assert.Equal(t, "ApplicationSuite", s.Models[0].Model)
	assert.Equal(t, 3, s.Models[0].LabelCounts["Class"])
}
