package aotgraph

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aotgraph/aotgraph/internal/diag"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	e, err := New(dbPath,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkers(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func ingest(t *testing.T, e *Engine, paths ...string) *RunReport {
	t.Helper()
	report, err := e.Ingest(context.Background(), paths)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// buildTestArchive writes a zip file from name -> content pairs.
func buildTestArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func reportKinds(report *RunReport) []diag.Kind {
	var kinds []diag.Kind
	for _, d := range report.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

// ====== Credit limit scenario ======

func TestIngest_CreditScenario(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	report := ingest(t, e, filepath.Join("testdata", "exports"))

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.DocumentsParsed)
	assert.Zero(t, report.DocumentsFailed)
	assert.Equal(t, 3, report.Classes)
	assert.Equal(t, 5, report.Methods)
	assert.Equal(t, 1, report.Tables)
	assert.Equal(t, 2, report.Fields)
	assert.Empty(t, report.Diagnostics)

	// 3 classes + 5 methods + 1 table + 2 fields + model + package.
	assert.Equal(t, 13, report.Stats.NodesCreated)
	assert.Zero(t, report.Stats.NodesRetired)

	q := e.Query()

	writers, err := q.WritersOf("CustTable", "CreditMax")
	require.NoError(t, err)
	require.Len(t, writers, 1)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", writers[0].Node.ID)

	readers, err := q.ReadersOf("CustTable", "CreditMax")
	require.NoError(t, err)
	require.Len(t, readers, 2, "a compound assignment reads before it writes")
	assert.Equal(t, "ApplicationSuite/CustCreditService/checkLimit", readers[0].Node.ID)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", readers[1].Node.ID)

	callers, err := q.CallersOf("CustCreditService", "audit")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", callers[0].Node.ID)
	assert.Equal(t, "self", callers[0].Resolution)

	callees, err := q.CalleesOf("CustCreditService", "audit")
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "ApplicationSuite/Logger/write", callees[0].Node.ID)
	assert.Equal(t, "qualified", callees[0].Resolution)

	chain, err := q.InheritanceChain("CustCreditService")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "ApplicationSuite/CustCreditService", chain[0].ID)
	assert.Equal(t, "ApplicationSuite/CreditServiceBase", chain[1].ID)

	subs, err := q.SubclassesOf("CreditServiceBase")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ApplicationSuite/CustCreditService", subs[0].ID)

	text, err := q.NodeText("ApplicationSuite/CustCreditService/raiseLimit")
	require.NoError(t, err)
	assert.Contains(t, text, "CustTable.CreditMax += amount")

	_, err = q.NodeText("ApplicationSuite/Nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestIngest_Idempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	first := ingest(t, e, filepath.Join("testdata", "exports"))
	second := ingest(t, e, filepath.Join("testdata", "exports"))

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Zero(t, second.Stats.NodesCreated)
	assert.Zero(t, second.Stats.NodesRetired)
	assert.Zero(t, second.Stats.EdgesAdded, "an unchanged re-ingest touches no edges")
	assert.Zero(t, second.Stats.EdgesRemoved)
	assert.Equal(t, first.Stats.NodesCreated, second.Stats.NodesUpdated)
}

func TestIngest_SelfCall(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()

	writeDoc(t, dir, "foo.xml", `<AxModel Name="App">
  <AxClass Name="Foo">
    <Methods>
      <AxMethod Name="bar">
        <Source>void bar()
{
    this.baz();
}</Source>
      </AxMethod>
      <AxMethod Name="baz">
        <Source>void baz()
{
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
</AxModel>`)

	report := ingest(t, e, dir)
	assert.Empty(t, report.Diagnostics)

	q := e.Query()
	callees, err := q.CalleesOf("Foo", "bar")
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "App/Foo/baz", callees[0].Node.ID)

	for _, id := range []string{"App/Foo/bar", "App/Foo/baz"} {
		n, err := q.NodeByID(id)
		require.NoError(t, err)
		require.NotNil(t, n, id)
	}
}

// ====== Re-ingest after a method is deleted ======

const creditClassesV1 = `<?xml version="1.0" encoding="utf-8"?>
<AxModel Name="ApplicationSuite">
  <AxClass Name="CustCreditService">
    <Extends>CreditServiceBase</Extends>
    <Methods>
      <AxMethod Name="raiseLimit" Access="public">
        <Source>public void raiseLimit(real amount)
{
    this.audit();
}</Source>
      </AxMethod>
      <AxMethod Name="audit" Access="private">
        <Source>private void audit()
{
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
  <AxClass Name="CreditServiceBase">
    <Methods>
      <AxMethod Name="audit" Access="protected">
        <Source>protected void audit()
{
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
</AxModel>`

// Same export with CustCreditService.audit deleted; raiseLimit's call now
// falls through to the inherited declaration.
const creditClassesV2 = `<?xml version="1.0" encoding="utf-8"?>
<AxModel Name="ApplicationSuite">
  <AxClass Name="CustCreditService">
    <Extends>CreditServiceBase</Extends>
    <Methods>
      <AxMethod Name="raiseLimit" Access="public">
        <Source>public void raiseLimit(real amount)
{
    this.audit();
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
  <AxClass Name="CreditServiceBase">
    <Methods>
      <AxMethod Name="audit" Access="protected">
        <Source>protected void audit()
{
}</Source>
      </AxMethod>
    </Methods>
  </AxClass>
</AxModel>`

func TestIngest_ReingestAfterMethodDelete(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()

	writeDoc(t, dir, "classes.xml", creditClassesV1)
	ingest(t, e, dir)

	q := e.Query()
	callers, err := q.CallersOf("CustCreditService", "audit")
	require.NoError(t, err)
	require.Len(t, callers, 1)

	writeDoc(t, dir, "classes.xml", creditClassesV2)
	report := ingest(t, e, dir)

	assert.Equal(t, 1, report.Stats.NodesRetired)
	assert.Contains(t, reportKinds(report), diag.KindRetiredStale)

	// The deleted method is stale and out of every name lookup.
	stale, err := q.NodeByID("ApplicationSuite/CustCreditService/audit")
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.True(t, stale.Stale)

	gone, err := q.CallersOf("CustCreditService", "audit")
	require.NoError(t, err)
	assert.Empty(t, gone)

	// The call now resolves up the inheritance chain.
	inherited, err := q.CallersOf("CreditServiceBase", "audit")
	require.NoError(t, err)
	require.Len(t, inherited, 1)
	assert.Equal(t, "ApplicationSuite/CustCreditService/raiseLimit", inherited[0].Node.ID)
	assert.Equal(t, "inherited", inherited[0].Resolution)
}

// ====== Source isolation ======

func TestIngest_AllSourcesFailed(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	report, err := e.Ingest(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	require.ErrorIs(t, err, ErrAllSourcesFailed)
	require.NotNil(t, report)
	assert.True(t, report.AllSourcesFailed())
	assert.Equal(t, 1, report.FailedSources())
}

func TestIngest_PartialFailureIsNotAnError(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	report := ingest(t, e, filepath.Join("testdata", "exports"), "/no/such/path")

	assert.Equal(t, 1, report.FailedSources())
	assert.False(t, report.AllSourcesFailed())
	assert.Equal(t, 2, report.DocumentsParsed)

	require.Len(t, report.Sources, 2)
	assert.False(t, report.Sources[0].Failed())
	assert.True(t, report.Sources[1].Failed())
}

func TestIngest_MalformedDocumentIsolated(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()

	writeDoc(t, dir, "good.xml", `<AxModel Name="App"><AxClass Name="Foo"/></AxModel>`)
	writeDoc(t, dir, "truncated.xml", `<AxClass Name="Broken`)

	report := ingest(t, e, dir)

	assert.Equal(t, 1, report.DocumentsParsed)
	assert.Equal(t, 1, report.DocumentsFailed)
	assert.Equal(t, 1, report.Classes)
}

// ====== Forward references across documents ======

func TestIngest_ForwardReferenceResolves(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()

	// The subclass document sorts lexically before its superclass's.
	writeDoc(t, dir, "a_derived.xml",
		`<AxModel Name="App"><AxClass Name="Derived"><Extends>Base</Extends></AxClass></AxModel>`)
	writeDoc(t, dir, "b_base.xml",
		`<AxModel Name="App"><AxClass Name="Base"/></AxModel>`)

	report := ingest(t, e, dir)
	assert.Empty(t, report.Diagnostics)

	chain, err := e.Query().InheritanceChain("Derived")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "App/Base", chain[1].ID)
}

// ====== Bundles ======

func TestIngest_ZipBundleDescriptorModel(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	archive := buildTestArchive(t, map[string]string{
		"MyModel/Descriptor/MyModel.xml": `<AxModelInfo><Name>MyModel</Name></AxModelInfo>`,
		"MyModel/AxClass/Foo.xml":        `<AxClass Name="Foo"/>`,
	})

	report := ingest(t, e, archive)
	assert.Equal(t, 1, report.DocumentsParsed)

	// The document declared no model scope; the descriptor supplies it.
	n, err := e.Query().NodeByID("MyModel/Foo")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "MyModel", n.Model)
}
