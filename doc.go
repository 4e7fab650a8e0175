// Package aotgraph converts Dynamics 365 F&O AOT XML exports into a
// persistent, queryable dependency graph backed by SQLite.
//
// # Pipeline
//
// One ingestion run moves through five stages:
//
//  1. Resolve: expand input paths (files, directories, zip bundles) into
//     export documents, extracting bundles to a staging directory.
//  2. Parse: read each document into raw class and table records,
//     tolerating malformed exports with diagnostics instead of errors.
//  3. Build: assemble a run-scoped intermediate representation in two
//     passes, declare then link, with deterministic element identifiers.
//  4. Extract: scan method bodies for call and field-access facts,
//     resolving targets heuristically against the declared set.
//  5. Reconcile: upsert the run into the persisted graph in one
//     transaction, retiring members their parents no longer declare.
//
// # Usage
//
// Create an Engine, ingest sources, and query:
//
//	e, err := aotgraph.New("aotgraph.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	report, err := e.Ingest(ctx, []string{"ApplicationSuite.zip"})
//
//	q := e.Query()
//	callers, err := q.CallersOf("CustTable", "checkCreditLimit")
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] answers the graph
// questions the ingested data supports:
//
//   - [QueryBuilder.CallersOf] / [QueryBuilder.CalleesOf] — call graph
//     around a method.
//   - [QueryBuilder.ReadersOf] / [QueryBuilder.WritersOf] — methods
//     touching a table field.
//   - [QueryBuilder.InheritanceChain] — superclass chain of a class.
//   - [QueryBuilder.NodeText] — persisted source text of a method node.
//
// # Idempotence
//
// Ingestion is reconciliation, not insertion: re-ingesting unchanged
// sources leaves the graph untouched, and re-ingesting changed sources
// updates exactly the affected nodes and edge sets. A run that fails for
// one source still ingests the others; [Engine.Ingest] returns an error
// only when every source failed.
package aotgraph
