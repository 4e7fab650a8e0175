package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/aotgraph/aotgraph/internal/diag"
	"github.com/aotgraph/aotgraph/internal/ir"
)

const stage = "reconcile"

// ErrLabelConflict is returned when an incoming node's identifier is
// already persisted under a different label. Identifiers are derived from
// declaration paths, so a label mismatch means two different element kinds
// collapsed onto one identifier and the graph cannot be trusted.
var ErrLabelConflict = errors.New("element identifier persisted under a different label")

// ModelNodeID returns the node identifier for a model. Model and package
// nodes live outside the element identifier namespace so they can never
// collide with a declaration path.
func ModelNodeID(name string) string { return "model:" + name }

// PackageNodeID returns the node identifier for a package.
func PackageNodeID(name string) string { return "package:" + name }

// ApplySnapshot reconciles one ingestion run against the persisted graph
// in a single transaction. Nodes are upserted first, then edges, so every
// in-run edge target exists before edges are written. Edge targets that
// resolve against neither the run nor the persisted graph are dropped with
// a diagnostic. Methods and fields no longer declared by a re-ingested
// parent are marked stale and their edges removed. Transient lock errors
// retry the whole batch.
func (s *Store) ApplySnapshot(ctx context.Context, snap *ir.Snapshot, runID string) (*ApplyStats, []diag.Diagnostic, error) {
	var stats *ApplyStats
	var diags []diag.Diagnostic

	err := withRetry(ctx, defaultRetryPolicy, func() error {
		st, ds, err := s.applyOnce(ctx, snap, runID)
		if err != nil {
			return err
		}
		stats, diags = st, ds
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return stats, diags, nil
}

func (s *Store) applyOnce(ctx context.Context, snap *ir.Snapshot, runID string) (*ApplyStats, []diag.Diagnostic, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	r := &reconciliation{
		tx:    tx,
		runID: runID,
		known: make(map[string]bool),
		stats: &ApplyStats{},
	}

	if err := r.upsertNodes(snap); err != nil {
		return nil, nil, err
	}
	if err := r.retireMissingMembers(snap); err != nil {
		return nil, nil, err
	}
	if err := r.applyEdges(snap); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit reconciliation: %w", err)
	}
	return r.stats, r.diags, nil
}

// reconciliation carries the state of one in-flight ApplySnapshot
// transaction.
type reconciliation struct {
	tx    *sql.Tx
	runID string

	// known caches node existence checks against the transaction, seeded
	// by every upsert so in-run targets never hit the database again.
	known map[string]bool

	stats *ApplyStats
	diags []diag.Diagnostic
}

func (r *reconciliation) upsertNodes(snap *ir.Snapshot) error {
	models := make(map[string]bool)
	packages := make(map[string]bool)

	for _, cls := range snap.SortedClasses() {
		models[cls.Model] = true
		if cls.Package != "" {
			packages[cls.Package] = true
		}
		if err := r.upsert(&Node{
			ID:        cls.ID(),
			Label:     LabelClass,
			Name:      cls.Name,
			Model:     cls.Model,
			Package:   cls.Package,
			Layer:     cls.Layer,
			AOTPath:   cls.AOTPath,
			BaseClass: cls.BaseClass,
		}); err != nil {
			return err
		}
	}

	for _, m := range snap.Methods() {
		if err := r.upsert(&Node{
			ID:        m.ID(),
			Label:     LabelMethod,
			Name:      m.Name,
			Model:     m.Model,
			AOTPath:   m.AOTPath,
			ClassName: m.ClassName,
			Access:    string(m.Access),
			IsStatic:  m.IsStatic,
			LineCount: m.LineCount,
			Body:      m.Body,
		}); err != nil {
			return err
		}
	}

	for _, tbl := range snap.SortedTables() {
		models[tbl.Model] = true
		if tbl.Package != "" {
			packages[tbl.Package] = true
		}
		if err := r.upsert(&Node{
			ID:      tbl.ID(),
			Label:   LabelTable,
			Name:    tbl.Name,
			Model:   tbl.Model,
			Package: tbl.Package,
			Layer:   tbl.Layer,
			AOTPath: tbl.AOTPath,
		}); err != nil {
			return err
		}
		for _, name := range sortedKeys(tbl.Fields) {
			f := tbl.Fields[name]
			if err := r.upsert(&Node{
				ID:               f.ID(),
				Label:            LabelField,
				Name:             f.Name,
				Model:            f.Model,
				AOTPath:          f.AOTPath,
				TableName:        f.TableName,
				FieldType:        f.FieldType,
				ExtendedDataType: f.ExtendedDataType,
			}); err != nil {
				return err
			}
		}
	}

	for _, name := range sortedKeys(models) {
		if err := r.upsert(&Node{ID: ModelNodeID(name), Label: LabelModel, Name: name}); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(packages) {
		if err := r.upsert(&Node{ID: PackageNodeID(name), Label: LabelPackage, Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// upsert writes one node, creating or refreshing it. Re-ingesting an
// element clears any stale flag left by an earlier retirement.
func (r *reconciliation) upsert(n *Node) error {
	var existing string
	err := r.tx.QueryRow("SELECT label FROM nodes WHERE id = ?", n.ID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = r.tx.Exec(`INSERT INTO nodes (`+nodeColumns+`, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?, CURRENT_TIMESTAMP)`,
			n.ID, n.Label, n.Name, n.Model, n.Package, n.Layer, n.AOTPath,
			n.ClassName, n.TableName, n.Access, n.IsStatic, n.LineCount,
			n.FieldType, n.ExtendedDataType, n.BaseClass, n.Body,
			r.runID, r.runID)
		if err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
		r.stats.NodesCreated++
	case err != nil:
		return fmt.Errorf("probe node %s: %w", n.ID, err)
	case existing != n.Label:
		return fmt.Errorf("%w: %s is %s, incoming %s", ErrLabelConflict, n.ID, existing, n.Label)
	default:
		_, err = r.tx.Exec(`UPDATE nodes SET
			name = ?, model = ?, package = ?, layer = ?, aot_path = ?,
			class_name = ?, table_name = ?, access = ?, is_static = ?,
			line_count = ?, field_type = ?, extended_data_type = ?,
			base_class = ?, body = ?, stale = FALSE, last_run_id = ?,
			last_updated = CURRENT_TIMESTAMP
			WHERE id = ?`,
			n.Name, n.Model, n.Package, n.Layer, n.AOTPath,
			n.ClassName, n.TableName, n.Access, n.IsStatic,
			n.LineCount, n.FieldType, n.ExtendedDataType,
			n.BaseClass, n.Body, r.runID, n.ID)
		if err != nil {
			return fmt.Errorf("update node %s: %w", n.ID, err)
		}
		r.stats.NodesUpdated++
	}
	r.known[n.ID] = true
	return nil
}

// retireMissingMembers marks persisted methods and fields stale when their
// declaring class or table was re-ingested without them. Elements whose
// parent is absent from the run are left untouched.
func (r *reconciliation) retireMissingMembers(snap *ir.Snapshot) error {
	for _, cls := range snap.SortedClasses() {
		desired := make(map[string]bool, len(cls.Methods))
		for _, m := range cls.Methods {
			desired[m.ID()] = true
		}
		if err := r.retireMissing(cls.ID(), EdgeDeclaresMethod, desired); err != nil {
			return err
		}
	}
	for _, tbl := range snap.SortedTables() {
		desired := make(map[string]bool, len(tbl.Fields))
		for _, f := range tbl.Fields {
			desired[f.ID()] = true
		}
		if err := r.retireMissing(tbl.ID(), EdgeHasField, desired); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciliation) retireMissing(sourceID, kind string, desired map[string]bool) error {
	existing, err := r.edgeTargets(sourceID, kind)
	if err != nil {
		return err
	}
	for _, target := range existing {
		if desired[target] {
			continue
		}
		if _, err := r.tx.Exec("UPDATE nodes SET stale = TRUE, last_updated = CURRENT_TIMESTAMP WHERE id = ?", target); err != nil {
			return fmt.Errorf("retire node %s: %w", target, err)
		}
		res, err := r.tx.Exec("DELETE FROM edges WHERE source_id = ? OR target_id = ?", target, target)
		if err != nil {
			return fmt.Errorf("purge edges of %s: %w", target, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			r.stats.EdgesRemoved += int(n)
		}
		r.stats.NodesRetired++
		r.diags = append(r.diags, diag.New(stage, diag.KindRetiredStale,
			target, fmt.Sprintf("no longer declared by %s", sourceID)))
	}
	return nil
}

func (r *reconciliation) applyEdges(snap *ir.Snapshot) error {
	for _, cls := range snap.SortedClasses() {
		var extends []Edge
		if target := r.extendsTarget(cls); target != (Edge{}) {
			extends = append(extends, target)
		}
		if err := r.applyEdgeSet(cls.ID(), EdgeExtends, extends); err != nil {
			return err
		}

		var declares []Edge
		for _, name := range sortedKeys(cls.Methods) {
			declares = append(declares, Edge{TargetID: cls.Methods[name].ID()})
		}
		if err := r.applyEdgeSet(cls.ID(), EdgeDeclaresMethod, declares); err != nil {
			return err
		}
		if err := r.applyOwnership(cls.ID(), cls.Model, cls.Package); err != nil {
			return err
		}

		for _, name := range sortedKeys(cls.Methods) {
			if err := r.applyMethodEdges(cls.Methods[name]); err != nil {
				return err
			}
		}
	}

	for _, tbl := range snap.SortedTables() {
		var fields []Edge
		for _, name := range sortedKeys(tbl.Fields) {
			fields = append(fields, Edge{TargetID: tbl.Fields[name].ID()})
		}
		if err := r.applyEdgeSet(tbl.ID(), EdgeHasField, fields); err != nil {
			return err
		}
		if err := r.applyOwnership(tbl.ID(), tbl.Model, tbl.Package); err != nil {
			return err
		}
	}
	return nil
}

// extendsTarget picks the superclass edge target: the in-run resolution
// when the link pass found one, otherwise the qualified reference so the
// dangling case can still resolve against the persisted graph.
func (r *reconciliation) extendsTarget(cls *ir.Class) Edge {
	if cls.BaseClassID != "" {
		return Edge{TargetID: cls.BaseClassID, Resolution: "declared"}
	}
	if cls.BaseClass != "" {
		return Edge{TargetID: ir.QualifyClassRef(cls.BaseClass, cls.Model), Resolution: "persisted"}
	}
	return Edge{}
}

func (r *reconciliation) applyOwnership(sourceID, model, pkg string) error {
	if err := r.applyEdgeSet(sourceID, EdgeBelongsToModel, []Edge{{TargetID: ModelNodeID(model)}}); err != nil {
		return err
	}
	var pkgEdges []Edge
	if pkg != "" {
		pkgEdges = append(pkgEdges, Edge{TargetID: PackageNodeID(pkg)})
	}
	return r.applyEdgeSet(sourceID, EdgeBelongsToPackage, pkgEdges)
}

func (r *reconciliation) applyMethodEdges(m *ir.Method) error {
	var calls []Edge
	for _, c := range m.Calls {
		calls = append(calls, Edge{TargetID: c.TargetID, Resolution: string(c.Resolution)})
	}
	if err := r.applyEdgeSet(m.ID(), EdgeCalls, calls); err != nil {
		return err
	}

	var reads, writes []Edge
	for _, fa := range m.FieldAccesses {
		e := Edge{TargetID: fa.TargetFieldID(), Resolution: string(ir.ResolutionQualified)}
		if fa.Kind == ir.AccessWrite {
			writes = append(writes, e)
		} else {
			reads = append(reads, e)
		}
	}
	if err := r.applyEdgeSet(m.ID(), EdgeReadsField, reads); err != nil {
		return err
	}
	return r.applyEdgeSet(m.ID(), EdgeWritesField, writes)
}

// applyEdgeSet makes the persisted edges of one (source, kind) pair match
// the desired set exactly: missing edges are inserted, surplus edges are
// deleted, and shared edges keep their row but refresh the resolution tag
// when this run resolved the target differently, so an unchanged re-ingest
// still touches nothing. Desired targets that exist in neither the run nor
// the persisted graph are dropped with a dangling-edge diagnostic.
func (r *reconciliation) applyEdgeSet(sourceID, kind string, desired []Edge) error {
	existing, err := r.edgeResolutions(sourceID, kind)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(desired))
	for _, e := range desired {
		if keep[e.TargetID] {
			continue
		}
		exists, err := r.nodeExists(e.TargetID)
		if err != nil {
			return err
		}
		if !exists {
			r.diags = append(r.diags, diag.New(stage, diag.KindDanglingEdge,
				sourceID, fmt.Sprintf("%s target %s not found", kind, e.TargetID)))
			continue
		}
		keep[e.TargetID] = true
		if res, ok := existing[e.TargetID]; ok {
			if res != e.Resolution {
				if _, err := r.tx.Exec(
					"UPDATE edges SET resolution = ?, run_id = ? WHERE source_id = ? AND kind = ? AND target_id = ?",
					e.Resolution, r.runID, sourceID, kind, e.TargetID); err != nil {
					return fmt.Errorf("update edge %s -[%s]-> %s: %w", sourceID, kind, e.TargetID, err)
				}
			}
			continue
		}
		if _, err := r.tx.Exec(
			"INSERT INTO edges (source_id, kind, target_id, resolution, run_id) VALUES (?, ?, ?, ?, ?)",
			sourceID, kind, e.TargetID, e.Resolution, r.runID); err != nil {
			return fmt.Errorf("insert edge %s -[%s]-> %s: %w", sourceID, kind, e.TargetID, err)
		}
		r.stats.EdgesAdded++
	}

	for _, t := range sortedKeys(existing) {
		if keep[t] {
			continue
		}
		if _, err := r.tx.Exec(
			"DELETE FROM edges WHERE source_id = ? AND kind = ? AND target_id = ?",
			sourceID, kind, t); err != nil {
			return fmt.Errorf("delete edge %s -[%s]-> %s: %w", sourceID, kind, t, err)
		}
		r.stats.EdgesRemoved++
	}
	return nil
}

// edgeResolutions returns the persisted edges of one (source, kind) pair
// as a target-to-resolution map.
func (r *reconciliation) edgeResolutions(sourceID, kind string) (map[string]string, error) {
	rows, err := r.tx.Query("SELECT target_id, resolution FROM edges WHERE source_id = ? AND kind = ?", sourceID, kind)
	if err != nil {
		return nil, fmt.Errorf("query edges of %s: %w", sourceID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var target, resolution string
		if err := rows.Scan(&target, &resolution); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out[target] = resolution
	}
	return out, rows.Err()
}

func (r *reconciliation) edgeTargets(sourceID, kind string) ([]string, error) {
	rows, err := r.tx.Query("SELECT target_id FROM edges WHERE source_id = ? AND kind = ? ORDER BY target_id", sourceID, kind)
	if err != nil {
		return nil, fmt.Errorf("query edges of %s: %w", sourceID, err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan edge target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (r *reconciliation) nodeExists(id string) (bool, error) {
	if exists, ok := r.known[id]; ok {
		return exists, nil
	}
	var one int
	err := r.tx.QueryRow("SELECT 1 FROM nodes WHERE id = ?", id).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		r.known[id] = false
		return false, nil
	case err != nil:
		return false, fmt.Errorf("probe node %s: %w", id, err)
	}
	r.known[id] = true
	return true, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
