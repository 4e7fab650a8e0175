package store

// Node is one persisted graph node. Property columns not applicable to a
// node's label are stored as empty strings.
type Node struct {
	ID               string
	Label            string
	Name             string
	Model            string
	Package          string
	Layer            string
	AOTPath          string
	ClassName        string
	TableName        string
	Access           string
	IsStatic         bool
	LineCount        int
	FieldType        string
	ExtendedDataType string
	BaseClass        string
	Body             string
	Stale            bool
	FirstRunID       string
	LastRunID        string
}

// Edge is one persisted graph edge.
type Edge struct {
	SourceID   string
	Kind       string
	TargetID   string
	Resolution string
	RunID      string
}

// ApplyStats summarizes one reconciliation against the persisted graph.
type ApplyStats struct {
	NodesCreated int
	NodesUpdated int
	NodesRetired int
	EdgesAdded   int
	EdgesRemoved int
}

const nodeColumns = `id, label, name, model, package, layer, aot_path,
	class_name, table_name, access, is_static, line_count, field_type,
	extended_data_type, base_class, body, stale, first_run_id, last_run_id`

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.Label, &n.Name, &n.Model, &n.Package, &n.Layer,
		&n.AOTPath, &n.ClassName, &n.TableName, &n.Access, &n.IsStatic,
		&n.LineCount, &n.FieldType, &n.ExtendedDataType, &n.BaseClass,
		&n.Body, &n.Stale, &n.FirstRunID, &n.LastRunID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
