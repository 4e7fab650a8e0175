// Package store is the SQLite persistence layer for the dependency graph.
// The graph is two tables: nodes keyed by their canonical element
// identifier, and edges unique per (source, kind, target). Reconciliation
// of an ingestion run against the persisted graph is a single transaction.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Node labels.
const (
	LabelClass   = "Class"
	LabelMethod  = "Method"
	LabelTable   = "Table"
	LabelField   = "Field"
	LabelModel   = "Model"
	LabelPackage = "Package"
)

// Edge kinds.
const (
	EdgeExtends          = "EXTENDS"
	EdgeDeclaresMethod   = "DECLARES_METHOD"
	EdgeHasField         = "HAS_FIELD"
	EdgeCalls            = "CALLS"
	EdgeReadsField       = "READS_FIELD"
	EdgeWritesField      = "WRITES_FIELD"
	EdgeBelongsToModel   = "BELONGS_TO_MODEL"
	EdgeBelongsToPackage = "BELONGS_TO_PACKAGE"
)

// Store is the SQLite data access layer for the graph.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the graph tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  id                 TEXT PRIMARY KEY,
  label              TEXT NOT NULL,
  name               TEXT NOT NULL,
  model              TEXT NOT NULL DEFAULT '',
  package            TEXT NOT NULL DEFAULT '',
  layer              TEXT NOT NULL DEFAULT '',
  aot_path           TEXT NOT NULL DEFAULT '',
  class_name         TEXT NOT NULL DEFAULT '',
  table_name         TEXT NOT NULL DEFAULT '',
  access             TEXT NOT NULL DEFAULT '',
  is_static          BOOLEAN NOT NULL DEFAULT FALSE,
  line_count         INTEGER NOT NULL DEFAULT 0,
  field_type         TEXT NOT NULL DEFAULT '',
  extended_data_type TEXT NOT NULL DEFAULT '',
  base_class         TEXT NOT NULL DEFAULT '',
  body               TEXT NOT NULL DEFAULT '',
  stale              BOOLEAN NOT NULL DEFAULT FALSE,
  first_run_id       TEXT NOT NULL DEFAULT '',
  last_run_id        TEXT NOT NULL DEFAULT '',
  last_updated       TIMESTAMP
);

CREATE TABLE IF NOT EXISTS edges (
  id          INTEGER PRIMARY KEY,
  source_id   TEXT NOT NULL REFERENCES nodes(id),
  kind        TEXT NOT NULL,
  target_id   TEXT NOT NULL REFERENCES nodes(id),
  resolution  TEXT NOT NULL DEFAULT '',
  run_id      TEXT NOT NULL DEFAULT '',
  UNIQUE(source_id, kind, target_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_label_name ON nodes(label, name);
CREATE INDEX IF NOT EXISTS idx_nodes_class_name ON nodes(class_name);
CREATE INDEX IF NOT EXISTS idx_nodes_table_name ON nodes(table_name);
CREATE INDEX IF NOT EXISTS idx_edges_source_kind ON edges(source_id, kind);
CREATE INDEX IF NOT EXISTS idx_edges_target_kind ON edges(target_id, kind);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
`
